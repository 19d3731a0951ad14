// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Scoring events
	EventSubmissionReceived EventType = "scoring.submission_received"
	EventSubmissionScored   EventType = "scoring.submission_scored"

	// Achievement / career events
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventXPGained            EventType = "achievement.xp_gained"
	EventLevelUp             EventType = "achievement.level_up"
	EventCertificateIssued   EventType = "achievement.certificate_issued"

	// Leaderboard events
	EventScoreSubmitted     EventType = "leaderboard.score_submitted"
	EventLeaderboardUpdated EventType = "leaderboard.updated"

	// Behavior events
	EventBehaviorRecorded EventType = "behavior.recorded"
	EventErrorClassified  EventType = "behavior.error_classified"

	// Progress / session events
	EventSessionStarted   EventType = "progress.session_started"
	EventSessionEnded     EventType = "progress.session_ended"
	EventProgressSaved    EventType = "progress.saved"
	EventProgressRestored EventType = "progress.restored"

	// System events
	EventSyncCompleted EventType = "system.sync_completed"
	EventSyncFailed    EventType = "system.sync_failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Scoring Events
// ═══════════════════════════════════════════════════════════════════════════

// SubmissionReceivedEvent carries a judgment submission into the engine.
// The simulation host publishes it on the bus and the engine scores it
// asynchronously. Fields are flattened so the event survives the JSON
// round trip between instances.
type SubmissionReceivedEvent struct {
	BaseEvent
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	WorkstationID string `json:"workstation_id"`
	TaskID        string `json:"task_id"`

	JudgmentResult          string   `json:"judgment_result"`
	JudgmentCharacteristics []string `json:"judgment_characteristics"`
	JudgmentEvidence        []string `json:"judgment_evidence"`
	JudgmentRationale       string   `json:"judgment_rationale"`

	CorrectResult          string   `json:"correct_result"`
	CorrectCharacteristics []string `json:"correct_characteristics"`

	SpentBudget float64 `json:"spent_budget"`
	TotalBudget float64 `json:"total_budget"`
	OptimalCost float64 `json:"optimal_cost"`

	UserPath    []string `json:"user_path"`
	OptimalPath []string `json:"optimal_path"`

	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	TimeLimitSeconds float64 `json:"time_limit_seconds"`
}

// Payload implements Event interface.
func (e SubmissionReceivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id":               e.SessionID,
		"user_id":                  e.UserID,
		"workstation_id":           e.WorkstationID,
		"task_id":                  e.TaskID,
		"judgment_result":          e.JudgmentResult,
		"judgment_characteristics": e.JudgmentCharacteristics,
		"judgment_evidence":        e.JudgmentEvidence,
		"judgment_rationale":       e.JudgmentRationale,
		"correct_result":           e.CorrectResult,
		"correct_characteristics":  e.CorrectCharacteristics,
		"spent_budget":             e.SpentBudget,
		"total_budget":             e.TotalBudget,
		"optimal_cost":             e.OptimalCost,
		"user_path":                e.UserPath,
		"optimal_path":             e.OptimalPath,
		"elapsed_seconds":          e.ElapsedSeconds,
		"time_limit_seconds":       e.TimeLimitSeconds,
	}
}

// NewSubmissionReceivedEvent stamps the base event onto filled-in fields.
// The struct literal form is used because the event carries the full
// submission.
func NewSubmissionReceivedEvent(fields SubmissionReceivedEvent) SubmissionReceivedEvent {
	fields.BaseEvent = NewBaseEvent(EventSubmissionReceived, fields.SessionID)
	return fields
}

// SubmissionScoredEvent is emitted after the score engine has produced a
// complete ScoreResult for a submission. Achievement evaluation subscribes to
// this event, which guarantees it runs strictly after score computation.
type SubmissionScoredEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	WorkstationID string `json:"workstation_id"`
	TaskID        string `json:"task_id"`
	SubmissionID  string `json:"submission_id"`
	TotalScore    int    `json:"total_score"`
	Grade         string `json:"grade"`
	FirstTry      bool   `json:"first_try"`
}

// Payload implements Event interface.
func (e SubmissionScoredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"workstation_id": e.WorkstationID,
		"task_id":        e.TaskID,
		"submission_id":  e.SubmissionID,
		"total_score":    e.TotalScore,
		"grade":          e.Grade,
		"first_try":      e.FirstTry,
	}
}

// NewSubmissionScoredEvent creates a SubmissionScoredEvent.
func NewSubmissionScoredEvent(userID, workstationID, taskID, submissionID string, totalScore int, grade string, firstTry bool) SubmissionScoredEvent {
	return SubmissionScoredEvent{
		BaseEvent:     NewBaseEvent(EventSubmissionScored, submissionID),
		UserID:        userID,
		WorkstationID: workstationID,
		TaskID:        taskID,
		SubmissionID:  submissionID,
		TotalScore:    totalScore,
		Grade:         grade,
		FirstTry:      firstTry,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when a new achievement is granted.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	Rarity        string `json:"rarity"`
	XPReward      int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"rarity":         e.Rarity,
		"xp_reward":      e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates an AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, rarity string, xpReward int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:        userID,
		AchievementID: achievementID,
		Rarity:        rarity,
		XPReward:      xpReward,
	}
}

// LevelUpEvent is emitted when a career profile crosses one or more level
// thresholds in a single XP grant. CrossedLevels lists every level crossed,
// not just the final one.
type LevelUpEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	OldLevel      int    `json:"old_level"`
	NewLevel      int    `json:"new_level"`
	CrossedLevels []int  `json:"crossed_levels"`
	TotalXP       int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"old_level":      e.OldLevel,
		"new_level":      e.NewLevel,
		"crossed_levels": e.CrossedLevels,
		"total_xp":       e.TotalXP,
	}
}

// NewLevelUpEvent creates a LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, crossed []int, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:     NewBaseEvent(EventLevelUp, userID),
		UserID:        userID,
		OldLevel:      oldLevel,
		NewLevel:      newLevel,
		CrossedLevels: crossed,
		TotalXP:       totalXP,
	}
}

// CertificateIssuedEvent is emitted when a workstation certificate is issued.
type CertificateIssuedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	WorkstationID string `json:"workstation_id"`
	CertificateID string `json:"certificate_id"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"workstation_id": e.WorkstationID,
		"certificate_id": e.CertificateID,
	}
}

// NewCertificateIssuedEvent creates a CertificateIssuedEvent.
func NewCertificateIssuedEvent(userID, workstationID, certificateID string) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent:     NewBaseEvent(EventCertificateIssued, userID),
		UserID:        userID,
		WorkstationID: workstationID,
		CertificateID: certificateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// ScoreSubmittedEvent is emitted when a competition score is accepted.
type ScoreSubmittedEvent struct {
	BaseEvent
	CompetitionID    string `json:"competition_id"`
	UserID           string `json:"user_id"`
	Score            int    `json:"score"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	Rank             int    `json:"rank"`
}

// Payload implements Event interface.
func (e ScoreSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competition_id":     e.CompetitionID,
		"user_id":            e.UserID,
		"score":              e.Score,
		"time_spent_seconds": e.TimeSpentSeconds,
		"rank":               e.Rank,
	}
}

// NewScoreSubmittedEvent creates a ScoreSubmittedEvent.
func NewScoreSubmittedEvent(competitionID, userID string, score, timeSpent, rank int) ScoreSubmittedEvent {
	return ScoreSubmittedEvent{
		BaseEvent:        NewBaseEvent(EventScoreSubmitted, competitionID),
		CompetitionID:    competitionID,
		UserID:           userID,
		Score:            score,
		TimeSpentSeconds: timeSpent,
		Rank:             rank,
	}
}

// LeaderboardUpdatedEvent is emitted when a competition's cached standing
// is rebuilt and positions have changed.
type LeaderboardUpdatedEvent struct {
	BaseEvent
	CompetitionID string `json:"competition_id"`
	Participants  int    `json:"participants"`
	ChangedRanks  int    `json:"changed_ranks"`
}

// Payload implements Event interface.
func (e LeaderboardUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competition_id": e.CompetitionID,
		"participants":   e.Participants,
		"changed_ranks":  e.ChangedRanks,
	}
}

// NewLeaderboardUpdatedEvent creates a LeaderboardUpdatedEvent.
func NewLeaderboardUpdatedEvent(competitionID string, participants, changedRanks int) LeaderboardUpdatedEvent {
	return LeaderboardUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventLeaderboardUpdated, competitionID),
		CompetitionID: competitionID,
		Participants:  participants,
		ChangedRanks:  changedRanks,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress / Sync Events
// ═══════════════════════════════════════════════════════════════════════════

// SyncCompletedEvent is emitted after a successful remote sync tick.
type SyncCompletedEvent struct {
	BaseEvent
	UserID        string        `json:"user_id"`
	WorkstationID string        `json:"workstation_id"`
	Pushed        int           `json:"pushed"`
	Duration      time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e SyncCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"workstation_id": e.WorkstationID,
		"pushed":         e.Pushed,
		"duration_ms":    e.Duration.Milliseconds(),
	}
}

// NewSyncCompletedEvent creates a SyncCompletedEvent.
func NewSyncCompletedEvent(userID, workstationID string, pushed int, duration time.Duration) SyncCompletedEvent {
	return SyncCompletedEvent{
		BaseEvent:     NewBaseEvent(EventSyncCompleted, userID),
		UserID:        userID,
		WorkstationID: workstationID,
		Pushed:        pushed,
		Duration:      duration,
	}
}

// SessionEndedEvent is emitted when a training session terminates.
type SessionEndedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	WorkstationID string `json:"workstation_id"`
	SessionID     string `json:"session_id"`
	HostSignaled  bool   `json:"host_signaled"`
}

// Payload implements Event interface.
func (e SessionEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"workstation_id": e.WorkstationID,
		"session_id":     e.SessionID,
		"host_signaled":  e.HostSignaled,
	}
}

// NewSessionEndedEvent creates a SessionEndedEvent.
func NewSessionEndedEvent(userID, workstationID, sessionID string, hostSignaled bool) SessionEndedEvent {
	return SessionEndedEvent{
		BaseEvent:     NewBaseEvent(EventSessionEnded, sessionID),
		UserID:        userID,
		WorkstationID: workstationID,
		SessionID:     sessionID,
		HostSignaled:  hostSignaled,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a domain event.
type EventHandler interface {
	// Handle processes the event. Errors are logged by the bus, not propagated
	// to the publisher.
	Handle(ctx context.Context, event Event) error

	// Name returns the handler name for logging and metrics.
	Name() string
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc struct {
	HandlerName string
	Func        func(ctx context.Context, event Event) error
}

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Func(ctx, event)
}

// Name implements EventHandler.
func (f EventHandlerFunc) Name() string {
	return f.HandlerName
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	// Publish delivers the event to all subscribed handlers.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber registers handlers for event types.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber

	// Close shuts down the bus and waits for in-flight handlers.
	Close() error
}
