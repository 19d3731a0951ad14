// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// UserID represents a unique learner identifier (UUID format).
type UserID string

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "Validate", ErrInvalidID, "invalid user ID")
	}
	return uid, nil
}

// WorkstationID represents a training workstation identifier.
// Workstations are slug-like ("acid-bay", "storage-yard-2").
type WorkstationID string

// Regular expression for valid workstation slugs.
var workstationIDRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{1,49}$`)

// IsValid checks if the workstation ID is valid.
func (w WorkstationID) IsValid() bool {
	return workstationIDRegex.MatchString(string(w))
}

// String returns the string representation.
func (w WorkstationID) String() string {
	return string(w)
}

// NewWorkstationID creates a new WorkstationID with validation.
func NewWorkstationID(id string) (WorkstationID, error) {
	wid := WorkstationID(strings.ToLower(strings.TrimSpace(id)))
	if !wid.IsValid() {
		return "", NewDomainError("shared", "Validate", ErrInvalidID, "invalid workstation ID")
	}
	return wid, nil
}

// CompetitionID represents a competition identifier.
type CompetitionID string

// IsValid checks if the competition ID is non-empty and sane.
func (c CompetitionID) IsValid() bool {
	s := string(c)
	return len(s) >= 3 && len(s) <= 64
}

// String returns the string representation.
func (c CompetitionID) String() string {
	return string(c)
}

// SessionID represents a training session identifier.
type SessionID string

// IsValid checks if the session ID is a valid UUID.
func (s SessionID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// String returns the string representation.
func (s SessionID) String() string {
	return string(s)
}

// TaskID represents a scenario task identifier.
type TaskID string

// IsValid checks if the task ID is non-empty.
func (t TaskID) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// String returns the string representation.
func (t TaskID) String() string {
	return string(t)
}

// ═══════════════════════════════════════════════════════════════════════════
// Numeric Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points. XP is monotonically non-decreasing: the
// engine only ever adds XP, corrections happen upstream.
type XP int

// IsValid checks that XP is non-negative.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add returns x increased by delta (delta must be non-negative).
func (x XP) Add(delta XP) XP {
	if delta < 0 {
		return x
	}
	return x + delta
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Score represents a 0-100 score value.
type Score int

// IsValid checks that the score is within [0, 100].
func (s Score) IsValid() bool {
	return s >= 0 && s <= 100
}

// Int returns the underlying int value.
func (s Score) Int() int {
	return int(s)
}

// String returns the string representation.
func (s Score) String() string {
	return fmt.Sprintf("%d", int(s))
}

// Percent represents a 0-100 progress percentage.
type Percent float64

// IsValid checks that the percentage is within [0, 100].
func (p Percent) IsValid() bool {
	return p >= 0 && p <= 100
}

// ═══════════════════════════════════════════════════════════════════════════
// Time Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Timestamp wraps a logical timestamp used for last-writer-wins reconciliation.
// Comparison is a total order: the snapshot with the greater Timestamp always
// wins, regardless of which store it came from.
type Timestamp int64

// NewTimestamp returns the current moment as a Timestamp (unix milliseconds).
func NewTimestamp() Timestamp {
	return Timestamp(time.Now().UnixMilli())
}

// TimestampOf converts a time.Time to a Timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// After reports whether t is strictly more recent than other.
func (t Timestamp) After(other Timestamp) bool {
	return t > other
}

// Time converts the Timestamp back to a time.Time (UTC).
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool {
	return t == 0
}
