package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the progression engine.
// Supports gradual rollout, per-user overrides, and time-based activation.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string // learner user ID
	IsAdmin bool   // instructors and admins get every feature
}

// Predefined feature flag names.
const (
	// === Leaderboard Features ===
	FeatureLeaderboardHistogram = "leaderboard.histogram" // score distribution in reports
	FeatureLeaderboardReports   = "leaderboard.reports"   // instructor competition reports

	// === Gamification Features ===
	FeatureGamificationAchievements = "gamification.achievements" // badge unlocks
	FeatureGamificationStreaks      = "gamification.streaks"      // daily streaks
	FeatureGamificationCertificates = "gamification.certificates" // workstation certificates

	// === Behavior Analysis Features ===
	FeatureBehaviorClassification  = "behavior.classification"  // error categorization
	FeatureBehaviorHeatmap         = "behavior.heatmap"         // per-step error heatmap
	FeatureBehaviorRecommendations = "behavior.recommendations" // targeted learning resources

	// === Sync Features ===
	FeatureSyncBackups    = "sync.backups"     // rotated backups before overwrites
	FeatureSyncRemotePush = "sync.remote_push" // background push to remote store

	// === Experimental Features ===
	FeatureExperimentalAdaptiveScoring = "experimental.adaptive_scoring" // per-cohort weight tuning
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Leaderboard features - enabled by default
	ff.features[FeatureLeaderboardHistogram] = &Feature{
		Name:           FeatureLeaderboardHistogram,
		Description:    "Score distribution histogram in competition reports",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardReports] = &Feature{
		Name:           FeatureLeaderboardReports,
		Description:    "Instructor competition reports",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Gamification features - core to the platform, enabled by default
	ff.features[FeatureGamificationAchievements] = &Feature{
		Name:           FeatureGamificationAchievements,
		Description:    "Achievement unlocks and XP rewards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationStreaks] = &Feature{
		Name:           FeatureGamificationStreaks,
		Description:    "Daily activity streak tracking",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationCertificates] = &Feature{
		Name:           FeatureGamificationCertificates,
		Description:    "Certificates on workstation completion",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Behavior analysis features
	ff.features[FeatureBehaviorClassification] = &Feature{
		Name:           FeatureBehaviorClassification,
		Description:    "Categorize submission errors",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureBehaviorHeatmap] = &Feature{
		Name:           FeatureBehaviorHeatmap,
		Description:    "Per-step error heatmap for instructors",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureBehaviorRecommendations] = &Feature{
		Name:           FeatureBehaviorRecommendations,
		Description:    "Recommend learning resources for frequent errors",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	// Sync features
	ff.features[FeatureSyncBackups] = &Feature{
		Name:           FeatureSyncBackups,
		Description:    "Keep rotated progress backups",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSyncRemotePush] = &Feature{
		Name:           FeatureSyncRemotePush,
		Description:    "Background push of progress to the remote store",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalAdaptiveScoring] = &Feature{
		Name:           FeatureExperimentalAdaptiveScoring,
		Description:    "Per-cohort scoring weight tuning",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_BEHAVIOR_HEATMAP=true
// Example: FEATURE_BEHAVIOR_RECOMMENDATIONS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "behavior.heatmap" -> "FEATURE_BEHAVIOR_HEATMAP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	bucket := int(h.Sum32() % 100)
	return bucket < percent
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
