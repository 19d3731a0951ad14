// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrSessionEnded     = errors.New("session already ended")
	ErrFeatureDisabled  = errors.New("feature disabled")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Persistence / sync errors
	ErrSyncFailure        = errors.New("remote sync failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "scoring", "achievement", "progress"
	Op      string // Operation that failed, e.g., "Evaluate", "Grant"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ValidationFieldError carries field-level detail for a rejected submission.
// It is returned to the caller, who may correct the field and re-submit.
type ValidationFieldError struct {
	Field   string
	Rule    string
	Message string
}

// Error implements the error interface.
func (e *ValidationFieldError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("field %q failed rule %q: %s", e.Field, e.Rule, e.Message)
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// Is makes ValidationFieldError match ErrValidation.
func (e *ValidationFieldError) Is(target error) bool {
	return errors.Is(ErrValidation, target)
}

// Scoring domain errors
var (
	ErrSubmissionNotFound = NewDomainError("scoring", "Find", ErrNotFound, "submission not found")
	ErrMissingJudgment    = NewDomainError("scoring", "Validate", ErrEmptyValue, "judgment result is required")
	ErrNegativeBudget     = NewDomainError("scoring", "Validate", ErrNegativeValue, "budget values cannot be negative")
	ErrNegativeElapsed    = NewDomainError("scoring", "Validate", ErrNegativeValue, "elapsed time cannot be negative")
)

// Leaderboard domain errors
var (
	ErrCompetitionNotFound  = NewDomainError("leaderboard", "Find", ErrNotFound, "competition not found")
	ErrDuplicateSubmission  = NewDomainError("leaderboard", "Submit", ErrAlreadyExists, "score already submitted for this competition")
	ErrEntryNotFound        = NewDomainError("leaderboard", "FindEntry", ErrNotFound, "leaderboard entry not found")
	ErrInvalidScore         = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "score must be between 0 and 100")
	ErrInvalidCompetitionID = NewDomainError("leaderboard", "Validate", ErrInvalidID, "invalid competition ID")
)

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement definition not found")
	ErrAlreadyGranted      = NewDomainError("achievement", "Grant", ErrAlreadyExists, "achievement already granted")
	ErrUnknownCondition    = NewDomainError("achievement", "Evaluate", ErrInvalidInput, "unknown condition kind")
	ErrProfileNotFound     = NewDomainError("achievement", "FindProfile", ErrNotFound, "career profile not found")
)

// Progress domain errors
var (
	ErrSnapshotNotFound  = NewDomainError("progress", "Load", ErrNotFound, "progress snapshot not found")
	ErrExecutionNotFound = NewDomainError("progress", "Find", ErrNotFound, "execution not found")
	ErrRemoteSyncFailed  = NewDomainError("progress", "Sync", ErrSyncFailure, "remote store rejected or unreachable")
	ErrLocalCacheFailed  = NewDomainError("progress", "Save", ErrServiceUnavailable, "local cache unavailable")
)

// Behavior domain errors
var (
	ErrEmptyEventBatch = NewDomainError("behavior", "Flush", ErrEmptyValue, "event batch is empty")
	ErrUnknownEvent    = NewDomainError("behavior", "Record", ErrInvalidInput, "unknown event kind")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsSyncFailure checks if the error is a remote sync failure.
// Sync failures are never surfaced to callers synchronously; they are
// logged and retried on the next scheduled tick.
func IsSyncFailure(err error) bool {
	return errors.Is(err, ErrSyncFailure)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrSyncFailure) ||
		errors.Is(err, ErrConcurrentModification)
}
