package errors

import (
	"fmt"
	"strings"
)

// Validation creates a validation error for malformed input to a mutating call
func Validation(field, reason string) *SyncError {
	msg := reason
	if field != "" {
		msg = fmt.Sprintf("%s: %s", field, reason)
	}
	return New(ErrCodeValidation, msg).WithDetail("field", field)
}

// ValidationProblems creates a validation error listing every offending location
func ValidationProblems(problems []string) *SyncError {
	return New(ErrCodeValidation, "validation failed: "+strings.Join(problems, "; ")).
		WithDetail("problems", problems)
}

// StoreUnavailable creates an error for a backing store that cannot be reached
func StoreUnavailable(op string, err error) *SyncError {
	return Wrap(err, ErrCodeStoreUnavailable, fmt.Sprintf("backing store unavailable during %s", op)).
		WithDetail("operation", op)
}

// DataUnavailable creates an error for a missing or unreadable reference dataset
func DataUnavailable(path string, err error) *SyncError {
	return Wrap(err, ErrCodeDataUnavailable, fmt.Sprintf("reference dataset unavailable: %s", path)).
		WithDetail("path", path)
}

// NotificationFailed creates an error for a change event that could not be published
func NotificationFailed(channel string, err error) *SyncError {
	return Wrap(err, ErrCodeNotificationFailure, fmt.Sprintf("failed to publish change event on %s", channel)).
		WithDetail("channel", channel)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *SyncError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *SyncError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// APIUnavailable creates an error for a State API that cannot be reached
func APIUnavailable(baseURL string, err error) *SyncError {
	return Wrap(err, ErrCodeAPIUnavailable, fmt.Sprintf("state API unreachable at %s", baseURL)).
		WithDetail("base_url", baseURL)
}
