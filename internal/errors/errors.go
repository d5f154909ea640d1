package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/hydrate/internal/logger"
)

// Recoverable failure kinds. Callers wrap these with %w and test with errors.Is.
var (
	// ErrInvalidInterval is returned for reminder intervals outside [1,1440] minutes.
	ErrInvalidInterval = errors.New("invalid reminder interval")
	// ErrInvalidAmount is returned for non-positive intake amounts.
	ErrInvalidAmount = errors.New("invalid intake amount")
	// ErrPermissionRequired is returned when reminders are started without notification permission.
	ErrPermissionRequired = errors.New("notification permission required")
	// ErrExplanationRequired is returned when permission is requested before the user saw why.
	ErrExplanationRequired = errors.New("permission explanation must be shown first")
	// ErrPersistenceUnavailable means the durable store could not be written or read.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrPresentationUnavailable means a platform notification could not be shown.
	ErrPresentationUnavailable = errors.New("notification presentation unavailable")
	// ErrAgentUnavailable means no background agent could be reached.
	ErrAgentUnavailable = errors.New("background agent unavailable")
)

var hints = []struct {
	err  error
	hint string
}{
	{ErrInvalidInterval, "choose an interval between 1 and 1440 minutes"},
	{ErrInvalidAmount, "the amount must be a positive number of millilitres"},
	{ErrPermissionRequired, "run 'hydrate permission request' first"},
	{ErrExplanationRequired, "run 'hydrate permission request' interactively"},
	{ErrPersistenceUnavailable, "check the database path or run 'hydrate doctor'"},
	{ErrAgentUnavailable, "start one with 'hydrate agent'"},
}

// Hint returns a short remediation for known error kinds, or "" if none applies.
func Hint(err error) string {
	for _, h := range hints {
		if errors.Is(err, h.err) {
			return h.hint
		}
	}
	return ""
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	if hint := Hint(err); hint != "" {
		return fmt.Sprintf("Error: %v (%s)", err, hint)
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command failed", "error", err)
		fmt.Fprintln(os.Stderr, Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	logger.Error("Command failed", "error", fmt.Sprintf(format, args...))
	fmt.Fprintln(os.Stderr, Formatf(format, args...))
	os.Exit(1)
}
