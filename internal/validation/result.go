package validation

import "errors"

// ErrSchemaUnavailable is returned when the Renovate schema cannot be loaded.
var ErrSchemaUnavailable = errors.New("renovate schema unavailable")

// Result reports whether a document passed validation.
type Result struct {
	Valid        bool
	ErrorMessage string
}

// Success is a passing Result.
func Success() Result {
	return Result{Valid: true}
}

// Failure is a failing Result carrying message.
func Failure(message string) Result {
	return Result{Valid: false, ErrorMessage: message}
}
