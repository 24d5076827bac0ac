package budget

import "errors"

// ErrNotReady is returned by mutations attempted before a refresh has
// completed or while one is in flight.
var ErrNotReady = errors.New("budget items are not loaded")

// InvalidInputMessage is shown when a new item fails validation.
const InvalidInputMessage = "Both fields are required, and Allocated Budget must be a valid number greater than 0."

// ValidationError rejects user input before any I/O happens.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
