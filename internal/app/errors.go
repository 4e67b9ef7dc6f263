package app

import "errors"

// Application errors.
var (
	// ErrQuit signals that the application should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrAlreadyRunning indicates the application is already running.
	ErrAlreadyRunning = errors.New("application already running")
)

// InitError reports the failure of one component during startup. Fatal
// failures are returned from New or Run; degraded components log it and
// continue.
type InitError struct {
	Component string
	Err       error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}
