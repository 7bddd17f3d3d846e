package headless

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("headless: no store configured")
	ErrStoreClosed = errors.New("headless: store closed")

	// Not found errors.
	ErrRunNotFound = errors.New("headless: run not found")
	ErrDLQNotFound = errors.New("headless: dlq entry not found")

	// Conflict errors.
	ErrRunAlreadyExists = errors.New("headless: run already exists")

	// Submission errors.
	ErrTaskNotRegistered    = errors.New("headless: no handler registered for task key")
	ErrForegroundNotAllowed = errors.New("headless: task not allowed to run in foreground")
	ErrThrottled            = errors.New("headless: task throttled")
	ErrEngineStopped        = errors.New("headless: engine stopped")

	// Execution errors.
	ErrTaskTimeout      = errors.New("headless: task timed out")
	ErrRunCancelled     = errors.New("headless: run cancelled")
	ErrRetriesExhausted = errors.New("headless: retries exhausted")
)
