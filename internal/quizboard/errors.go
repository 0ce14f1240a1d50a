package quizboard

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks client-correctable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrStorageUnavailable marks any insert or query fault in the store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrRankFailed is returned when the insert committed but its rank
	// could not be read back. The result stays stored.
	ErrRankFailed = errors.New("rank computation failed")
	// ErrBroadcast marks fan-out failures. Never returned to submitters.
	ErrBroadcast = errors.New("broadcast failed")
	// ErrNotFound is returned when no result has the requested id.
	ErrNotFound = errors.New("not found")
)

// ValidationError names the offending field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
