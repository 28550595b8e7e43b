package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning: the capability's slot is not idle.
	ErrAlreadyRunning = errors.New("capture already running")
	// ErrNotRunning: stop/attach on an idle capability.
	ErrNotRunning = errors.New("capture not running")
	// ErrResourceBusy: another session holds the required hardware.
	ErrResourceBusy = errors.New("hardware resource busy")
)

// ValidationError rejects a start parameter before anything is
// spawned. Caller error, no side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
