package capsule

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("capsule not found")
	ErrForbidden          = errors.New("unauthorized access to this capsule")
	ErrGone               = errors.New("this capsule has expired and is no longer available")
	ErrNotYetUnlockable   = errors.New("this capsule is not yet unlockable")
	ErrAlreadyUnlockable  = errors.New("capsule is already unlockable")
	ErrInvalidSecret      = errors.New("invalid unlock code")
	ErrInvalidSchedule    = errors.New("unlock date must be in the future")
	ErrConflict           = errors.New("capsule was modified concurrently")
	ErrStorageUnavailable = errors.New("capsule storage unavailable")
)

// NotYetUnlockableError is returned by Read for a locked capsule. It matches
// ErrNotYetUnlockable with errors.Is.
type NotYetUnlockableError struct {
	UnlockAt time.Time
}

func (e *NotYetUnlockableError) Error() string {
	return ErrNotYetUnlockable.Error()
}

func (e *NotYetUnlockableError) Is(target error) bool {
	return target == ErrNotYetUnlockable
}

// Retryable reports whether the caller may retry the failed request.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
