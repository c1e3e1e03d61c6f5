package wipe

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientConfirmation means neither the typed token nor the
	// acknowledgement satisfied the gate. The operator may retry.
	ErrInsufficientConfirmation = errors.New("insufficient confirmation: type DELETE or check the acknowledgement")

	// ErrCancelled means the operator cancelled a running erase.
	// The drive is in an indeterminate, partially overwritten state.
	ErrCancelled = errors.New("erase cancelled")

	// ErrExecutionFailed means the executor reported a device or verification
	// fault. The drive is in an indeterminate state.
	ErrExecutionFailed = errors.New("erase execution failed")

	// ErrIssuanceConflict means a second certificate was requested for a
	// session. This is a caller bug.
	ErrIssuanceConflict = errors.New("certificate already issued for this session")

	// ErrDriveBusy means another session holds the erase lock for the drive.
	ErrDriveBusy = errors.New("drive is already being erased by another session")

	// ErrInvalidTransition means the requested operation is not legal in the
	// session's current state.
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// ErrorKind is the error taxonomy surfaced in workflow snapshots.
type ErrorKind string

const (
	KindNone                     ErrorKind = ""
	KindInsufficientConfirmation ErrorKind = "insufficient_confirmation"
	KindCancelled                ErrorKind = "cancelled"
	KindExecutionFailed          ErrorKind = "execution_failed"
	KindIssuanceConflict         ErrorKind = "issuance_conflict"
	KindDriveBusy                ErrorKind = "drive_busy"
	KindInvalidTransition        ErrorKind = "invalid_transition"
	KindUnknown                  ErrorKind = "unknown"
)

// KindOf classifies err into the snapshot taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInsufficientConfirmation):
		return KindInsufficientConfirmation
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrExecutionFailed):
		return KindExecutionFailed
	case errors.Is(err, ErrIssuanceConflict):
		return KindIssuanceConflict
	case errors.Is(err, ErrDriveBusy):
		return KindDriveBusy
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	default:
		return KindUnknown
	}
}

// DeviceError is returned by an executor when an overwrite, prepare or
// finalize step fails at the device level.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error during %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// VerificationError is returned by an executor when read-back verification
// finds data that does not match the last pass.
type VerificationError struct {
	Offset int64
	Err    error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed at offset %d: %v", e.Offset, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// EraseError reports why a run stopped and how far it got. A run that stops
// early leaves the drive partially overwritten; PassesCompleted and Percent
// describe that partial state.
type EraseError struct {
	Kind            ErrorKind
	PhaseIndex      int
	PhaseLabel      string
	PassesCompleted int
	Percent         float64
	Err             error
}

func (e *EraseError) Error() string {
	state := fmt.Sprintf("stopped at phase %d (%s), %d overwrite pass(es) completed, %.1f%%: drive state is indeterminate",
		e.PhaseIndex, e.PhaseLabel, e.PassesCompleted, e.Percent)
	if e.Kind == KindCancelled {
		return fmt.Sprintf("%v: %s", ErrCancelled, state)
	}
	return fmt.Sprintf("%v: %v: %s", ErrExecutionFailed, e.Err, state)
}

func (e *EraseError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind so callers can use
// errors.Is(err, ErrCancelled) and errors.Is(err, ErrExecutionFailed).
func (e *EraseError) Is(target error) bool {
	switch e.Kind {
	case KindCancelled:
		return target == ErrCancelled
	case KindExecutionFailed:
		return target == ErrExecutionFailed
	}
	return false
}
