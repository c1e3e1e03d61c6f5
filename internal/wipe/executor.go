package wipe

import "context"

// Pass describes one overwrite pass handed to an executor.
type Pass struct {
	Index   int // zero-based pass index
	Total   int // passes in the plan
	Pattern Pattern
}

// ReportFunc lets an executor publish how much of the current phase is done,
// as a fraction in [0, 1]. Executors that cannot measure progress may ignore it.
type ReportFunc func(fraction float64)

// EraseExecutor performs the device-level work of an erase.
// Implementations must return promptly once ctx is cancelled if the
// underlying primitive supports incremental abort; otherwise cancellation
// takes effect between passes.
type EraseExecutor interface {
	// ExecutePass runs one complete overwrite of the target.
	// Failures should be reported as *DeviceError.
	ExecutePass(ctx context.Context, pass Pass, report ReportFunc) error

	// Verify checks that the target holds the data written by the last pass.
	// Mismatches should be reported as *VerificationError.
	Verify(ctx context.Context, report ReportFunc) error
}

// Preparer is implemented by executors that need to open or probe the
// device during the initialize phase.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Finalizer is implemented by executors that flush or release the device
// during the finalize phase.
type Finalizer interface {
	Finalize(ctx context.Context) error
}

// Releaser is implemented by executors that hold the device open. Release
// is called exactly once when a run ends, whatever its outcome.
type Releaser interface {
	Release() error
}

// ExecutorFactory builds the executor for one drive.
type ExecutorFactory func(drive DriveDescriptor) (EraseExecutor, error)
