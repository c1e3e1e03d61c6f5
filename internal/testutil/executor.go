package testutil

import (
	"context"
	"fmt"
	"sync"

	"wipe-go/internal/wipe"
)

// ScriptedExecutor is an in-memory EraseExecutor whose behavior per phase is
// set up by the test. It records every call in order.
type ScriptedExecutor struct {
	// Steps is the number of in-phase progress reports per pass and verify.
	Steps int

	// PrepareErr, PassErrs, VerifyErr and FinalizeErr are returned from the
	// corresponding phase when set. PassErrs is keyed by pass index.
	PrepareErr  error
	PassErrs    map[int]error
	VerifyErr   error
	FinalizeErr error

	// BlockPass makes ExecutePass for that index block until ctx is
	// cancelled. Entered is closed when the blocking pass starts.
	BlockPass int
	Entered   chan struct{}

	mu    sync.Mutex
	calls []string
}

// NewScriptedExecutor returns an executor that succeeds at every phase.
func NewScriptedExecutor() *ScriptedExecutor {
	return &ScriptedExecutor{
		Steps:     2,
		PassErrs:  make(map[int]error),
		BlockPass: -1,
		Entered:   make(chan struct{}),
	}
}

// Factory returns a wipe.ExecutorFactory that always hands out e.
func (e *ScriptedExecutor) Factory() wipe.ExecutorFactory {
	return func(wipe.DriveDescriptor) (wipe.EraseExecutor, error) {
		return e, nil
	}
}

// Calls returns the recorded calls, e.g. "prepare", "pass 0 random", "verify".
func (e *ScriptedExecutor) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *ScriptedExecutor) record(call string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
}

func (e *ScriptedExecutor) Prepare(ctx context.Context) error {
	e.record("prepare")
	return e.PrepareErr
}

func (e *ScriptedExecutor) ExecutePass(ctx context.Context, pass wipe.Pass, report wipe.ReportFunc) error {
	e.record(fmt.Sprintf("pass %d %s", pass.Index, pass.Pattern))
	if pass.Index == e.BlockPass {
		close(e.Entered)
		<-ctx.Done()
		return ctx.Err()
	}
	if err := e.PassErrs[pass.Index]; err != nil {
		return err
	}
	e.step(report)
	return nil
}

func (e *ScriptedExecutor) Verify(ctx context.Context, report wipe.ReportFunc) error {
	e.record("verify")
	if e.VerifyErr != nil {
		return e.VerifyErr
	}
	e.step(report)
	return nil
}

func (e *ScriptedExecutor) Finalize(ctx context.Context) error {
	e.record("finalize")
	return e.FinalizeErr
}

func (e *ScriptedExecutor) step(report wipe.ReportFunc) {
	for i := 1; i <= e.Steps; i++ {
		report(float64(i) / float64(e.Steps+1))
	}
}

// Compile-time checks
var (
	_ wipe.EraseExecutor = (*ScriptedExecutor)(nil)
	_ wipe.Preparer      = (*ScriptedExecutor)(nil)
	_ wipe.Finalizer     = (*ScriptedExecutor)(nil)
)

// RecordingObserver collects every snapshot a session publishes.
type RecordingObserver struct {
	mu        sync.Mutex
	snapshots []wipe.Snapshot
}

// Observe is a wipe.Observer.
func (r *RecordingObserver) Observe(s wipe.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

// Snapshots returns a copy of the collected snapshots.
func (r *RecordingObserver) Snapshots() []wipe.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wipe.Snapshot(nil), r.snapshots...)
}
