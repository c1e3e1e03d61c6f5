package wipe

import (
	"context"
	"errors"
	"time"
)

// EraseOutcome is the terminal result of one run.
type EraseOutcome struct {
	Success         bool      `json:"success" yaml:"success" toml:"success"`
	FailureReason   ErrorKind `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty" toml:"failure_reason,omitempty"`
	PassesCompleted int       `json:"passes_completed" yaml:"passes_completed" toml:"passes_completed"`
	CompletedAt     time.Time `json:"completed_at" yaml:"completed_at" toml:"completed_at"`
}

// ProgressFunc receives every progress update of a run, in order.
type ProgressFunc func(ProgressState)

// Scheduler drives an ErasePlan against an EraseExecutor, one phase at a time.
type Scheduler struct {
	logger Logger
	clock  Clock
}

// NewScheduler creates a Scheduler.
func NewScheduler(logger Logger, clock Clock) *Scheduler {
	return &Scheduler{logger: logger, clock: clock}
}

// Run executes every phase of plan in order and blocks until the run ends.
//
// Progress starts at 0% and only increases; 100% is reported only after the
// finalize phase succeeds. Cancelling ctx stops the run before the next phase
// (or inside a phase, if the executor honors ctx) and returns an *EraseError
// matching ErrCancelled. An executor error aborts the remaining phases and
// returns an *EraseError matching ErrExecutionFailed. Nothing is retried.
func (s *Scheduler) Run(ctx context.Context, plan ErasePlan, executor EraseExecutor, onProgress ProgressFunc) (EraseOutcome, error) {
	if r, ok := executor.(Releaser); ok {
		defer func() {
			if err := r.Release(); err != nil {
				s.logger.Warn("releasing device failed", "error", err)
			}
		}()
	}

	tracker := NewProgressTracker(plan)
	publish := func(st ProgressState) {
		if onProgress != nil {
			onProgress(st)
		}
	}
	publish(tracker.Snapshot())

	phases := plan.PhaseCount()
	passesDone := 0

	for i := 0; i < phases; i++ {
		if ctx.Err() != nil {
			return s.stop(KindCancelled, tracker, passesDone, ctx.Err())
		}

		phase := i
		report := func(fraction float64) {
			if st, changed := tracker.ReportWithin(phase, fraction); changed {
				publish(st)
			}
		}

		err := s.runPhase(ctx, plan, executor, phase, report)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return s.stop(KindCancelled, tracker, passesDone, err)
			}
			return s.stop(KindExecutionFailed, tracker, passesDone, classify(plan, phase, err))
		}
		// A cancel that raced with a completing phase still wins, so a
		// cancelled run never reports 100%.
		if ctx.Err() != nil {
			return s.stop(KindCancelled, tracker, passesDone, ctx.Err())
		}

		if isOverwritePhase(plan, phase) {
			passesDone++
		}
		if st, changed := tracker.CompletePhase(phase); changed {
			publish(st)
		}
		s.logger.Debug("phase completed", "phase", phase, "label", plan.PassLabels[phase])
	}

	return EraseOutcome{
		Success:         true,
		PassesCompleted: passesDone,
		CompletedAt:     s.clock.Now(),
	}, nil
}

// runPhase dispatches phase i to the executor. Phase 0 is initialize, the
// last two phases are verify and finalize, everything between is an
// overwrite pass.
func (s *Scheduler) runPhase(ctx context.Context, plan ErasePlan, executor EraseExecutor, phase int, report ReportFunc) error {
	last := plan.PhaseCount() - 1
	switch {
	case phase == 0:
		if p, ok := executor.(Preparer); ok {
			return p.Prepare(ctx)
		}
		return nil
	case phase == last:
		if f, ok := executor.(Finalizer); ok {
			return f.Finalize(ctx)
		}
		return nil
	case phase == last-1:
		return executor.Verify(ctx, report)
	default:
		idx := phase - 1
		return executor.ExecutePass(ctx, Pass{
			Index:   idx,
			Total:   plan.PassCount,
			Pattern: plan.Patterns[idx],
		}, report)
	}
}

func (s *Scheduler) stop(kind ErrorKind, tracker *ProgressTracker, passesDone int, cause error) (EraseOutcome, error) {
	st := tracker.Snapshot()
	eraseErr := &EraseError{
		Kind:            kind,
		PhaseIndex:      st.PhaseIndex,
		PhaseLabel:      st.PhaseLabel,
		PassesCompleted: passesDone,
		Percent:         st.Percent,
		Err:             cause,
	}
	if kind == KindCancelled {
		s.logger.Warn("erase cancelled", "phase", st.PhaseLabel, "passes_completed", passesDone, "percent", st.Percent)
	} else {
		s.logger.Error("erase failed", "phase", st.PhaseLabel, "passes_completed", passesDone, "error", cause)
	}
	return EraseOutcome{
		Success:         false,
		FailureReason:   kind,
		PassesCompleted: passesDone,
		CompletedAt:     s.clock.Now(),
	}, eraseErr
}

func isOverwritePhase(plan ErasePlan, phase int) bool {
	return phase >= 1 && phase <= plan.PassCount
}

// classify makes sure every executor failure is a *DeviceError or a
// *VerificationError.
func classify(plan ErasePlan, phase int, err error) error {
	var devErr *DeviceError
	var verErr *VerificationError
	if errors.As(err, &devErr) || errors.As(err, &verErr) {
		return err
	}
	if phase == plan.PhaseCount()-2 {
		return &VerificationError{Offset: -1, Err: err}
	}
	return &DeviceError{Op: plan.PassLabels[phase], Err: err}
}
