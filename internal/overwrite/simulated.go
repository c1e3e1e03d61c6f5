package overwrite

import (
	"context"
	"time"

	"wipe-go/internal/wipe"
)

const simulatedSteps = 10

// SimulatedExecutor walks through every phase without touching the drive.
// It is meant for demos and operator training.
type SimulatedExecutor struct {
	drive  wipe.DriveDescriptor
	delay  time.Duration
	logger wipe.Logger
}

var _ wipe.EraseExecutor = (*SimulatedExecutor)(nil)

// NewSimulatedExecutor creates an executor that spends delay on every
// phase, reporting progress in steps.
func NewSimulatedExecutor(drive wipe.DriveDescriptor, delay time.Duration, logger wipe.Logger) *SimulatedExecutor {
	return &SimulatedExecutor{drive: drive, delay: delay, logger: logger}
}

func (e *SimulatedExecutor) ExecutePass(ctx context.Context, pass wipe.Pass, report wipe.ReportFunc) error {
	e.logger.Debug("simulating pass", "drive", e.drive.Path, "pass", pass.Index+1, "of", pass.Total, "pattern", pass.Pattern)
	return e.tick(ctx, report)
}

func (e *SimulatedExecutor) Verify(ctx context.Context, report wipe.ReportFunc) error {
	return e.tick(ctx, report)
}

func (e *SimulatedExecutor) tick(ctx context.Context, report wipe.ReportFunc) error {
	step := e.delay / simulatedSteps
	for i := 1; i <= simulatedSteps; i++ {
		if step > 0 {
			timer := time.NewTimer(step)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		report(float64(i) / simulatedSteps)
	}
	return nil
}
