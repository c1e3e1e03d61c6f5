package overwrite

import (
	"context"
	"errors"
	"testing"
	"time"

	"wipe-go/internal/testutil"
	"wipe-go/internal/wipe"
)

func TestSimulatedExecutor_Run(t *testing.T) {
	drive, _ := wipe.NewDriveDescriptor("/dev/sim", "", 1<<30, wipe.MediaSSD, "", "")
	e := NewSimulatedExecutor(drive, 0, wipe.NewNopLogger())
	s := wipe.NewScheduler(wipe.NewNopLogger(), testutil.FixedClock())

	var last wipe.ProgressState
	outcome, err := s.Run(context.Background(), wipe.Resolve(wipe.MethodSecure), e, func(st wipe.ProgressState) { last = st })
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !outcome.Success || outcome.PassesCompleted != 3 {
		t.Errorf("outcome = %+v", outcome)
	}
	if last.Percent != 100 {
		t.Errorf("final percent = %v, want 100", last.Percent)
	}
}

func TestSimulatedExecutor_Cancel(t *testing.T) {
	drive, _ := wipe.NewDriveDescriptor("/dev/sim", "", 1<<30, wipe.MediaSSD, "", "")
	e := NewSimulatedExecutor(drive, time.Hour, wipe.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.ExecutePass(ctx, wipe.Pass{Total: 1, Pattern: wipe.PatternRandom}, func(float64) {})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ExecutePass() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ExecutePass() did not return after cancel")
	}
}
