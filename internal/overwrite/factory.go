package overwrite

import (
	"fmt"
	"time"

	"wipe-go/internal/config"
	"wipe-go/internal/fs"
	"wipe-go/internal/wipe"
)

// NewExecutorFactoryFromConfig returns the factory the service uses to build
// an executor for each drive it erases.
func NewExecutorFactoryFromConfig(cfg config.ExecutorConfig, devices *fs.DeviceManager, logger wipe.Logger) (wipe.ExecutorFactory, error) {
	switch cfg.Type {
	case "device":
		opts := Options{
			BlockSize:         cfg.BlockSize,
			MaxBytesPerSecond: cfg.MaxBytesPerSecond,
			Verify:            VerifyMode(cfg.Verify),
			VerifySamples:     cfg.VerifySamples,
		}
		open := func(path string) (Target, int64, error) {
			f, size, err := devices.OpenForErase(path)
			if err != nil {
				return nil, 0, err
			}
			return f, size, nil
		}
		return func(drive wipe.DriveDescriptor) (wipe.EraseExecutor, error) {
			return NewExecutor(drive.Path, open, opts, logger), nil
		}, nil

	case "simulated":
		delay := time.Duration(cfg.PhaseDelayMillis) * time.Millisecond
		return func(drive wipe.DriveDescriptor) (wipe.EraseExecutor, error) {
			return NewSimulatedExecutor(drive, delay, logger), nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown executor type: %s", cfg.Type)
	}
}
