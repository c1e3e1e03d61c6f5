package overwrite

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"wipe-go/internal/config"
	"wipe-go/internal/fs"
	"wipe-go/internal/testutil"
	"wipe-go/internal/wipe"
)

func TestNewExecutorFactoryFromConfig_Device(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	original := bytes.Repeat([]byte{0xAA}, 64*1024)
	if err := os.WriteFile(path, original, 0o600); err != nil {
		t.Fatal(err)
	}

	devices := fs.NewDeviceManager(nil)
	drive, err := devices.Describe(path, fs.Overrides{})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}

	factory, err := NewExecutorFactoryFromConfig(config.ExecutorConfig{Type: "device", BlockSize: 4096, Verify: "full"}, devices, wipe.NewNopLogger())
	if err != nil {
		t.Fatalf("NewExecutorFactoryFromConfig() error = %v", err)
	}
	executor, err := factory(drive)
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	if _, ok := executor.(*Executor); !ok {
		t.Fatalf("factory() = %T, want *Executor", executor)
	}

	s := wipe.NewScheduler(wipe.NewNopLogger(), testutil.FixedClock())
	outcome, err := s.Run(context.Background(), wipe.Resolve(wipe.MethodSecure), executor, nil)
	if err != nil || !outcome.Success {
		t.Fatalf("Run() = %+v, %v", outcome, err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(original) {
		t.Errorf("image size changed: %d -> %d", len(original), len(after))
	}
	if bytes.Contains(after, bytes.Repeat([]byte{0xAA}, 64)) {
		t.Error("image still contains original data")
	}
}

func TestNewExecutorFactoryFromConfig_Simulated(t *testing.T) {
	factory, err := NewExecutorFactoryFromConfig(config.ExecutorConfig{Type: "simulated"}, nil, wipe.NewNopLogger())
	if err != nil {
		t.Fatalf("NewExecutorFactoryFromConfig() error = %v", err)
	}
	executor, err := factory(wipe.DriveDescriptor{Path: "/dev/sim"})
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	if _, ok := executor.(*SimulatedExecutor); !ok {
		t.Errorf("factory() = %T, want *SimulatedExecutor", executor)
	}
}

func TestNewExecutorFactoryFromConfig_Unknown(t *testing.T) {
	if _, err := NewExecutorFactoryFromConfig(config.ExecutorConfig{Type: "magnet"}, nil, wipe.NewNopLogger()); err == nil {
		t.Error("NewExecutorFactoryFromConfig(magnet) succeeded")
	}
}
