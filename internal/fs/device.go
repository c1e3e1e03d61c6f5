// Package fs resolves erase targets on the local machine: block devices and
// disk image files.
package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"wipe-go/internal/wipe"
)

// ErrProtected is returned when a path matches a protected pattern.
var ErrProtected = errors.New("device is protected")

// Overrides replace probed identity fields. Empty fields keep the probed
// value.
type Overrides struct {
	DisplayName string
	Model       string
	Serial      string
	MediaType   wipe.MediaType
}

// DeviceManager turns operator-supplied paths into drive descriptors and
// opens them for erasing.
type DeviceManager struct {
	protect *ProtectMatcher
	sysRoot string
}

// NewDeviceManager creates a DeviceManager. protect may be nil.
func NewDeviceManager(protect *ProtectMatcher) *DeviceManager {
	return &DeviceManager{protect: protect, sysRoot: "/sys"}
}

// Resolve returns the absolute, symlink-free path of an erase target and
// its file info. Directories, pipes, sockets and character devices are
// rejected, as are protected paths.
func (m *DeviceManager) Resolve(rawPath string) (string, fs.FileInfo, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	// /dev/disk/by-id/* are symlinks; the certificate records the real node.
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving symlinks: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode.IsDir():
		return "", nil, fmt.Errorf("directories cannot be erased: %s", resolved)
	case mode&os.ModeNamedPipe != 0:
		return "", nil, fmt.Errorf("named pipes cannot be erased: %s", resolved)
	case mode&os.ModeSocket != 0:
		return "", nil, fmt.Errorf("sockets cannot be erased: %s", resolved)
	case mode&os.ModeCharDevice != 0:
		return "", nil, fmt.Errorf("character devices cannot be erased: %s", resolved)
	}

	for _, candidate := range []string{absPath, resolved} {
		if pattern, ok := m.protect.Match(candidate); ok {
			return "", nil, fmt.Errorf("%s matches %q: %w", candidate, pattern, ErrProtected)
		}
	}
	return resolved, info, nil
}

// Describe resolves rawPath and builds its drive descriptor from the file
// size and, for block devices, the kernel's device attributes.
func (m *DeviceManager) Describe(rawPath string, o Overrides) (wipe.DriveDescriptor, error) {
	path, info, err := m.Resolve(rawPath)
	if err != nil {
		return wipe.DriveDescriptor{}, err
	}

	var attrs deviceAttrs
	capacity := info.Size()
	if isBlockDevice(info) {
		if capacity, err = deviceSize(path); err != nil {
			return wipe.DriveDescriptor{}, err
		}
		attrs = m.probe(info)
	}

	media := attrs.media
	if o.MediaType != "" {
		media = o.MediaType
	}
	model := firstNonEmpty(o.Model, attrs.model)
	serial := firstNonEmpty(o.Serial, attrs.serial)

	return wipe.NewDriveDescriptor(path, o.DisplayName, capacity, media, model, serial)
}

// OpenForErase opens a resolved target for reading and writing and returns
// its size. Block devices are opened exclusively, which fails while any
// partition on them is mounted.
func (m *DeviceManager) OpenForErase(path string) (*os.File, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("stat path: %w", err)
	}
	if !isBlockDevice(info) && !info.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("not a block device or regular file: %s", path)
	}
	if pattern, ok := m.protect.Match(path); ok {
		return nil, 0, fmt.Errorf("%s matches %q: %w", path, pattern, ErrProtected)
	}

	flags := os.O_RDWR
	if isBlockDevice(info) {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("measuring %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("rewinding %s: %w", path, err)
	}
	return f, size, nil
}

func isBlockDevice(info fs.FileInfo) bool {
	mode := info.Mode()
	return mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0
}

// deviceSize returns the size of a block device by seeking to its end.
func deviceSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("measuring %s: %w", path, err)
	}
	return size, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
