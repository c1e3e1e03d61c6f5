//go:build linux

package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"wipe-go/internal/wipe"
)

// deviceAttrs holds what the kernel reports about a block device.
type deviceAttrs struct {
	model  string
	serial string
	media  wipe.MediaType
}

func (m *DeviceManager) probe(info fs.FileInfo) deviceAttrs {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return deviceAttrs{}
	}
	return probeSysfs(m.sysRoot, unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev)))
}

// probeSysfs reads model, serial and rotational flags from
// <sysRoot>/dev/block/<major>:<minor>. Partitions report the attributes of
// their parent disk. Missing attributes are left empty.
func probeSysfs(sysRoot string, major, minor uint32) deviceAttrs {
	dir := filepath.Join(sysRoot, "dev", "block", fmt.Sprintf("%d:%d", major, minor))
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	if _, err := os.Stat(filepath.Join(dir, "partition")); err == nil {
		dir = filepath.Dir(dir)
	}

	attrs := deviceAttrs{
		model:  readAttr(dir, "device", "model"),
		serial: readAttr(dir, "device", "serial"),
		media:  wipe.MediaUnknown,
	}
	if attrs.serial == "" {
		attrs.serial = readAttr(dir, "serial")
	}

	switch {
	case strings.HasPrefix(filepath.Base(dir), "nvme"):
		attrs.media = wipe.MediaNVMe
	case readAttr(dir, "queue", "rotational") == "1":
		attrs.media = wipe.MediaHDD
	case readAttr(dir, "queue", "rotational") == "0":
		attrs.media = wipe.MediaSSD
	}
	return attrs
}

func readAttr(elem ...string) string {
	data, err := os.ReadFile(filepath.Join(elem...))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
