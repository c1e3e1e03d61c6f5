package wipe

import (
	"fmt"
	"strings"
)

// MediaType classifies the storage technology behind a drive.
type MediaType string

const (
	MediaHDD     MediaType = "HDD"
	MediaSSD     MediaType = "SSD"
	MediaNVMe    MediaType = "NVMe"
	MediaUnknown MediaType = "Unknown"
)

// ParseMediaType maps a case-insensitive name to a MediaType.
// Unrecognized names map to MediaUnknown.
func ParseMediaType(s string) MediaType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hdd":
		return MediaHDD
	case "ssd":
		return MediaSSD
	case "nvme":
		return MediaNVMe
	default:
		return MediaUnknown
	}
}

// DriveDescriptor identifies exactly one physical erase target.
// It is a value type: every copy is an independent snapshot, so a certificate
// holding a copy is never affected by later changes to the caller's descriptor.
type DriveDescriptor struct {
	Path          string    `json:"path" yaml:"path" toml:"path"`
	DisplayName   string    `json:"display_name" yaml:"display_name" toml:"display_name"`
	CapacityBytes int64     `json:"capacity_bytes" yaml:"capacity_bytes" toml:"capacity_bytes"`
	MediaType     MediaType `json:"media_type" yaml:"media_type" toml:"media_type"`
	Model         string    `json:"model" yaml:"model" toml:"model"`
	Serial        string    `json:"serial" yaml:"serial" toml:"serial"`
}

// NewDriveDescriptor validates the identity fields and returns a descriptor.
// An empty display name defaults to the path.
func NewDriveDescriptor(path, displayName string, capacityBytes int64, mediaType MediaType, model, serial string) (DriveDescriptor, error) {
	if strings.TrimSpace(path) == "" {
		return DriveDescriptor{}, fmt.Errorf("drive path is required")
	}
	if capacityBytes < 0 {
		return DriveDescriptor{}, fmt.Errorf("drive capacity must not be negative: %d", capacityBytes)
	}
	if displayName == "" {
		displayName = path
	}
	if mediaType == "" {
		mediaType = MediaUnknown
	}
	return DriveDescriptor{
		Path:          path,
		DisplayName:   displayName,
		CapacityBytes: capacityBytes,
		MediaType:     mediaType,
		Model:         model,
		Serial:        serial,
	}, nil
}

// Summary renders the one-line drive description shown before erasing,
// e.g. "/dev/sda – 500GB HDD".
func (d DriveDescriptor) Summary() string {
	return fmt.Sprintf("%s – %s %s", d.Path, FormatCapacity(d.CapacityBytes), d.MediaType)
}

// FormatCapacity renders a byte count with decimal units, the way drive
// vendors label capacity (500GB, 1TB).
func FormatCapacity(bytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(bytes)
	i := 0
	for value >= 1000 && i < len(units)-1 {
		value /= 1000
		i++
	}
	if value == float64(int64(value)) {
		return fmt.Sprintf("%d%s", int64(value), units[i])
	}
	return fmt.Sprintf("%.1f%s", value, units[i])
}
