//go:build !linux

package fs

import (
	"io/fs"

	"wipe-go/internal/wipe"
)

type deviceAttrs struct {
	model  string
	serial string
	media  wipe.MediaType
}

// probe is not implemented outside Linux; identity comes from overrides.
func (m *DeviceManager) probe(fs.FileInfo) deviceAttrs {
	return deviceAttrs{media: wipe.MediaUnknown}
}
