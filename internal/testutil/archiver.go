package testutil

import (
	"sync"

	"wipe-go/internal/wipe"
)

// RecordingArchiver is a wipe.Archiver that keeps every certificate it is
// given. Err, when set, is returned instead.
type RecordingArchiver struct {
	Err error

	mu    sync.Mutex
	certs []wipe.Certificate
}

func (a *RecordingArchiver) Archive(cert wipe.Certificate) error {
	if a.Err != nil {
		return a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.certs = append(a.certs, cert.Clone())
	return nil
}

// Certificates returns the archived certificates in order.
func (a *RecordingArchiver) Certificates() []wipe.Certificate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]wipe.Certificate(nil), a.certs...)
}

var _ wipe.Archiver = (*RecordingArchiver)(nil)
