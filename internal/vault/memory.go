package vault

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sync"

	"wipe-go/internal/wipe"
)

// MemoryVault is an in-memory implementation of the Vault interface, useful
// for tests and dry runs. It is safe for concurrent use.
type MemoryVault struct {
	name string
	docs map[string][]byte // certificate ID -> document
	mu   sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name: name,
		docs: make(map[string][]byte),
	}
}

func (m *MemoryVault) Name() string { return m.name }

// PutCertificate stores a certificate document.
func (m *MemoryVault) PutCertificate(certificateID string, r io.Reader, size int64) error {
	if err := validateID(certificateID); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[certificateID]; ok {
		return fmt.Errorf("%s: %w", certificateID, wipe.ErrCertificateExists)
	}
	m.docs[certificateID] = data
	return nil
}

// GetCertificate retrieves a certificate document.
func (m *MemoryVault) GetCertificate(certificateID string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[certificateID]
	if !ok {
		return fmt.Errorf("%s: %w", certificateID, wipe.ErrCertificateNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	return nil
}

// List returns the stored certificate IDs in sorted order.
func (m *MemoryVault) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements wipe.Vault interface
var _ wipe.Vault = (*MemoryVault)(nil)
