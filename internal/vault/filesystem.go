package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"wipe-go/internal/wipe"
)

// FileSystemVault stores certificate documents as files:
//
//	<root>/
//	  certificates/
//	    <certificate ID>
type FileSystemVault struct {
	name    string
	root    string
	certDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	certDir := filepath.Join(root, "certificates")
	if err := os.MkdirAll(certDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create certificates directory: %w", err)
	}

	return &FileSystemVault{
		name:    name,
		root:    root,
		certDir: certDir,
	}, nil
}

func (v *FileSystemVault) Name() string { return v.name }

// PutCertificate stores a certificate document. The document is written to
// a temp file first and then linked into place, which fails if the ID is
// already taken.
func (v *FileSystemVault) PutCertificate(certificateID string, r io.Reader, size int64) error {
	if err := validateID(certificateID); err != nil {
		return err
	}
	destPath := filepath.Join(v.certDir, certificateID)

	tmpFile, err := os.CreateTemp(v.certDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Link(tmpPath, destPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", certificateID, wipe.ErrCertificateExists)
		}
		return fmt.Errorf("failed to link certificate into place: %w", err)
	}
	return nil
}

// GetCertificate retrieves a certificate document and writes it to w.
func (v *FileSystemVault) GetCertificate(certificateID string, w io.Writer) error {
	if err := validateID(certificateID); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(v.certDir, certificateID))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", certificateID, wipe.ErrCertificateNotFound)
		}
		return fmt.Errorf("failed to open certificate: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	return nil
}

// List returns the stored certificate IDs in sorted order.
func (v *FileSystemVault) List() ([]string, error) {
	entries, err := os.ReadDir(v.certDir)
	if err != nil {
		return nil, fmt.Errorf("listing certificates: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	slices.Sort(ids)
	return ids, nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.certDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// Compile-time check that FileSystemVault implements wipe.Vault interface
var _ wipe.Vault = (*FileSystemVault)(nil)
