package wipe

import (
	"errors"
	"io"
)

var (
	// ErrCertificateExists is returned when a vault already holds a document
	// for the certificate ID.
	ErrCertificateExists = errors.New("certificate already archived")

	// ErrCertificateNotFound is returned when a vault has no document for
	// the certificate ID.
	ErrCertificateNotFound = errors.New("certificate not found")
)

// Vault stores archived certificate documents. Documents are keyed by
// certificate ID and are write-once: storing an ID that already exists
// returns ErrCertificateExists, so an archived certificate can never be
// replaced.
type Vault interface {
	// Name returns the configured name of the vault.
	Name() string

	// PutCertificate stores a certificate document.
	// size is the number of bytes that will be read from r.
	PutCertificate(certificateID string, r io.Reader, size int64) error

	// GetCertificate retrieves a certificate document and writes it to w.
	// It returns an error wrapping ErrCertificateNotFound if there is none.
	GetCertificate(certificateID string, w io.Writer) error

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}

// Archiver hands an issued certificate to durable storage.
type Archiver interface {
	Archive(cert Certificate) error
}
