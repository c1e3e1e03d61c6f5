package certdoc

import (
	"bytes"
	"errors"
	"fmt"

	"wipe-go/internal/encryption"
	"wipe-go/internal/wipe"
)

// Target is one vault an Archiver writes to.
type Target struct {
	Vault   wipe.Vault
	Encrypt bool
}

// Archiver implements wipe.Archiver: it renders each certificate once and
// writes it to every target, encrypting for targets that ask for it.
type Archiver struct {
	targets   []Target
	format    Format
	encryptor wipe.Encryptor
	logger    wipe.Logger
}

var _ wipe.Archiver = (*Archiver)(nil)

// NewArchiver creates an Archiver. encryptor may be nil if no target sets
// Encrypt.
func NewArchiver(targets []Target, format Format, encryptor wipe.Encryptor, logger wipe.Logger) (*Archiver, error) {
	if format == FormatText {
		return nil, fmt.Errorf("text certificates cannot be archived")
	}
	for _, t := range targets {
		if t.Encrypt && encryptor == nil {
			return nil, fmt.Errorf("vault %s requires encryption but no encryptor is configured", t.Vault.Name())
		}
	}
	return &Archiver{targets: targets, format: format, encryptor: encryptor, logger: logger}, nil
}

// Archive writes cert to every target. A failing target does not stop the
// others; all failures are returned together.
func (a *Archiver) Archive(cert wipe.Certificate) error {
	doc, err := Render(cert, a.format)
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range a.targets {
		payload := doc
		if t.Encrypt {
			var buf bytes.Buffer
			if err := a.encryptor.Encrypt(bytes.NewReader(doc), &buf); err != nil {
				errs = append(errs, fmt.Errorf("vault %s: encrypting %s: %w", t.Vault.Name(), cert.ID, err))
				continue
			}
			payload = buf.Bytes()
		}

		if err := t.Vault.PutCertificate(cert.ID, bytes.NewReader(payload), int64(len(payload))); err != nil {
			errs = append(errs, fmt.Errorf("vault %s: %w", t.Vault.Name(), err))
			continue
		}
		a.logger.Debug("certificate stored", "certificate_id", cert.ID, "vault", t.Vault.Name(), "encrypted", t.Encrypt, "bytes", len(payload))
	}
	return errors.Join(errs...)
}

// Fetch reads a certificate document from the first vault that has it.
// Encrypted documents are decrypted with dc; a nil dc makes encrypted
// documents an error.
func Fetch(vaults []wipe.Vault, certificateID string, dc wipe.DecryptionContext) ([]byte, error) {
	var lastErr error
	for _, v := range vaults {
		var buf bytes.Buffer
		err := v.GetCertificate(certificateID, &buf)
		if errors.Is(err, wipe.ErrCertificateNotFound) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("vault %s: %w", v.Name(), err)
		}

		data := buf.Bytes()
		if !encryption.IsEncrypted(data) {
			return data, nil
		}
		if dc == nil {
			return nil, fmt.Errorf("certificate %s in vault %s is encrypted: %w", certificateID, v.Name(), ErrLocked)
		}
		var plain bytes.Buffer
		if err := dc.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return nil, fmt.Errorf("decrypting %s from vault %s: %w", certificateID, v.Name(), err)
		}
		return plain.Bytes(), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%s: %w", certificateID, wipe.ErrCertificateNotFound)
	}
	return nil, lastErr
}

// ErrLocked is returned by Fetch when a document is encrypted and no
// decryption context was supplied.
var ErrLocked = errors.New("encrypted certificate needs an unlocked key")

// Verification is the result of checking a certificate document.
type Verification struct {
	Certificate wipe.Certificate
	Format      Format
	SealValid   bool
}

// Verify parses a plaintext certificate document and checks its seal.
func Verify(data []byte) (Verification, error) {
	format := Detect(data)
	cert, err := Parse(data, format)
	if err != nil {
		return Verification{}, err
	}
	ok, err := cert.VerifySeal()
	if err != nil {
		return Verification{}, fmt.Errorf("checking seal: %w", err)
	}
	return Verification{Certificate: cert, Format: format, SealValid: ok}, nil
}
