package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"wipe-go/internal/wipe"
)

type lister interface {
	List() ([]string, error)
}

// testVaultContract runs the behavior every wipe.Vault must share.
func testVaultContract(t *testing.T, newVault func(t *testing.T) wipe.Vault) {
	t.Run("put then get", func(t *testing.T) {
		v := newVault(t)
		doc := `{"certificate_id":"CERT-2024-A"}`

		if err := v.PutCertificate("CERT-2024-A", strings.NewReader(doc), int64(len(doc))); err != nil {
			t.Fatalf("PutCertificate() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetCertificate("CERT-2024-A", &buf); err != nil {
			t.Fatalf("GetCertificate() error = %v", err)
		}
		if buf.String() != doc {
			t.Errorf("GetCertificate() = %q, want %q", buf.String(), doc)
		}
	})

	t.Run("write once", func(t *testing.T) {
		v := newVault(t)
		if err := v.PutCertificate("CERT-2024-A", strings.NewReader("one"), 3); err != nil {
			t.Fatalf("first PutCertificate() error = %v", err)
		}

		err := v.PutCertificate("CERT-2024-A", strings.NewReader("two"), 3)
		if !errors.Is(err, wipe.ErrCertificateExists) {
			t.Fatalf("second PutCertificate() error = %v, want ErrCertificateExists", err)
		}

		var buf bytes.Buffer
		if err := v.GetCertificate("CERT-2024-A", &buf); err != nil {
			t.Fatalf("GetCertificate() error = %v", err)
		}
		if buf.String() != "one" {
			t.Errorf("document replaced: got %q", buf.String())
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		v := newVault(t)
		if err := v.PutCertificate("CERT-2024-B", strings.NewReader("short"), 100); err == nil {
			t.Error("PutCertificate() with wrong size succeeded")
		}
	})

	t.Run("missing certificate", func(t *testing.T) {
		v := newVault(t)
		var buf bytes.Buffer
		err := v.GetCertificate("CERT-2024-NOPE", &buf)
		if !errors.Is(err, wipe.ErrCertificateNotFound) {
			t.Errorf("GetCertificate() error = %v, want ErrCertificateNotFound", err)
		}
	})

	t.Run("rejects path-like IDs", func(t *testing.T) {
		v := newVault(t)
		for _, id := range []string{"", "..", "../escape", "a/b", ".hidden"} {
			if err := v.PutCertificate(id, strings.NewReader("x"), 1); err == nil {
				t.Errorf("PutCertificate(%q) succeeded", id)
			}
		}
	})

	t.Run("list", func(t *testing.T) {
		v := newVault(t)
		l, ok := v.(lister)
		if !ok {
			t.Skip("vault does not list")
		}
		for _, id := range []string{"CERT-2024-B", "CERT-2024-A"} {
			if err := v.PutCertificate(id, strings.NewReader("x"), 1); err != nil {
				t.Fatalf("PutCertificate(%s) error = %v", id, err)
			}
		}
		ids, err := l.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(ids) != 2 || ids[0] != "CERT-2024-A" || ids[1] != "CERT-2024-B" {
			t.Errorf("List() = %q", ids)
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		if err := newVault(t).ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}

func TestMemoryVault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) wipe.Vault {
		return NewMemoryVault("mem")
	})
}

func TestFileSystemVault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) wipe.Vault {
		v, err := NewFileSystemVault("local", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		return v
	})
}

func TestS3Vault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) wipe.Vault {
		fake := newFakeS3()
		return newS3Vault("offsite", "erase-certs", "/bench-01/", fake, fake)
	})
}
