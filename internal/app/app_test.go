package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wipe-go/internal/certdoc"
	"wipe-go/internal/config"
	"wipe-go/internal/fs"
	"wipe-go/internal/model"
	"wipe-go/internal/wipe"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig("bench-01", base)
	cfg.Executor = config.ExecutorConfig{Type: "simulated"}
	cfg.Journal = config.JournalConfig{Type: "memory"}
	cfg.Archives = []config.ArchiveConfig{
		{Type: "filesystem", Name: "local", FSVaultRoot: filepath.Join(base, "certificates"), Encrypt: true},
	}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *WipeApp {
	t.Helper()
	a, err := NewWipeApp(context.Background(), cfg, "Test", "")
	if err != nil {
		t.Fatalf("NewWipeApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func writeImage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "disk.img")
	if err := os.WriteFile(path, make([]byte, 64*1024), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func eraseToCompletion(t *testing.T, a *WipeApp, path string) wipe.Certificate {
	t.Helper()
	sess, err := a.StartWorkflow(path, fs.Overrides{Model: "Image", Serial: "IMG-0001"})
	if err != nil {
		t.Fatalf("StartWorkflow() error = %v", err)
	}
	if _, err := sess.SelectMethod(wipe.MethodSecure); err != nil {
		t.Fatalf("SelectMethod() error = %v", err)
	}
	if _, err := sess.RequestErase(); err != nil {
		t.Fatalf("RequestErase() error = %v", err)
	}
	if _, err := sess.SubmitConfirmation(wipe.ConfirmationDecision{TypedText: "DELETE"}); err != nil {
		t.Fatalf("SubmitConfirmation() error = %v", err)
	}
	snap := sess.Wait()
	if snap.State != wipe.StateCompleted {
		t.Fatalf("state = %s, err = %v, want completed", snap.State, snap.Err)
	}
	cert, ok := sess.Certificate()
	if !ok {
		t.Fatal("no certificate issued")
	}
	return cert
}

func TestWipeApp_EraseJournalsAndArchives(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)
	cert := eraseToCompletion(t, a, writeImage(t, t.TempDir()))

	if cert.StationID != "bench-01" || cert.Drive.Serial != "IMG-0001" {
		t.Errorf("certificate = %+v", cert)
	}

	history, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].Status != model.AttemptCompleted || history[0].CertificateID != cert.ID {
		t.Fatalf("History() = %+v", history)
	}

	t.Run("archived document is encrypted", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(cfg.Archives[0].FSVaultRoot, "certificates", cert.ID))
		if err != nil {
			t.Fatalf("reading archived certificate: %v", err)
		}
		if _, err := certdoc.Verify(data); err == nil {
			t.Error("archived document parsed as plaintext")
		}
	})

	t.Run("fetch asks for the passphrase", func(t *testing.T) {
		asked := false
		v, err := a.FetchCertificate(cert.ID, func() (string, error) {
			asked = true
			return "secret", nil
		})
		if err != nil {
			t.Fatalf("FetchCertificate() error = %v", err)
		}
		if !asked {
			t.Error("passphrase was not requested")
		}
		if !v.SealValid || v.Certificate.Seal != cert.Seal {
			t.Errorf("FetchCertificate() = %+v", v)
		}
	})

	t.Run("fetch without passphrase", func(t *testing.T) {
		if _, err := a.FetchCertificate(cert.ID, nil); !errors.Is(err, certdoc.ErrLocked) {
			t.Errorf("FetchCertificate() error = %v, want ErrLocked", err)
		}
	})

	t.Run("check document finds the attempt", func(t *testing.T) {
		doc, err := certdoc.Render(cert, certdoc.FormatYAML)
		if err != nil {
			t.Fatal(err)
		}
		check, err := a.CheckDocument(doc)
		if err != nil {
			t.Fatalf("CheckDocument() error = %v", err)
		}
		if !check.SealValid || check.Attempt == nil || check.Attempt.ID != history[0].ID {
			t.Errorf("CheckDocument() = %+v", check)
		}
	})
}

func TestWipeApp_ProtectedDevice(t *testing.T) {
	cfg := testConfig(t)
	cfg.Protected = []string{"disk.img"}
	a := newTestApp(t, cfg)

	_, err := a.StartWorkflow(writeImage(t, t.TempDir()), fs.Overrides{})
	if !errors.Is(err, fs.ErrProtected) {
		t.Errorf("StartWorkflow() error = %v, want ErrProtected", err)
	}
}

func TestWipeApp_ProtectFile(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.BaseDir, "protected"), []byte("# lab boot disk\ndisk.img\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a := newTestApp(t, cfg)

	if _, err := a.DescribeDrive(writeImage(t, t.TempDir()), fs.Overrides{}); !errors.Is(err, fs.ErrProtected) {
		t.Errorf("DescribeDrive() error = %v, want ErrProtected", err)
	}
}

func TestWipeApp_WithoutJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal = config.JournalConfig{Type: "none"}
	cfg.Archives = nil
	a := newTestApp(t, cfg)

	eraseToCompletion(t, a, writeImage(t, t.TempDir()))

	history, err := a.History(0)
	if err != nil || history != nil {
		t.Errorf("History() = %v, %v, want nil, nil", history, err)
	}
	if _, err := a.PruneHistory(time.Now()); err == nil {
		t.Error("PruneHistory() without journal succeeded")
	}
	if err := a.BackupJournal(filepath.Join(t.TempDir(), "j.db")); err == nil {
		t.Error("BackupJournal() without journal succeeded")
	}
}

func TestWipeApp_EncryptedArchiveNeedsKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Encryption = config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(cfg.BaseDir, "keys", "wipe.pub"),
		PrivateKeyPath: filepath.Join(cfg.BaseDir, "keys", "wipe.key"),
	}

	if _, err := NewWipeApp(context.Background(), cfg, "Test", ""); err == nil {
		t.Error("NewWipeApp() with missing age keys succeeded")
	}
}

func TestWipeApp_SQLiteJournalPersists(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal = config.JournalConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "journal")}
	image := writeImage(t, t.TempDir())

	first, err := NewWipeApp(context.Background(), cfg, "Erase", image)
	if err != nil {
		t.Fatalf("NewWipeApp() error = %v", err)
	}
	cert := eraseToCompletion(t, first, image)
	backup := filepath.Join(t.TempDir(), "journal-backup.db")
	if err := first.BackupJournal(backup); err != nil {
		t.Fatalf("BackupJournal() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := newTestApp(t, cfg)
	history, err := second.History(0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || history[0].CertificateID != cert.ID {
		t.Errorf("History() after reopen = %+v", history)
	}
	if _, err := os.Stat(backup); err != nil {
		t.Errorf("journal backup missing: %v", err)
	}

	logData, err := os.ReadFile(filepath.Join(cfg.LogDir, "wipe.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if len(logData) == 0 {
		t.Error("wipe.log is empty")
	}
}

func TestWipeApp_ExportFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Format = "yaml"
	a := newTestApp(t, cfg)
	if got := a.ExportFormat(); got != certdoc.FormatYAML {
		t.Errorf("ExportFormat() = %q, want yaml", got)
	}
}

func TestWipeApp_CheckSetup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archives = append(cfg.Archives, config.ArchiveConfig{Type: "memory", Name: "scratch"})
	a := newTestApp(t, cfg)

	if err := a.CheckSetup(); err != nil {
		t.Errorf("CheckSetup() error = %v", err)
	}

	if err := os.RemoveAll(filepath.Join(cfg.Archives[0].FSVaultRoot, "certificates")); err != nil {
		t.Fatal(err)
	}
	if err := a.CheckSetup(); err == nil {
		t.Error("CheckSetup() with missing vault directory succeeded")
	}
}
