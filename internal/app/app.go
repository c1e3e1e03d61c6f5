package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wipe-go/internal/certdoc"
	"wipe-go/internal/config"
	"wipe-go/internal/database"
	"wipe-go/internal/encryption"
	"wipe-go/internal/fs"
	"wipe-go/internal/model"
	"wipe-go/internal/overwrite"
	"wipe-go/internal/vault"
	"wipe-go/internal/wipe"
)

// WipeApp is the application layer between the CLI and the erase service.
// It constructs all dependencies from config, exposes operations that accept
// raw device paths, and manages the journal and log lifecycle on Close.
type WipeApp struct {
	cfg       *config.Config
	journal   *database.SQLiteJournal // nil when journaling is off
	vaults    []wipe.Vault
	devices   *fs.DeviceManager
	encryptor wipe.Encryptor
	service   *wipe.Service
	logger    wipe.Logger
	op        *Operation
	logFile   *os.File
}

// NewWipeApp creates a fully wired WipeApp from the given config.
// operation identifies the CLI command being run (e.g. "Erase", "History").
// The caller must call Close when done.
func NewWipeApp(ctx context.Context, cfg *config.Config, operation, parameters string) (*WipeApp, error) {
	op := NewOperation(operation, parameters, time.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, parseLevel(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &WipeApp{cfg: cfg, logger: logger, op: op, logFile: logFile}
	if err := a.wire(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	logger.Debug("operation started", "operation", op.Name, "parameters", op.Parameters)
	return a, nil
}

func (a *WipeApp) wire(ctx context.Context) error {
	cfg := a.cfg

	protected, err := loadProtectPatterns(cfg)
	if err != nil {
		return err
	}
	a.devices = fs.NewDeviceManager(fs.NewProtectMatcher(protected))

	executors, err := overwrite.NewExecutorFactoryFromConfig(cfg.Executor, a.devices, a.logger)
	if err != nil {
		return fmt.Errorf("creating executor: %w", err)
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}

	var targets []certdoc.Target
	for _, ac := range cfg.Archives {
		v, err := vault.NewVaultFromConfig(ctx, ac)
		if err != nil {
			return fmt.Errorf("creating vault %s: %w", ac.Name, err)
		}
		if ac.Encrypt && !a.encryptor.IsConfigured() {
			return fmt.Errorf("vault %s requires encryption: run 'wipe keys init' first", ac.Name)
		}
		a.vaults = append(a.vaults, v)
		targets = append(targets, certdoc.Target{Vault: v, Encrypt: ac.Encrypt})
	}

	a.journal, err = database.NewJournalFromConfig(cfg.Journal, cfg.StationID)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}

	// Typed nils must not reach the service's interface fields.
	var journal wipe.Journal
	if a.journal != nil {
		journal = a.journal
	}
	var archiver wipe.Archiver
	if len(targets) > 0 {
		format, err := certdoc.ParseFormat(cfg.Export.Format)
		if err != nil {
			return err
		}
		ar, err := certdoc.NewArchiver(targets, format, a.encryptor, a.logger)
		if err != nil {
			return fmt.Errorf("creating archiver: %w", err)
		}
		archiver = ar
	}

	a.service = wipe.NewService(executors, journal, archiver, a.logger, wipe.RealClock{}, wipe.UUIDGenerator{}, cfg.StationID)
	return nil
}

func loadProtectPatterns(cfg *config.Config) ([]string, error) {
	patterns := append([]string(nil), cfg.Protected...)
	fromFile, err := fs.ParseProtectFile(protectFilePath(cfg))
	if err != nil {
		return nil, err
	}
	return append(patterns, fromFile...), nil
}

func protectFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.BaseDir, "protected")
}

// DescribeDrive resolves rawPath and returns its drive descriptor.
func (a *WipeApp) DescribeDrive(rawPath string, o fs.Overrides) (wipe.DriveDescriptor, error) {
	d, err := a.devices.Describe(rawPath, o)
	if err != nil {
		return wipe.DriveDescriptor{}, fmt.Errorf("describing drive: %w", err)
	}
	return d, nil
}

// StartWorkflow describes the drive at rawPath and opens an erase session
// for it.
func (a *WipeApp) StartWorkflow(rawPath string, o fs.Overrides) (*wipe.Session, error) {
	d, err := a.DescribeDrive(rawPath, o)
	if err != nil {
		return nil, err
	}
	if d.CapacityBytes == 0 {
		return nil, fmt.Errorf("%s reports no capacity", d.Path)
	}
	a.op.Parameters = d.Path
	return a.service.StartWorkflow(d)
}

// History returns the most recent erase attempts, newest first.
// limit <= 0 returns all of them.
func (a *WipeApp) History(limit int) ([]*model.Attempt, error) {
	return a.service.History(limit)
}

// PruneHistory removes finished attempts that started before cutoff.
func (a *WipeApp) PruneHistory(cutoff time.Time) (int64, error) {
	if a.journal == nil {
		return 0, fmt.Errorf("journaling is disabled")
	}
	n, err := a.journal.Prune(cutoff)
	if err != nil {
		return 0, err
	}
	a.logger.Info("history pruned", "cutoff", cutoff.UTC().Format(time.RFC3339), "removed", n)
	return n, nil
}

// BackupJournal writes a consistent copy of the journal to destPath.
func (a *WipeApp) BackupJournal(destPath string) error {
	if a.journal == nil {
		return fmt.Errorf("journaling is disabled")
	}
	return a.journal.BackupTo(destPath)
}

// PassphraseFunc supplies the key passphrase when an archived certificate
// turns out to be encrypted.
type PassphraseFunc func() (string, error)

// FetchCertificate reads an archived certificate from the configured vaults,
// decrypting it if needed, and checks its seal.
func (a *WipeApp) FetchCertificate(certificateID string, passphrase PassphraseFunc) (certdoc.Verification, error) {
	doc, err := certdoc.Fetch(a.vaults, certificateID, nil)
	if errors.Is(err, certdoc.ErrLocked) && passphrase != nil {
		var pass string
		if pass, err = passphrase(); err != nil {
			return certdoc.Verification{}, err
		}
		dc, uerr := a.encryptor.Unlock(pass)
		if uerr != nil {
			return certdoc.Verification{}, fmt.Errorf("unlocking key: %w", uerr)
		}
		doc, err = certdoc.Fetch(a.vaults, certificateID, dc)
	}
	if err != nil {
		return certdoc.Verification{}, err
	}
	return certdoc.Verify(doc)
}

// DocumentCheck is the result of checking a certificate document against
// its seal and the local journal.
type DocumentCheck struct {
	certdoc.Verification
	// Attempt is the journaled attempt that produced the certificate, or
	// nil if this station has no record of it.
	Attempt *model.Attempt
}

// CheckDocument verifies a plaintext certificate document.
func (a *WipeApp) CheckDocument(data []byte) (DocumentCheck, error) {
	v, err := certdoc.Verify(data)
	if err != nil {
		return DocumentCheck{}, err
	}
	check := DocumentCheck{Verification: v}
	if a.journal != nil {
		attempt, err := a.journal.FindAttemptByCertificate(v.Certificate.ID)
		if err != nil {
			return DocumentCheck{}, fmt.Errorf("looking up certificate in journal: %w", err)
		}
		check.Attempt = attempt
	}
	return check, nil
}

// CheckSetup verifies that every configured vault is reachable and the
// journal schema is current. It returns one error per failing component.
func (a *WipeApp) CheckSetup() error {
	var errs []error
	for _, v := range a.vaults {
		if err := v.ValidateSetup(); err != nil {
			errs = append(errs, fmt.Errorf("vault %s: %w", v.Name(), err))
		}
	}
	if a.journal != nil {
		if err := a.journal.CheckMigrations(); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ExportFormat returns the configured certificate document format.
func (a *WipeApp) ExportFormat() certdoc.Format {
	f, err := certdoc.ParseFormat(a.cfg.Export.Format)
	if err != nil {
		return certdoc.FormatJSON
	}
	return f
}

// Fail marks the running operation as failed; Close logs the final status.
func (a *WipeApp) Fail() {
	a.op.Fail()
}

// Close logs the operation result and closes the journal and log file.
func (a *WipeApp) Close() error {
	a.logger.Info("operation finished", "operation", a.op.Name, "parameters", a.op.Parameters,
		"status", a.op.Status, "duration", time.Since(a.op.StartedAt).Round(time.Millisecond))
	return a.closeResources()
}

func (a *WipeApp) closeResources() error {
	var firstErr error
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			firstErr = fmt.Errorf("closing journal: %w", err)
		}
		a.journal = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return firstErr
}
