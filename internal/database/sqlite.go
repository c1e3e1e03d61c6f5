package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wipe-go/internal/database/migrations"
	"wipe-go/internal/model"
	"wipe-go/internal/wipe"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements wipe.Journal using SQLite.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// NewSQLiteJournal opens the journal at path. path can be a file path or
// ":memory:". The schema is not touched; see migrations.MigrateUp.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteJournal{db: db, path: path}, nil
}

// NewSQLiteJournalFromDB wraps an existing connection. The caller is
// responsible for configuring it.
func NewSQLiteJournalFromDB(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db}
}

// OpenConnection opens a SQLite connection with the PRAGMAs the journal
// relies on. It is exported for tests that need a configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

const attemptColumns = `id, session_id, drive_path, drive_serial, drive_model, method, pass_count,
	status, started_at, finished_at, passes_completed, error_kind, error_detail, certificate_id`

func (s *SQLiteJournal) RecordAttemptStarted(a *model.Attempt) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("attempt ID is required")
	}
	status := a.Status
	if status == "" {
		status = model.AttemptRunning
	}
	_, err := s.db.Exec(`
		INSERT INTO erase_attempts (id, session_id, drive_path, drive_serial, drive_model, method, pass_count, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.DrivePath, a.DriveSerial, a.DriveModel, a.Method, a.PassCount,
		string(status), a.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording attempt %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteJournal) RecordAttemptFinished(attemptID string, result model.AttemptResult) error {
	if !result.Status.Terminal() {
		return fmt.Errorf("attempt %s: %q is not a terminal status", attemptID, result.Status)
	}

	var certID sql.NullString
	if result.CertificateID != "" {
		certID = sql.NullString{String: result.CertificateID, Valid: true}
	}

	res, err := s.db.Exec(`
		UPDATE erase_attempts
		SET status = ?, finished_at = ?, passes_completed = ?, error_kind = ?, error_detail = ?, certificate_id = ?
		WHERE id = ? AND status = ?`,
		string(result.Status), result.FinishedAt.UTC(), result.PassesCompleted,
		result.ErrorKind, result.ErrorDetail, certID,
		attemptID, string(model.AttemptRunning),
	)
	if err != nil {
		return fmt.Errorf("finishing attempt %s: %w", attemptID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing attempt %s: %w", attemptID, err)
	}
	if n == 0 {
		return fmt.Errorf("finishing attempt %s: no running attempt with that ID", attemptID)
	}
	return nil
}

// ListAttempts returns up to limit attempts, newest first. A limit of zero
// or less returns all attempts.
func (s *SQLiteJournal) ListAttempts(limit int) ([]*model.Attempt, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+attemptColumns+`
		FROM erase_attempts
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	defer rows.Close()

	var result []*model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("listing attempts: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	return result, nil
}

// FindAttempt returns the attempt with the given ID, or nil if there is none.
func (s *SQLiteJournal) FindAttempt(id string) (*model.Attempt, error) {
	row := s.db.QueryRow(`SELECT `+attemptColumns+` FROM erase_attempts WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding attempt %s: %w", id, err)
	}
	return a, nil
}

// FindAttemptByCertificate returns the attempt that issued certID, or nil.
func (s *SQLiteJournal) FindAttemptByCertificate(certID string) (*model.Attempt, error) {
	row := s.db.QueryRow(`SELECT `+attemptColumns+` FROM erase_attempts WHERE certificate_id = ?`, certID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding attempt for %s: %w", certID, err)
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (*model.Attempt, error) {
	var (
		a          model.Attempt
		status     string
		finishedAt sql.NullTime
		certID     sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.SessionID, &a.DrivePath, &a.DriveSerial, &a.DriveModel, &a.Method, &a.PassCount,
		&status, &a.StartedAt, &finishedAt, &a.PassesCompleted, &a.ErrorKind, &a.ErrorDetail, &certID,
	)
	if err != nil {
		return nil, err
	}
	a.Status = model.AttemptStatus(status)
	a.StartedAt = a.StartedAt.UTC()
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		a.FinishedAt = &t
	}
	a.CertificateID = certID.String
	return &a, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteJournal) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is up to date.
func (s *SQLiteJournal) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Migrate applies pending schema migrations.
func (s *SQLiteJournal) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo writes a complete copy of the journal to destPath using VACUUM INTO.
func (s *SQLiteJournal) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up journal: %w", err)
	}
	return nil
}

// Prune deletes finished attempts that started before cutoff and returns
// how many were removed. Running attempts are kept.
func (s *SQLiteJournal) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM erase_attempts WHERE started_at < ? AND status != ?`,
		cutoff.UTC(), string(model.AttemptRunning))
	if err != nil {
		return 0, fmt.Errorf("pruning attempts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning attempts: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteJournal implements wipe.Journal.
var _ wipe.Journal = (*SQLiteJournal)(nil)
