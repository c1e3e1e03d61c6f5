package wipe

import "wipe-go/internal/model"

// Journal records every erase attempt for the audit trail. Entries are
// appended when an attempt starts and completed when it ends; they are
// never rewritten afterwards.
type Journal interface {
	// RecordAttemptStarted stores a new attempt in the running state.
	RecordAttemptStarted(attempt *model.Attempt) error

	// RecordAttemptFinished stores the terminal status of an attempt.
	// result.CertificateID is empty unless the attempt succeeded.
	RecordAttemptFinished(attemptID string, result model.AttemptResult) error

	// ListAttempts returns the most recent attempts, newest first.
	ListAttempts(limit int) ([]*model.Attempt, error)

	// Close closes the journal.
	Close() error
}
