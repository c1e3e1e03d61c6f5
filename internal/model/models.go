package model

import "time"

// AttemptStatus is the lifecycle status of a journaled erase attempt.
type AttemptStatus string

const (
	AttemptRunning   AttemptStatus = "running"
	AttemptCompleted AttemptStatus = "completed"
	AttemptFailed    AttemptStatus = "failed"
	AttemptCancelled AttemptStatus = "cancelled"
)

// Terminal reports whether the status ends an attempt.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptFailed || s == AttemptCancelled
}

// Attempt represents one erase attempt against one drive.
// A session may make several attempts; at most one of them completes.
type Attempt struct {
	ID              string // UUID
	SessionID       string // UUID of the owning workflow session
	DrivePath       string
	DriveSerial     string
	DriveModel      string
	Method          string // "quick" or "secure"
	PassCount       int
	Status          AttemptStatus
	StartedAt       time.Time
	FinishedAt      *time.Time // nil while running
	PassesCompleted int
	ErrorKind       string // empty unless failed or cancelled
	ErrorDetail     string
	CertificateID   string // empty unless completed
}

// AttemptResult is the terminal data recorded when an attempt ends.
type AttemptResult struct {
	Status          AttemptStatus
	FinishedAt      time.Time
	PassesCompleted int
	ErrorKind       string
	ErrorDetail     string
	CertificateID   string
}
