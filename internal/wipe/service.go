package wipe

import (
	"fmt"
	"strings"

	"wipe-go/internal/model"
)

// Service creates workflow sessions and holds what they share: the drive
// lock registry, the scheduler, the certificate issuer, and the optional
// audit journal and certificate archiver.
type Service struct {
	locks     *DriveLocks
	scheduler *Scheduler
	issuer    *Issuer
	executors ExecutorFactory
	journal   Journal
	archiver  Archiver
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewService creates a Service. journal and archiver may be nil, in which
// case attempts are not journaled and certificates are not archived.
// stationID identifies this host in issued certificates.
func NewService(executors ExecutorFactory, journal Journal, archiver Archiver, logger Logger, clock Clock, idgen IDGenerator, stationID string) *Service {
	return &Service{
		locks:     NewDriveLocks(),
		scheduler: NewScheduler(logger, clock),
		issuer:    NewIssuer(stationID, idgen, logger),
		executors: executors,
		journal:   journal,
		archiver:  archiver,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// StartWorkflow opens a new session for drive, in Idle with the Quick
// method selected.
func (s *Service) StartWorkflow(drive DriveDescriptor) (*Session, error) {
	if strings.TrimSpace(drive.Path) == "" {
		return nil, fmt.Errorf("drive path is required")
	}
	session := newSession(s.idgen.New(), drive, s)
	s.logger.Info("workflow started", "session", session.ID(), "drive", drive.Path, "summary", drive.Summary())
	return session, nil
}

// History returns the most recent journaled attempts, newest first.
func (s *Service) History(limit int) ([]*model.Attempt, error) {
	if s.journal == nil {
		return nil, nil
	}
	attempts, err := s.journal.ListAttempts(limit)
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	return attempts, nil
}

// journalStart records a new attempt. Journal failures are logged and do
// not stop the erase.
func (s *Service) journalStart(attempt *model.Attempt) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordAttemptStarted(attempt); err != nil {
		s.logger.Error("journaling attempt start failed", "attempt", attempt.ID, "error", err)
	}
}

func (s *Service) journalFinish(attempt *model.Attempt, outcome EraseOutcome, cert *Certificate, runErr error) {
	if s.journal == nil || attempt == nil {
		return
	}

	result := model.AttemptResult{
		Status:          model.AttemptCompleted,
		FinishedAt:      outcome.CompletedAt,
		PassesCompleted: outcome.PassesCompleted,
	}
	if result.FinishedAt.IsZero() {
		result.FinishedAt = s.clock.Now()
	}
	switch {
	case runErr == nil && cert != nil:
		result.CertificateID = cert.ID
	case KindOf(runErr) == KindCancelled:
		result.Status = model.AttemptCancelled
		result.ErrorKind = string(KindCancelled)
		result.ErrorDetail = runErr.Error()
	default:
		result.Status = model.AttemptFailed
		result.ErrorKind = string(KindOf(runErr))
		result.ErrorDetail = runErr.Error()
	}

	if err := s.journal.RecordAttemptFinished(attempt.ID, result); err != nil {
		s.logger.Error("journaling attempt result failed", "attempt", attempt.ID, "error", err)
	}
}

// archive hands an issued certificate to the archiver. The certificate is
// already issued, so a failure here is logged and does not change state.
func (s *Service) archive(cert Certificate) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(cert); err != nil {
		s.logger.Error("archiving certificate failed", "certificate_id", cert.ID, "error", err)
		return
	}
	s.logger.Info("certificate archived", "certificate_id", cert.ID)
}
