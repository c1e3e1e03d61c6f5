package wipe

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"wipe-go/internal/model"
)

// State is the workflow state of a Session.
type State string

const (
	StateIdle       State = "idle"
	StateConfirming State = "confirming"
	StateErasing    State = "erasing"
	StateCompleted  State = "completed"
)

// Snapshot is the read-only view of a session published on every
// transition and every progress update.
type Snapshot struct {
	SessionID   string
	State       State
	Drive       DriveDescriptor
	Method      EraseMethod
	Plan        *ErasePlan
	Progress    *ProgressState
	Certificate *Certificate
	LastError   ErrorKind
	Err         error
}

// Observer receives snapshots in emission order. Observers run on the
// goroutine that caused the change, while the session serializes emission,
// so they must not call back into the Session.
type Observer func(Snapshot)

// Session is the workflow state machine for erasing one drive. It is the
// only type the presentation layer talks to. Create sessions with
// Service.StartWorkflow; a session is never reused for another drive.
type Session struct {
	id    string
	drive DriveDescriptor
	svc   *Service

	mu        sync.Mutex
	state     State
	method    EraseMethod
	decision  *ConfirmationDecision
	plan      *ErasePlan
	progress  *ProgressState
	cert      *Certificate
	issued    *Certificate
	lastErr   error
	attempt   *model.Attempt
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	emitMu    sync.Mutex
	observers map[int]Observer
	nextObs   int
}

func newSession(id string, drive DriveDescriptor, svc *Service) *Session {
	return &Session{
		id:        id,
		drive:     drive,
		svc:       svc,
		state:     StateIdle,
		method:    MethodQuick,
		observers: make(map[int]Observer),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Drive returns the session's drive.
func (s *Session) Drive() DriveDescriptor { return s.drive }

// Watch registers an observer and returns a function that removes it.
func (s *Session) Watch(fn Observer) (unwatch func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.emitMu.Lock()
		defer s.emitMu.Unlock()
		delete(s.observers, id)
	}
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Certificate returns the certificate issued by this session, if any. It
// stays available after Reset.
func (s *Session) Certificate() (Certificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued == nil {
		return Certificate{}, false
	}
	return s.issued.Clone(), true
}

// SelectMethod changes the erase method. It has no side effects beyond the
// selection and is only legal before the erase is armed.
func (s *Session) SelectMethod(method EraseMethod) (Snapshot, error) {
	s.mu.Lock()
	if _, err := ParseEraseMethod(string(method)); err != nil {
		return s.rejectLocked(fmt.Errorf("%w: %v", ErrInvalidTransition, err))
	}
	if s.state != StateIdle && s.state != StateConfirming {
		return s.rejectLocked(s.illegal("select method"))
	}
	s.method = method
	s.svc.logger.Debug("erase method selected", "session", s.id, "method", method)
	return s.commitLocked()
}

// RequestErase opens the confirmation step: Idle -> Confirming.
// It is rejected with ErrDriveBusy while another session is erasing the
// same drive path.
func (s *Session) RequestErase() (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		return s.rejectLocked(s.illegal("request erase"))
	}
	if s.issued != nil {
		return s.rejectLocked(fmt.Errorf("%w: session already issued %s; start a new workflow", ErrInvalidTransition, s.issued.ID))
	}
	if holder, busy := s.svc.locks.Holder(s.drive.Path); busy && holder != s.id {
		return s.rejectLocked(fmt.Errorf("%s held by session %s: %w", s.drive.Path, holder, ErrDriveBusy))
	}
	s.state = StateConfirming
	s.decision = nil
	s.plan = nil
	s.progress = nil
	s.lastErr = nil
	return s.commitLocked()
}

// CancelConfirmation closes the confirmation step: Confirming -> Idle.
func (s *Session) CancelConfirmation() (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateConfirming {
		return s.rejectLocked(s.illegal("cancel confirmation"))
	}
	s.state = StateIdle
	s.decision = nil
	s.lastErr = nil
	return s.commitLocked()
}

// SubmitConfirmation validates the operator's decision and, if approved,
// starts the erase: Confirming -> Erasing. A denied decision leaves the
// session in Confirming with ErrInsufficientConfirmation. The erase runs on
// its own goroutine; use Wait or Watch to follow it.
func (s *Session) SubmitConfirmation(decision ConfirmationDecision) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateConfirming {
		return s.rejectLocked(s.illegal("submit confirmation"))
	}
	s.decision = &decision

	armed, err := Validate(decision)
	if err != nil {
		s.svc.logger.Warn("confirmation rejected", "session", s.id, "drive", s.drive.Path)
		return s.failLocked(err)
	}
	if err := s.svc.locks.TryAcquire(s.drive.Path, s.id); err != nil {
		return s.failLocked(err)
	}

	executor, err := s.svc.executors(s.drive)
	if err != nil {
		s.svc.locks.Release(s.drive.Path, s.id)
		s.state = StateIdle
		s.decision = nil
		return s.failLocked(&EraseError{
			Kind:       KindExecutionFailed,
			PhaseLabel: LabelInitialize,
			Err:        &DeviceError{Op: "open executor", Err: err},
		})
	}

	plan := Resolve(s.method)
	s.start(armed, plan, executor)
	return s.commitLocked()
}

// start moves the session into Erasing and launches the run.
// s.mu must be held.
func (s *Session) start(_ Armed, plan ErasePlan, executor EraseExecutor) {
	ctx, cancel := context.WithCancel(context.Background())

	initial := NewProgressTracker(plan).Snapshot()
	s.state = StateErasing
	s.plan = &plan
	s.progress = &initial
	s.cert = nil
	s.lastErr = nil
	s.startedAt = s.svc.clock.Now()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.attempt = &model.Attempt{
		ID:          s.svc.idgen.New(),
		SessionID:   s.id,
		DrivePath:   s.drive.Path,
		DriveSerial: s.drive.Serial,
		DriveModel:  s.drive.Model,
		Method:      string(plan.Method),
		PassCount:   plan.PassCount,
		Status:      model.AttemptRunning,
		StartedAt:   s.startedAt,
	}

	s.svc.logger.Info("erase armed", "session", s.id, "drive", s.drive.Path, "method", plan.Method, "passes", plan.PassCount)
	s.svc.journalStart(s.attempt)

	go s.run(ctx, plan.Clone(), executor, s.done)
}

func (s *Session) run(ctx context.Context, plan ErasePlan, executor EraseExecutor, done chan struct{}) {
	defer close(done)
	outcome, err := s.svc.scheduler.Run(ctx, plan, executor, s.onProgress)
	s.finish(plan, outcome, err)
}

func (s *Session) onProgress(st ProgressState) {
	s.mu.Lock()
	if s.state != StateErasing {
		s.mu.Unlock()
		return
	}
	s.progress = &st
	s.commitLocked()
}

// finish records the terminal outcome: success issues the certificate and
// lands in Completed; failure or cancellation lands in Idle with the error.
func (s *Session) finish(plan ErasePlan, outcome EraseOutcome, runErr error) {
	s.mu.Lock()
	s.svc.locks.Release(s.drive.Path, s.id)
	s.cancel()
	s.cancel = nil
	attempt := s.attempt

	var cert *Certificate
	if runErr == nil {
		issued, err := s.svc.issuer.Issue(IssueRequest{
			SessionID: s.id,
			Drive:     s.drive,
			Plan:      plan,
			StartedAt: s.startedAt,
			Outcome:   outcome,
		})
		if err != nil {
			runErr = err
		} else {
			cert = issued
		}
	}

	if runErr != nil {
		s.state = StateIdle
		s.decision = nil
		s.lastErr = runErr
	} else {
		s.state = StateCompleted
		s.cert = cert
		s.issued = cert
		s.lastErr = nil
	}
	s.commitLocked()

	s.svc.journalFinish(attempt, outcome, cert, runErr)
	if cert != nil {
		s.svc.archive(*cert)
	}
}

// CancelErase asks the running erase to stop. The session stays in Erasing
// until the scheduler returns, then moves to Idle with ErrCancelled.
// Cancellation takes effect between passes, or inside a pass when the
// executor honors its context.
func (s *Session) CancelErase() (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateErasing {
		return s.rejectLocked(s.illegal("cancel erase"))
	}
	s.cancel()
	s.svc.logger.Info("erase cancel requested", "session", s.id, "drive", s.drive.Path)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, nil
}

// Reset returns a finished session to Idle, clearing progress, the
// confirmation decision and the displayed certificate. It is legal from
// Completed and from Idle.
func (s *Session) Reset() (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateCompleted && s.state != StateIdle {
		return s.rejectLocked(s.illegal("reset"))
	}
	s.state = StateIdle
	s.decision = nil
	s.plan = nil
	s.progress = nil
	s.cert = nil
	s.lastErr = nil
	return s.commitLocked()
}

// Wait blocks until the current erase, if any, has left Erasing, and
// returns the snapshot at that point.
func (s *Session) Wait() Snapshot {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	return s.Snapshot()
}

func (s *Session) illegal(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, s.state)
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		State:     s.state,
		Drive:     s.drive,
		Method:    s.method,
		LastError: KindOf(s.lastErr),
		Err:       s.lastErr,
	}
	if s.plan != nil {
		plan := s.plan.Clone()
		snap.Plan = &plan
	}
	if s.progress != nil {
		progress := *s.progress
		snap.Progress = &progress
	}
	if s.cert != nil {
		cert := s.cert.Clone()
		snap.Certificate = &cert
	}
	return snap
}

// commitLocked publishes the current state and releases s.mu. The emit lock
// is taken before s.mu is released so observers see snapshots in the order
// the changes happened.
func (s *Session) commitLocked() (Snapshot, error) {
	snap := s.snapshotLocked()
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(s.observers)) {
		s.observers[id](snap)
	}
	return snap, nil
}

// failLocked records err as the last error, publishes, and returns err.
func (s *Session) failLocked(err error) (Snapshot, error) {
	s.lastErr = err
	snap, _ := s.commitLocked()
	return snap, err
}

// rejectLocked refuses an operation without changing state.
func (s *Session) rejectLocked(err error) (Snapshot, error) {
	return s.failLocked(err)
}
