package wipe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrNotIssuable is returned when a certificate is requested for an erase
// that did not succeed.
var ErrNotIssuable = errors.New("certificate requires a successful erase outcome")

// Certificate is the immutable record that a specific drive was erased by a
// specific plan at a specific time. Drive and Plan are snapshots taken at
// issuance. Seal is the SHA-256 of the certificate's canonical encoding with
// Seal left empty; any edit to an issued certificate breaks VerifySeal.
type Certificate struct {
	ID          string          `json:"certificate_id" yaml:"certificate_id" toml:"certificate_id"`
	SessionID   string          `json:"session_id" yaml:"session_id" toml:"session_id"`
	StationID   string          `json:"station_id,omitempty" yaml:"station_id,omitempty" toml:"station_id,omitempty"`
	Drive       DriveDescriptor `json:"drive" yaml:"drive" toml:"drive"`
	Plan        ErasePlan       `json:"plan" yaml:"plan" toml:"plan"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at" toml:"started_at"`
	CompletedAt time.Time       `json:"completed_at" yaml:"completed_at" toml:"completed_at"`
	Outcome     EraseOutcome    `json:"outcome" yaml:"outcome" toml:"outcome"`
	Seal        string          `json:"seal" yaml:"seal" toml:"seal"`
}

// ComputeSeal returns the hex SHA-256 of the certificate with Seal cleared.
func (c Certificate) ComputeSeal() (string, error) {
	c.Seal = ""
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding certificate: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifySeal reports whether the certificate still matches its seal.
func (c Certificate) VerifySeal() (bool, error) {
	want, err := c.ComputeSeal()
	if err != nil {
		return false, err
	}
	return c.Seal != "" && c.Seal == want, nil
}

// IssueRequest carries everything the issuer binds into a certificate.
type IssueRequest struct {
	SessionID string
	Drive     DriveDescriptor
	Plan      ErasePlan
	StartedAt time.Time
	Outcome   EraseOutcome
}

// Issuer creates certificates, at most one per session.
type Issuer struct {
	stationID string
	idgen     IDGenerator
	logger    Logger

	mu     sync.Mutex
	issued map[string]string // session ID -> certificate ID
}

// NewIssuer creates an Issuer. stationID identifies the erasing host and is
// recorded in every certificate; it may be empty.
func NewIssuer(stationID string, idgen IDGenerator, logger Logger) *Issuer {
	return &Issuer{
		stationID: stationID,
		idgen:     idgen,
		logger:    logger,
		issued:    make(map[string]string),
	}
}

// Issue creates the certificate for a successful erase. Asking twice for the
// same session returns ErrIssuanceConflict.
func (i *Issuer) Issue(req IssueRequest) (*Certificate, error) {
	if !req.Outcome.Success {
		return nil, ErrNotIssuable
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if existing, ok := i.issued[req.SessionID]; ok {
		return nil, fmt.Errorf("session %s already has %s: %w", req.SessionID, existing, ErrIssuanceConflict)
	}

	startedAt := req.StartedAt.UTC().Truncate(time.Second)
	completedAt := req.Outcome.CompletedAt.UTC().Truncate(time.Second)
	outcome := req.Outcome
	outcome.CompletedAt = completedAt

	cert := &Certificate{
		ID:          fmt.Sprintf("CERT-%d-%s", completedAt.Year(), strings.ToUpper(i.idgen.New())),
		SessionID:   req.SessionID,
		StationID:   i.stationID,
		Drive:       req.Drive,
		Plan:        req.Plan.Clone(),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Outcome:     outcome,
	}
	seal, err := cert.ComputeSeal()
	if err != nil {
		return nil, fmt.Errorf("sealing certificate: %w", err)
	}
	cert.Seal = seal

	i.issued[req.SessionID] = cert.ID
	i.logger.Info("certificate issued", "certificate_id", cert.ID, "drive", req.Drive.Path, "method", req.Plan.Method)
	return cert, nil
}

// Clone returns a copy that shares no backing arrays with c.
func (c Certificate) Clone() Certificate {
	c.Plan = c.Plan.Clone()
	return c
}
