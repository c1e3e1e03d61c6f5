package database

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wipe-go/internal/model"
)

// newTestJournal creates a new in-memory journal with the schema applied.
func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()

	j, err := NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	if err := j.Migrate(); err != nil {
		j.Close()
		t.Fatalf("failed to migrate journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

var baseTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func newAttempt(id string, startedAt time.Time) *model.Attempt {
	return &model.Attempt{
		ID:          id,
		SessionID:   "session-" + id,
		DrivePath:   "/dev/sda",
		DriveSerial: "S3Z9NB0K123456",
		DriveModel:  "860 EVO",
		Method:      "secure",
		PassCount:   3,
		Status:      model.AttemptRunning,
		StartedAt:   startedAt,
	}
}

func TestSQLiteJournal_RecordAndFind(t *testing.T) {
	j := newTestJournal(t)
	a := newAttempt("a1", baseTime)

	if err := j.RecordAttemptStarted(a); err != nil {
		t.Fatalf("RecordAttemptStarted() error = %v", err)
	}

	got, err := j.FindAttempt("a1")
	if err != nil {
		t.Fatalf("FindAttempt() error = %v", err)
	}
	if got == nil {
		t.Fatal("FindAttempt() returned nil")
	}
	if got.Status != model.AttemptRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.DriveSerial != "S3Z9NB0K123456" || got.PassCount != 3 {
		t.Errorf("attempt = %+v", got)
	}
	if !got.StartedAt.Equal(baseTime) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, baseTime)
	}
	if got.FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil", got.FinishedAt)
	}
}

func TestSQLiteJournal_FindAttemptMissing(t *testing.T) {
	j := newTestJournal(t)

	got, err := j.FindAttempt("nope")
	if err != nil {
		t.Fatalf("FindAttempt() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindAttempt() = %+v, want nil", got)
	}
}

func TestSQLiteJournal_RecordAttemptStartedRequiresID(t *testing.T) {
	j := newTestJournal(t)
	if err := j.RecordAttemptStarted(&model.Attempt{}); err == nil {
		t.Error("RecordAttemptStarted() without ID succeeded")
	}
}

func TestSQLiteJournal_RecordAttemptFinished(t *testing.T) {
	tests := []struct {
		name   string
		result model.AttemptResult
	}{
		{
			name: "completed",
			result: model.AttemptResult{
				Status:          model.AttemptCompleted,
				FinishedAt:      baseTime.Add(time.Hour),
				PassesCompleted: 3,
				CertificateID:   "CERT-2024-ABC",
			},
		},
		{
			name: "cancelled",
			result: model.AttemptResult{
				Status:          model.AttemptCancelled,
				FinishedAt:      baseTime.Add(time.Minute),
				PassesCompleted: 1,
				ErrorKind:       "cancelled",
				ErrorDetail:     "erase cancelled: stopped at phase 2",
			},
		},
		{
			name: "failed",
			result: model.AttemptResult{
				Status:      model.AttemptFailed,
				FinishedAt:  baseTime.Add(time.Minute),
				ErrorKind:   "execution_failed",
				ErrorDetail: "device error during write",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newTestJournal(t)
			if err := j.RecordAttemptStarted(newAttempt("a1", baseTime)); err != nil {
				t.Fatalf("RecordAttemptStarted() error = %v", err)
			}

			if err := j.RecordAttemptFinished("a1", tt.result); err != nil {
				t.Fatalf("RecordAttemptFinished() error = %v", err)
			}

			got, err := j.FindAttempt("a1")
			if err != nil {
				t.Fatalf("FindAttempt() error = %v", err)
			}
			if got.Status != tt.result.Status {
				t.Errorf("Status = %q, want %q", got.Status, tt.result.Status)
			}
			if got.FinishedAt == nil || !got.FinishedAt.Equal(tt.result.FinishedAt) {
				t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, tt.result.FinishedAt)
			}
			if got.PassesCompleted != tt.result.PassesCompleted {
				t.Errorf("PassesCompleted = %d, want %d", got.PassesCompleted, tt.result.PassesCompleted)
			}
			if got.ErrorKind != tt.result.ErrorKind || got.ErrorDetail != tt.result.ErrorDetail {
				t.Errorf("error = %q/%q, want %q/%q", got.ErrorKind, got.ErrorDetail, tt.result.ErrorKind, tt.result.ErrorDetail)
			}
			if got.CertificateID != tt.result.CertificateID {
				t.Errorf("CertificateID = %q, want %q", got.CertificateID, tt.result.CertificateID)
			}
		})
	}
}

func TestSQLiteJournal_RecordAttemptFinishedRules(t *testing.T) {
	j := newTestJournal(t)
	if err := j.RecordAttemptStarted(newAttempt("a1", baseTime)); err != nil {
		t.Fatalf("RecordAttemptStarted() error = %v", err)
	}

	t.Run("rejects non-terminal status", func(t *testing.T) {
		err := j.RecordAttemptFinished("a1", model.AttemptResult{Status: model.AttemptRunning, FinishedAt: baseTime})
		if err == nil || !strings.Contains(err.Error(), "not a terminal status") {
			t.Errorf("RecordAttemptFinished() error = %v", err)
		}
	})

	t.Run("rejects unknown attempt", func(t *testing.T) {
		err := j.RecordAttemptFinished("missing", model.AttemptResult{Status: model.AttemptFailed, FinishedAt: baseTime})
		if err == nil {
			t.Error("RecordAttemptFinished() for unknown attempt succeeded")
		}
	})

	t.Run("finishes only once", func(t *testing.T) {
		result := model.AttemptResult{Status: model.AttemptCompleted, FinishedAt: baseTime, CertificateID: "CERT-2024-A"}
		if err := j.RecordAttemptFinished("a1", result); err != nil {
			t.Fatalf("first RecordAttemptFinished() error = %v", err)
		}
		if err := j.RecordAttemptFinished("a1", result); err == nil {
			t.Error("second RecordAttemptFinished() succeeded")
		}
	})
}

func TestSQLiteJournal_ListAttempts(t *testing.T) {
	j := newTestJournal(t)
	for i, id := range []string{"a1", "a2", "a3"} {
		if err := j.RecordAttemptStarted(newAttempt(id, baseTime.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("RecordAttemptStarted(%s) error = %v", id, err)
		}
	}

	all, err := j.ListAttempts(0)
	if err != nil {
		t.Fatalf("ListAttempts(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAttempts(0) returned %d, want 3", len(all))
	}
	if all[0].ID != "a3" || all[2].ID != "a1" {
		t.Errorf("order = %s,%s,%s, want newest first", all[0].ID, all[1].ID, all[2].ID)
	}

	two, err := j.ListAttempts(2)
	if err != nil {
		t.Fatalf("ListAttempts(2) error = %v", err)
	}
	if len(two) != 2 {
		t.Errorf("ListAttempts(2) returned %d, want 2", len(two))
	}
}

func TestSQLiteJournal_FindAttemptByCertificate(t *testing.T) {
	j := newTestJournal(t)
	j.RecordAttemptStarted(newAttempt("a1", baseTime))
	j.RecordAttemptFinished("a1", model.AttemptResult{Status: model.AttemptCompleted, FinishedAt: baseTime, CertificateID: "CERT-2024-X"})

	got, err := j.FindAttemptByCertificate("CERT-2024-X")
	if err != nil {
		t.Fatalf("FindAttemptByCertificate() error = %v", err)
	}
	if got == nil || got.ID != "a1" {
		t.Errorf("FindAttemptByCertificate() = %+v, want a1", got)
	}

	none, err := j.FindAttemptByCertificate("CERT-2024-NOPE")
	if err != nil || none != nil {
		t.Errorf("FindAttemptByCertificate(missing) = %+v, %v", none, err)
	}
}

func TestSQLiteJournal_Prune(t *testing.T) {
	j := newTestJournal(t)
	j.RecordAttemptStarted(newAttempt("old-done", baseTime))
	j.RecordAttemptFinished("old-done", model.AttemptResult{Status: model.AttemptFailed, FinishedAt: baseTime})
	j.RecordAttemptStarted(newAttempt("old-running", baseTime))
	j.RecordAttemptStarted(newAttempt("new", baseTime.Add(48*time.Hour)))

	n, err := j.Prune(baseTime.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d, want 1", n)
	}

	left, _ := j.ListAttempts(0)
	if len(left) != 2 {
		t.Errorf("%d attempts left, want 2", len(left))
	}
}

func TestSQLiteJournal_BackupTo(t *testing.T) {
	j := newTestJournal(t)
	j.RecordAttemptStarted(newAttempt("a1", baseTime))

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := j.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteJournal(dest)
	if err != nil {
		t.Fatalf("NewSQLiteJournal(backup) error = %v", err)
	}
	defer restored.Close()

	if err := restored.CheckMigrations(); err != nil {
		t.Errorf("backup CheckMigrations() error = %v", err)
	}
	got, err := restored.FindAttempt("a1")
	if err != nil || got == nil {
		t.Errorf("FindAttempt() in backup = %+v, %v", got, err)
	}
}
