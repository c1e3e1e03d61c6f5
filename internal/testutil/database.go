package testutil

import (
	"testing"

	"wipe-go/internal/database"
	"wipe-go/internal/wipe"
)

// NewTestJournal creates an in-memory SQLite journal with the schema applied.
// The journal is closed when the test completes.
func NewTestJournal(t *testing.T) wipe.Journal {
	t.Helper()

	j, err := database.NewSQLiteJournal(":memory:")
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	if err := j.Migrate(); err != nil {
		j.Close()
		t.Fatalf("failed to migrate journal: %v", err)
	}

	t.Cleanup(func() {
		j.Close()
	})
	return j
}
