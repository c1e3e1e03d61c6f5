package database

import (
	"fmt"
	"os"
	"path/filepath"

	"wipe-go/internal/config"
)

// NewJournalFromConfig opens the journal selected by cfg.Type and brings
// its schema up to date. It returns nil, nil for type "none".
func NewJournalFromConfig(cfg config.JournalConfig, stationID string) (*SQLiteJournal, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite journal")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, stationID+".db")
	case "memory":
		path = ":memory:"
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}

	j, err := NewSQLiteJournal(path)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(); err != nil {
		j.Close()
		return nil, fmt.Errorf("migrating journal %s: %w", path, err)
	}
	return j, nil
}
