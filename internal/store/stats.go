package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Stats holds aggregate counts over the whole database.
type Stats struct {
	Runs       int
	Groups     int
	Embeddings int
	// LastRunAt is nil when no run has been saved.
	LastRunAt *time.Time
}

// GetStats returns aggregate statistics for the database.
func (d *DB) GetStats() (*Stats, error) {
	var stats Stats

	if err := d.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&stats.Runs); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM run_groups`).Scan(&stats.Groups); err != nil {
		return nil, fmt.Errorf("counting groups: %w", err)
	}
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&stats.Embeddings); err != nil {
		return nil, fmt.Errorf("counting embeddings: %w", err)
	}

	var last sql.NullString
	if err := d.db.QueryRow(`SELECT MAX(created_at) FROM runs`).Scan(&last); err != nil {
		return nil, fmt.Errorf("getting last run: %w", err)
	}
	if last.Valid {
		t, err := time.Parse(time.RFC3339, last.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last run time: %w", err)
		}
		stats.LastRunAt = &t
	}

	return &stats, nil
}
