package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jacklau/clusterkit/internal/report"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is a saved run without its groups.
type RunSummary struct {
	ID        int64
	Source    string
	Features  string
	Linkage   string
	Threshold float64
	Groups    int
	Texts     int
	CreatedAt time.Time
}

// SaveRun stores a report with its groups in one transaction and returns the
// new run ID. A zero CreatedAt is set to now.
func (d *DB) SaveRun(r *report.Report) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	skipped, err := json.Marshal(r.Skipped)
	if err != nil {
		return 0, fmt.Errorf("marshaling skipped texts: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO runs (source, features, linkage, threshold, merges, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Source, r.Features, r.Linkage, r.Threshold, r.Merges, string(skipped),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting run id: %w", err)
	}

	for i, g := range r.Groups {
		members, err := json.Marshal(g.Members)
		if err != nil {
			return 0, fmt.Errorf("marshaling group %d: %w", i, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO run_groups (run_id, position, label, members)
			VALUES (?, ?, ?, ?)`,
			id, i, g.Label, string(members),
		); err != nil {
			return 0, fmt.Errorf("inserting group %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// GetRun loads a saved run with its groups in their saved order.
func (d *DB) GetRun(id int64) (*report.Report, error) {
	var (
		r         report.Report
		skipped   sql.NullString
		createdAt string
	)
	err := d.db.QueryRow(`
		SELECT id, source, features, linkage, threshold, merges, skipped, created_at
		FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Source, &r.Features, &r.Linkage, &r.Threshold, &r.Merges, &skipped, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
		}
		return nil, fmt.Errorf("getting run: %w", err)
	}

	r.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if skipped.Valid && skipped.String != "" {
		if err := json.Unmarshal([]byte(skipped.String), &r.Skipped); err != nil {
			return nil, fmt.Errorf("unmarshaling skipped texts: %w", err)
		}
	}

	rows, err := d.db.Query(`
		SELECT label, members FROM run_groups
		WHERE run_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g       report.Group
			members string
		)
		if err := rows.Scan(&g.Label, &members); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &g.Members); err != nil {
			return nil, fmt.Errorf("unmarshaling group members: %w", err)
		}
		r.Groups = append(r.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (d *DB) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(`
		SELECT r.id, r.source, r.features, r.linkage, r.threshold, r.created_at,
		       COUNT(g.id), COALESCE(SUM(json_array_length(g.members)), 0)
		FROM runs r
		LEFT JOIN run_groups g ON g.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			s         RunSummary
			createdAt string
		)
		if err := rows.Scan(&s.ID, &s.Source, &s.Features, &s.Linkage, &s.Threshold, &createdAt, &s.Groups, &s.Texts); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		s.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its groups.
func (d *DB) DeleteRun(id int64) error {
	res, err := d.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	return nil
}
