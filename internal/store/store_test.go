package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jacklau/clusterkit/internal/report"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testReport(source string, createdAt time.Time) *report.Report {
	return &report.Report{
		Source:    source,
		Features:  "ngram",
		Linkage:   "average",
		Threshold: 0.3,
		Merges:    2,
		Groups: []report.Group{
			{Label: "login fails", Members: []string{"login fails", "cannot login", "login broken"}},
			{Label: "dark mode", Members: []string{"dark mode please"}},
		},
		Skipped:   []string{"???"},
		CreatedAt: createdAt,
	}
}

func TestMigration(t *testing.T) {
	db := setupTestDB(t)

	var version int
	if err := db.Conn().QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if version != currentVersion {
		t.Errorf("expected user_version %d, got %d", currentVersion, version)
	}

	for _, table := range []string{"runs", "run_groups", "embeddings"} {
		var name string
		err := db.Conn().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrationIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := db.SaveRun(testReport("stdin", created))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero run ID")
	}

	got, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.ID != id || got.Source != "stdin" || got.Linkage != "average" || got.Threshold != 0.3 {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Merges != 2 {
		t.Errorf("expected 2 merges, got %d", got.Merges)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}
	if len(got.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(got.Groups))
	}
	if got.Groups[0].Label != "login fails" || len(got.Groups[0].Members) != 3 {
		t.Errorf("unexpected first group: %+v", got.Groups[0])
	}
	if got.Groups[1].Members[0] != "dark mode please" {
		t.Errorf("unexpected second group: %+v", got.Groups[1])
	}
	if len(got.Skipped) != 1 || got.Skipped[0] != "???" {
		t.Errorf("unexpected skipped texts: %v", got.Skipped)
	}
}

func TestSaveRunSetsCreatedAt(t *testing.T) {
	db := setupTestDB(t)

	before := time.Now().Add(-time.Second)
	id, err := db.SaveRun(testReport("args", time.Time{}))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	got, err := db.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.CreatedAt.Before(before.Truncate(time.Second)) {
		t.Errorf("created_at %v not set to now", got.CreatedAt)
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetRun(42)
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, src := range []string{"first", "second", "third"} {
		if _, err := db.SaveRun(testReport(src, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Source != "third" || runs[1].Source != "second" {
		t.Errorf("expected newest first, got %s, %s", runs[0].Source, runs[1].Source)
	}
	if runs[0].Groups != 2 || runs[0].Texts != 4 {
		t.Errorf("expected 2 groups / 4 texts, got %d / %d", runs[0].Groups, runs[0].Texts)
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns(0) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected all 3 runs, got %d", len(all))
	}
}

func TestListRunsEmpty(t *testing.T) {
	db := setupTestDB(t)

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}

func TestDeleteRunCascades(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.SaveRun(testReport("stdin", time.Now()))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := db.DeleteRun(id); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	var groups int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM run_groups`).Scan(&groups); err != nil {
		t.Fatal(err)
	}
	if groups != 0 {
		t.Errorf("expected groups deleted with run, %d remain", groups)
	}

	if err := db.DeleteRun(id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound on second delete, got %v", err)
	}
}

func TestEmbeddingCache(t *testing.T) {
	db := setupTestDB(t)

	_, ok, err := db.GetEmbedding("abc", "nomic-embed-text")
	if err != nil {
		t.Fatalf("GetEmbedding failed: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss")
	}

	if err := db.PutEmbedding("abc", "nomic-embed-text", []float64{0.5, -1, 2}); err != nil {
		t.Fatalf("PutEmbedding failed: %v", err)
	}
	vec, ok, err := db.GetEmbedding("abc", "nomic-embed-text")
	if err != nil || !ok {
		t.Fatalf("expected cache hit, ok=%v err=%v", ok, err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -1 || vec[2] != 2 {
		t.Errorf("unexpected vector %v", vec)
	}

	// Same hash under another model is a separate entry.
	if _, ok, _ := db.GetEmbedding("abc", "text-embedding-3-small"); ok {
		t.Error("expected miss for a different model")
	}

	if err := db.PutEmbedding("abc", "nomic-embed-text", []float64{1}); err != nil {
		t.Fatalf("PutEmbedding overwrite failed: %v", err)
	}
	vec, _, _ = db.GetEmbedding("abc", "nomic-embed-text")
	if len(vec) != 1 || vec[0] != 1 {
		t.Errorf("expected overwritten vector, got %v", vec)
	}
}

func TestPutEmbeddingRejectsEmpty(t *testing.T) {
	db := setupTestDB(t)
	if err := db.PutEmbedding("abc", "m", nil); err == nil {
		t.Fatal("expected error for empty vector")
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Runs != 0 || stats.Groups != 0 || stats.Embeddings != 0 || stats.LastRunAt != nil {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	last := time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC)
	db.SaveRun(testReport("a", last.Add(-time.Hour)))
	db.SaveRun(testReport("b", last))
	db.PutEmbedding("h1", "m", []float64{1})

	stats, err = db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Runs != 2 || stats.Groups != 4 || stats.Embeddings != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.LastRunAt == nil || !stats.LastRunAt.Equal(last) {
		t.Errorf("expected last run %v, got %v", last, stats.LastRunAt)
	}
}
