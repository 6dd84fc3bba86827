package storage

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"archdoc/internal/slogutil"
)

func setupTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), ".archdoc", "ledger.db")

	db, err := Open(dbPath, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db, dbPath
}

func TestDatabaseInitialization(t *testing.T) {
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file was not created at %s", dbPath)
	}

	version, err := db.schemaVersion()
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("Expected schema version %d, got %d", len(migrations), version)
	}
}

func TestOpen_UpgradesOlderLedger(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	tx, err := conn.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := createRuns(tx); err != nil {
		t.Fatalf("createRuns() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	db, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name='idx_runs_target'`).Scan(&name)
	if err != nil {
		t.Errorf("target index missing after upgrade: %v", err)
	}
}

func TestOpen_RejectsNewerLedger(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations)+1)); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	if _, err := Open(dbPath, nil); err == nil {
		t.Error("Open() should refuse a ledger from a newer schema")
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)
	store := NewRunStore(db)
	if err := store.Save(&RunRecord{Target: "/repo", SystemName: "Shop", Outcome: OutcomeRendered, StartedAt: time.Now(), FinishedAt: time.Now()}, nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	again, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer again.Close()

	runs, err := NewRunStore(again).List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("len(runs) = %d, want 1", len(runs))
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	db, _ := setupTestDB(t)
	store := NewRunStore(db)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	snapshot := []byte(`{"system":{"name":"Shop"},"containers":[` + strings.Repeat(`{"id":"web"},`, 50) + `{"id":"worker"}]}`)

	rec := &RunRecord{
		Target:        "/repo/Shop.sln",
		SystemName:    "Shop",
		Fingerprint:   "abc123",
		Outcome:       OutcomePartial,
		Containers:    4,
		Externals:     2,
		Relationships: 6,
		Warnings:      1,
		StartedAt:     started,
		FinishedAt:    started.Add(1500 * time.Millisecond),
	}
	if err := store.Save(rec, snapshot); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Save() should assign an ID")
	}

	got, err := store.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil")
	}
	if got.SystemName != "Shop" || got.Outcome != OutcomePartial || got.Relationships != 6 {
		t.Errorf("Get() = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, want 1.5s", got.Duration())
	}

	data, err := store.Snapshot(rec.ID)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !bytes.Equal(data, snapshot) {
		t.Errorf("Snapshot() = %q, want original bytes", data)
	}

	var stored []byte
	if err := db.QueryRow(`SELECT snapshot FROM runs WHERE id = ?`, rec.ID).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if len(stored) >= len(snapshot) {
		t.Errorf("stored snapshot %d bytes, want compressed below %d", len(stored), len(snapshot))
	}

	missing, err := store.Get("nope")
	if err != nil || missing != nil {
		t.Errorf("Get(unknown) = %v, %v; want nil, nil", missing, err)
	}
	if _, err := store.Snapshot("nope"); err != sql.ErrNoRows {
		t.Errorf("Snapshot(unknown) error = %v, want sql.ErrNoRows", err)
	}
}

func TestRunStore_ListAndPrune(t *testing.T) {
	db, _ := setupTestDB(t)
	store := NewRunStore(db)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		outcome := OutcomeRendered
		if i == 4 {
			outcome = OutcomeFailed
		}
		rec := &RunRecord{
			Target:      "/repo",
			SystemName:  "Shop",
			Fingerprint: string(rune('a' + i)),
			Outcome:     outcome,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			FinishedAt:  base.Add(time.Duration(i)*time.Minute + time.Second),
		}
		if err := store.Save(rec, nil); err != nil {
			t.Fatalf("Save(%d) error = %v", i, err)
		}
	}

	runs, err := store.List(3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[0].Fingerprint != "e" || runs[2].Fingerprint != "c" {
		t.Errorf("List order = %s..%s, want newest first", runs[0].Fingerprint, runs[2].Fingerprint)
	}

	fp, err := store.LastFingerprint("/repo")
	if err != nil {
		t.Fatalf("LastFingerprint() error = %v", err)
	}
	if fp != "d" {
		t.Errorf("LastFingerprint() = %q, want d (failed runs skipped)", fp)
	}
	if fp, _ := store.LastFingerprint("/other"); fp != "" {
		t.Errorf("LastFingerprint(unknown) = %q, want empty", fp)
	}

	deleted, err := store.Prune(2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("Prune() deleted %d, want 3", deleted)
	}
	runs, _ = store.List(0)
	if len(runs) != 2 {
		t.Errorf("len(runs) after prune = %d, want 2", len(runs))
	}

	if n, _ := store.Prune(0); n != 0 {
		t.Errorf("Prune(0) deleted %d, want 0", n)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("run IDs should be unique")
	}
	if len(a) != 36 {
		t.Errorf("len(NewRunID()) = %d, want 36", len(a))
	}
}
