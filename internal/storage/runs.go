package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// RunOutcome summarizes how a run ended
type RunOutcome string

const (
	// OutcomeRendered means every diagram has a current image
	OutcomeRendered RunOutcome = "rendered"
	// OutcomePartial means some diagrams are source only
	OutcomePartial RunOutcome = "partial"
	// OutcomeSourceOnly means no diagram was rendered
	OutcomeSourceOnly RunOutcome = "source-only"
	// OutcomeFailed means the run stopped with an error
	OutcomeFailed RunOutcome = "failed"
)

// RunRecord is one row of the ledger.
type RunRecord struct {
	ID            string     `json:"id"`
	Target        string     `json:"target"`
	SystemName    string     `json:"systemName"`
	Fingerprint   string     `json:"fingerprint,omitempty"`
	Outcome       RunOutcome `json:"outcome"`
	Containers    int        `json:"containers"`
	Externals     int        `json:"externals"`
	Relationships int        `json:"relationships"`
	Warnings      int        `json:"warnings"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	FinishedAt    time.Time  `json:"finishedAt"`
}

// Duration returns how long the run took
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.New().String()
}

// timeLayout has fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// RunStore reads and writes run records
type RunStore struct {
	db *DB
}

// NewRunStore creates a run store over db
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Save inserts rec with an optional model snapshot, stored compressed.
func (s *RunStore) Save(rec *RunRecord, snapshot []byte) error {
	if rec.ID == "" {
		rec.ID = NewRunID()
	}
	var blob []byte
	if len(snapshot) > 0 {
		blob = encoder.EncodeAll(snapshot, make([]byte, 0, len(snapshot)/2))
	}

	return s.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, target, system_name, fingerprint, outcome,
				containers, externals, relationships, warnings, error,
				started_at, finished_at, snapshot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.Target, rec.SystemName, rec.Fingerprint, string(rec.Outcome),
			rec.Containers, rec.Externals, rec.Relationships, rec.Warnings, rec.Error,
			rec.StartedAt.UTC().Format(timeLayout), rec.FinishedAt.UTC().Format(timeLayout), blob)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return nil
	})
}

// List returns the most recent runs, newest first. limit <= 0 means 20.
func (s *RunStore) List(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, target, system_name, fingerprint, outcome, containers, externals,
			relationships, warnings, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Get returns one run, or nil when id is unknown.
func (s *RunStore) Get(id string) (*RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, target, system_name, fingerprint, outcome, containers, externals,
			relationships, warnings, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// Snapshot returns the decompressed model snapshot of a run.
func (s *RunStore) Snapshot(id string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT snapshot FROM runs WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, nil
	}
	data, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	return data, nil
}

// LastFingerprint returns the fingerprint of the latest successful run for target.
func (s *RunStore) LastFingerprint(target string) (string, error) {
	var fp string
	err := s.db.QueryRow(`
		SELECT fingerprint FROM runs
		WHERE target = ? AND outcome != ?
		ORDER BY started_at DESC, rowid DESC LIMIT 1
	`, target, string(OutcomeFailed)).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return fp, err
}

// Prune keeps the newest keep runs and deletes the rest. keep <= 0 keeps everything.
func (s *RunStore) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			DELETE FROM runs WHERE id NOT IN (
				SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
			)
		`, keep)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var (
		rec               RunRecord
		outcome           string
		started, finished string
	)
	err := row.Scan(&rec.ID, &rec.Target, &rec.SystemName, &rec.Fingerprint, &outcome,
		&rec.Containers, &rec.Externals, &rec.Relationships, &rec.Warnings, &rec.Error,
		&started, &finished)
	if err != nil {
		return nil, err
	}
	rec.Outcome = RunOutcome(outcome)
	rec.StartedAt, _ = time.Parse(timeLayout, started)
	rec.FinishedAt, _ = time.Parse(timeLayout, finished)
	return &rec, nil
}
