package storage

import (
	"database/sql"
	"fmt"
)

// migrations[i] moves the schema from version i to i+1. The applied version
// lives in PRAGMA user_version, so appending a step upgrades old ledgers on
// their next open.
var migrations = []func(*sql.Tx) error{
	createRuns,
	indexRunsByTarget,
}

func createRuns(tx *sql.Tx) error {
	// snapshot is the zstd-compressed JSON model of the run.
	_, err := tx.Exec(`
		CREATE TABLE runs (
			id            TEXT PRIMARY KEY,
			target        TEXT NOT NULL,
			system_name   TEXT NOT NULL,
			fingerprint   TEXT NOT NULL DEFAULT '',
			outcome       TEXT NOT NULL,
			containers    INTEGER NOT NULL DEFAULT 0,
			externals     INTEGER NOT NULL DEFAULT 0,
			relationships INTEGER NOT NULL DEFAULT 0,
			warnings      INTEGER NOT NULL DEFAULT 0,
			error         TEXT NOT NULL DEFAULT '',
			started_at    TEXT NOT NULL,
			finished_at   TEXT NOT NULL,
			snapshot      BLOB
		);
		CREATE INDEX idx_runs_started ON runs(started_at);
	`)
	return err
}

func indexRunsByTarget(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX idx_runs_target ON runs(target, started_at)`)
	return err
}

func (db *DB) schemaVersion() (int, error) {
	var v int
	err := db.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}

func (db *DB) migrate() error {
	from, err := db.schemaVersion()
	if err != nil {
		return err
	}
	if from > len(migrations) {
		return fmt.Errorf("ledger schema version %d is newer than this archdoc supports (%d)", from, len(migrations))
	}
	if from == len(migrations) {
		return nil
	}

	db.logger.Info("Migrating run ledger", "path", db.path, "from_version", from, "to_version", len(migrations))
	for v := from; v < len(migrations); v++ {
		step := migrations[v]
		next := v + 1
		err := db.WithTx(func(tx *sql.Tx) error {
			if err := step(tx); err != nil {
				return err
			}
			// PRAGMA does not accept bound parameters.
			_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", next))
			return err
		})
		if err != nil {
			return fmt.Errorf("schema step %d: %w", next, err)
		}
	}
	return nil
}
