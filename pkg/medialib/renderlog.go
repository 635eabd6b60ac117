package medialib

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// RenderLog is an embedded, CGo-free audit trail of completed renders,
// backed by modernc.org/sqlite. It is a local alternative to the Postgres
// Catalog above for single-node deployments that don't want a network
// database dependency just to remember what was rendered when.
type RenderLog struct {
	db *sql.DB
}

// OpenRenderLog opens (creating if needed) a sqlite database at path and
// ensures its schema exists.
func OpenRenderLog(path string) (*RenderLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("medialib: open render log: %w", err)
	}
	rl := &RenderLog{db: db}
	if err := rl.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return rl, nil
}

func (rl *RenderLog) migrate() error {
	const q = `
	CREATE TABLE IF NOT EXISTS renders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		edl_id TEXT NOT NULL,
		revision TEXT NOT NULL,
		start_samples INTEGER NOT NULL,
		duration_samples INTEGER NOT NULL,
		out_path TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		completed_at DATETIME NOT NULL
	);`
	_, err := rl.db.Exec(q)
	return err
}

// Record appends a completed render to the log.
func (rl *RenderLog) Record(ctx context.Context, edlID, revision string, start, duration int64, outPath, sha256Hex string) error {
	const q = `INSERT INTO renders (edl_id, revision, start_samples, duration_samples, out_path, sha256, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := rl.db.ExecContext(ctx, q, edlID, revision, start, duration, outPath, sha256Hex, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("medialib: record render: %w", err)
	}
	return nil
}

// LastRevision returns the most recently recorded revision for edlID, or
// "" if none has been recorded.
func (rl *RenderLog) LastRevision(ctx context.Context, edlID string) (string, error) {
	row := rl.db.QueryRowContext(ctx,
		"SELECT revision FROM renders WHERE edl_id = ? ORDER BY id DESC LIMIT 1", edlID)
	var rev string
	if err := row.Scan(&rev); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("medialib: last revision: %w", err)
	}
	return rev, nil
}

// Close releases the underlying database handle.
func (rl *RenderLog) Close() error { return rl.db.Close() }
