package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite stores entries in a local database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("journal: migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS issuance_attempts (
		id TEXT PRIMARY KEY,
		network TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL,
		stage TEXT NOT NULL,
		tx_hash TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS issuance_attempts_started ON issuance_attempts (started_at DESC);`)
	return err
}

func (s *SQLite) Save(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO issuance_attempts (id, network, address, file_name, stage, tx_hash, error, started_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		address = excluded.address,
		stage = excluded.stage,
		tx_hash = excluded.tx_hash,
		error = excluded.error,
		updated_at = excluded.updated_at`,
		e.ID, e.Network, e.Address, e.FileName, e.Stage, e.TxHash, e.Error,
		formatTime(e.StartedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("journal: save %s: %w", e.ID, err)
	}
	return nil
}

const sqliteSelect = `SELECT id, network, address, file_name, stage, tx_hash, error, started_at, updated_at FROM issuance_attempts`

func (s *SQLite) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id)
	e, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLite) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` ORDER BY started_at DESC, id LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (*Entry, error) {
	var e Entry
	var started, updated string
	if err := row.Scan(&e.ID, &e.Network, &e.Address, &e.FileName, &e.Stage, &e.TxHash, &e.Error, &started, &updated); err != nil {
		return nil, err
	}
	e.StartedAt = parseTime(started)
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
