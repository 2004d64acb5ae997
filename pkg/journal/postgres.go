package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// Postgres stores entries in a shared database for multi-instance API deployments.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS issuance_attempts (
	id TEXT PRIMARY KEY,
	network TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL,
	stage TEXT NOT NULL,
	tx_hash TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS issuance_attempts_started ON issuance_attempts (started_at DESC);
`

func (p *Postgres) Init(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, pgSchema)
	return err
}

func (p *Postgres) Save(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO issuance_attempts (id, network, address, file_name, stage, tx_hash, error, started_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (id) DO UPDATE SET address = EXCLUDED.address, stage = EXCLUDED.stage, tx_hash = EXCLUDED.tx_hash, error = EXCLUDED.error, updated_at = EXCLUDED.updated_at`,
		e.ID, e.Network, e.Address, e.FileName, e.Stage, e.TxHash, e.Error, e.StartedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("journal: save %s: %w", e.ID, err)
	}
	return nil
}

const pgSelect = `SELECT id, network, address, file_name, stage, tx_hash, error, started_at, updated_at FROM issuance_attempts`

func (p *Postgres) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := p.db.QueryRowContext(ctx, pgSelect+` WHERE id = $1`, id).
		Scan(&e.ID, &e.Network, &e.Address, &e.FileName, &e.Stage, &e.TxHash, &e.Error, &e.StartedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, pgSelect+` ORDER BY started_at DESC, id LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Network, &e.Address, &e.FileName, &e.Stage, &e.TxHash, &e.Error, &e.StartedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error { return p.db.Close() }
