// Package journal records issuance attempts so a failure always reports the
// last step reached. Entries never carry the file digest.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("journal: entry not found")

// Entry is one issuance attempt.
type Entry struct {
	ID        string    `json:"id"`
	Network   string    `json:"network"`
	Address   string    `json:"address,omitempty"`
	FileName  string    `json:"file_name"`
	Stage     string    `json:"stage"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Done reports whether the attempt reached submission.
func (e Entry) Done() bool { return e.TxHash != "" && e.Error == "" }

// Store persists entries. Save upserts by ID.
type Store interface {
	Save(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NewID returns a fresh attempt id.
func NewID() string { return uuid.NewString() }

const defaultListLimit = 50

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}

// Open picks a backend from dsn: empty or "memory", "sqlite:<path>", or a
// postgres:// URL.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("journal: open postgres: %w", err)
		}
		s := NewPostgres(db)
		if err := s.Init(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: init postgres: %w", err)
		}
		return s, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		db, err := sql.Open("sqlite", strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, fmt.Errorf("journal: open sqlite: %w", err)
		}
		s, err := NewSQLite(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("journal: unsupported dsn %q", redact(dsn))
	}
}

func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	if len(dsn) > 12 {
		return dsn[:12] + "..."
	}
	return dsn
}
