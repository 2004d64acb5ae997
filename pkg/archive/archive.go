// Package archive keeps a JSON receipt for every submitted certificate
// transaction, keyed by transaction hash.
package archive

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
)

var (
	ErrNotFound   = errors.New("archive: receipt not found")
	ErrInvalidKey = errors.New("archive: invalid transaction hash")
)

// Receipt points at the chain record. The file digest is deliberately not
// part of it; it lives only in the transaction metadata.
type Receipt struct {
	TxHash     string    `json:"tx_hash"`
	Network    string    `json:"network"`
	Address    string    `json:"address"`
	FileName   string    `json:"file_name"`
	IssuedAt   string    `json:"issued_at"`
	Issuer     string    `json:"issuer"`
	Version    string    `json:"version"`
	Fee        uint64    `json:"fee"`
	Size       int       `json:"size"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Backend stores opaque blobs by key.
type Backend interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
}

// Archive encodes receipts onto a Backend.
type Archive struct {
	backend Backend
	now     func() time.Time
}

func New(b Backend) *Archive {
	return &Archive{backend: b, now: time.Now}
}

func key(txHash string) (string, error) {
	h := strings.ToLower(txHash)
	if raw, err := hex.DecodeString(h); err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, txHash)
	}
	return h + ".json", nil
}

// Put writes r in RFC 8785 canonical form.
func (a *Archive) Put(ctx context.Context, r Receipt) error {
	k, err := key(r.TxHash)
	if err != nil {
		return err
	}
	if r.ArchivedAt.IsZero() {
		r.ArchivedAt = a.now().UTC()
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return fmt.Errorf("archive: canonicalize: %w", err)
	}
	return a.backend.Write(ctx, k, canon)
}

func (a *Archive) Get(ctx context.Context, txHash string) (*Receipt, error) {
	k, err := key(txHash)
	if err != nil {
		return nil, err
	}
	raw, err := a.backend.Read(ctx, k)
	if err != nil {
		return nil, err
	}
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("archive: decode %s: %w", k, err)
	}
	return &r, nil
}
