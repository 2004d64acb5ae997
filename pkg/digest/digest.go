// Package digest computes the SHA-256 content fingerprint anchored by a certificate.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Size is the hex length of a digest.
const Size = sha256.Size * 2

// Digest is the lowercase hex SHA-256 of a file's raw bytes.
type Digest string

// SumBytes hashes data as-is.
func SumBytes(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest(hex.EncodeToString(sum[:]))
}

// Sum streams r to the end. A short read surfaces as an error, never as a digest of partial content.
func Sum(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("digest: read failed: %w", err)
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// SumFile hashes the file at path.
func SumFile(path string) (Digest, error) {
	f, err := os.Open(path) //nolint:gosec // caller-selected path
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Sum(f)
}

// Parse accepts a 64-character hex digest in either case and normalises it.
func Parse(s string) (Digest, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != Size {
		return "", fmt.Errorf("digest: expected %d hex characters, got %d", Size, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("digest: invalid hex: %w", err)
	}
	return Digest(s), nil
}

func (d Digest) String() string { return string(d) }

// Matches is exact string equality against a value read back from the chain.
func (d Digest) Matches(onChain string) bool {
	return d != "" && string(d) == onChain
}
