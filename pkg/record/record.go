// Package record defines the certificate payload written under metadata label 674.
//
// The JSON field names and value formats are a durable contract between
// issuance and verification. Changing them orphans every certificate
// already on chain.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"

	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/digest"
)

const (
	// Label is the transaction metadata namespace both sides agree on.
	Label uint64 = 674

	Issuer  = "Docufy - Document Verifier App"
	Version = "1.0"

	// MaxStringBytes is the ledger's limit for a single metadata text value.
	MaxStringBytes = 64

	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	ErrInvalid  = errors.New("record: invalid field")
	ErrTooLong  = errors.New("record: value exceeds metadata string limit")
	ErrNotFound = errors.New("record: no certificate under label")
)

// Record is the metadata payload anchored on chain.
type Record struct {
	CertificateHash string `json:"certificate_hash"`
	FileName        string `json:"file_name"`
	IssuedAt        string `json:"issued_at"`
	Issuer          string `json:"issuer"`
	Version         string `json:"version"`
	Network         string `json:"network"`
}

// New builds the record for one issuance. The file name is NFC-normalised so
// the same visible name always anchors the same bytes.
func New(d digest.Digest, fileName string, network config.Network, now time.Time) (Record, error) {
	hash, err := digest.Parse(d.String())
	if err != nil {
		return Record{}, fmt.Errorf("%w: certificate_hash: %v", ErrInvalid, err)
	}
	name := norm.NFC.String(fileName)
	if name == "" {
		return Record{}, fmt.Errorf("%w: file_name is empty", ErrInvalid)
	}
	if network == "" {
		return Record{}, fmt.Errorf("%w: network is empty", ErrInvalid)
	}
	canonical, err := config.ParseNetwork(network.String())
	if err != nil {
		return Record{}, fmt.Errorf("%w: network %q", ErrInvalid, network)
	}
	r := Record{
		CertificateHash: hash.String(),
		FileName:        name,
		IssuedAt:        now.UTC().Format(timeLayout),
		Issuer:          Issuer,
		Version:         Version,
		Network:         canonical.String(),
	}
	for field, v := range r.fields() {
		if len(v) > MaxStringBytes {
			return Record{}, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLong, field, len(v), MaxStringBytes)
		}
	}
	return r, nil
}

func (r Record) fields() map[string]string {
	return map[string]string{
		"certificate_hash": r.CertificateHash,
		"file_name":        r.FileName,
		"issued_at":        r.IssuedAt,
		"issuer":           r.Issuer,
		"version":          r.Version,
		"network":          r.Network,
	}
}

// Metadata returns the auxiliary-data map {674: {...}} ready for CBOR encoding.
func (r Record) Metadata() map[uint64]any {
	return map[uint64]any{Label: r.fields()}
}

// Canonical returns the RFC 8785 form of the record, used for receipts.
func (r Record) Canonical() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// Time parses IssuedAt.
func (r Record) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.IssuedAt)
}

// Digest returns the anchored hash.
func (r Record) Digest() digest.Digest { return digest.Digest(r.CertificateHash) }

// LabelKey is the label as the indexer renders it.
func LabelKey() string { return strconv.FormatUint(Label, 10) }
