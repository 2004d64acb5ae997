package certificate_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaitanya1-coder/docufy/pkg/archive"
	"github.com/chaitanya1-coder/docufy/pkg/certificate"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/digest"
	"github.com/chaitanya1-coder/docufy/pkg/indexer"
	"github.com/chaitanya1-coder/docufy/pkg/journal"
	"github.com/chaitanya1-coder/docufy/pkg/txbuilder"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

// fakeChain is an in-memory indexer. Submitted transactions show up at the
// head of the address history with their metadata.
type fakeChain struct {
	mu       sync.Mutex
	calls    int
	probeErr error
	listErr  error
	listed   string
	txs      []indexer.TransactionSummary
	metadata map[string]indexer.Metadata
	metaErr  map[string]error
	fetched  []string
	utxos    []indexer.UTXO
	params   *indexer.ProtocolParameters
	height   int64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		metadata: map[string]indexer.Metadata{},
		metaErr:  map[string]error{},
		height:   3_000_000,
	}
}

func (f *fakeChain) hit() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeChain) Probe(context.Context) error {
	f.hit()
	return f.probeErr
}

func (f *fakeChain) AddressTransactions(_ context.Context, addr string, count int) ([]indexer.TransactionSummary, error) {
	f.hit()
	f.listed = addr
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.txs) > count {
		return f.txs[:count], nil
	}
	return f.txs, nil
}

func (f *fakeChain) TransactionMetadata(_ context.Context, txHash string) (indexer.Metadata, bool, error) {
	f.hit()
	f.fetched = append(f.fetched, txHash)
	if err := f.metaErr[txHash]; err != nil {
		return nil, false, err
	}
	md, ok := f.metadata[txHash]
	return md, ok, nil
}

func (f *fakeChain) AddressUTXOs(context.Context, string) ([]indexer.UTXO, error) {
	f.hit()
	return f.utxos, nil
}

func (f *fakeChain) LatestBlock(context.Context) (*indexer.Block, error) {
	f.hit()
	return &indexer.Block{Height: f.height, Slot: 80_000_000}, nil
}

func (f *fakeChain) ProtocolParameters(context.Context) (*indexer.ProtocolParameters, error) {
	f.hit()
	if f.params != nil {
		p := *f.params
		return &p, nil
	}
	return &indexer.ProtocolParameters{MinFeeA: 44, MinFeeB: 155381, MaxTxSize: 16384, CoinsPerUTxOSize: "4310"}, nil
}

func (f *fakeChain) SubmitTx(_ context.Context, tx []byte) (string, error) {
	f.hit()
	var parts []cbor.RawMessage
	if err := cbor.Unmarshal(tx, &parts); err != nil {
		return "", err
	}
	var aux map[uint64]map[string]string
	if err := cbor.Unmarshal(parts[3], &aux); err != nil {
		return "", err
	}
	hash := txbuilder.TxHash(parts[0])
	md := indexer.Metadata{}
	for label, v := range aux {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		md[fmt.Sprint(label)] = raw
	}
	f.height++
	f.metadata[hash] = md
	f.txs = append([]indexer.TransactionSummary{{TxHash: hash, BlockHeight: f.height, BlockTime: 1746000000}}, f.txs...)
	return hash, nil
}

// addTx appends an older transaction to the history.
func (f *fakeChain) addTx(hash string, height int64, payload map[string]string) {
	f.txs = append(f.txs, indexer.TransactionSummary{TxHash: hash, BlockHeight: height, BlockTime: height * 20})
	if payload != nil {
		raw, _ := json.Marshal(payload)
		f.metadata[hash] = indexer.Metadata{"674": raw}
	}
}

var (
	certPDF = []byte("%PDF-1.7\n%%EOF\n\n\n")
	now     = time.Date(2025, 4, 30, 8, 15, 0, 0, time.UTC)
)

type fixture struct {
	svc     *certificate.Service
	chain   *fakeChain
	wallet  *wallet.KeyWallet
	cfg     config.Config
	journal *journal.Memory
	archive *archive.Archive
	status  []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{chain: newFakeChain(), journal: journal.NewMemory()}

	w, err := wallet.NewKeyWallet(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{9}, ed25519.SeedSize)), config.Preprod, f.chain)
	require.NoError(t, err)
	f.wallet = w
	f.chain.utxos = []indexer.UTXO{{
		Address: w.Address().String(),
		TxHash:  strings.Repeat("f0", 32),
		Amount:  []indexer.Amount{{Unit: "lovelace", Quantity: "10000000"}},
	}}

	backend, err := archive.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	f.archive = archive.New(backend)

	f.cfg = config.Default()
	f.cfg.IndexerAPIKey = "preprodTESTKEY0123456789abcdef"

	f.svc = certificate.New(
		certificate.WithIndexerFactory(func(config.Config) certificate.Indexer { return f.chain }),
		certificate.WithJournal(f.journal),
		certificate.WithArchive(f.archive),
		certificate.WithClock(func() time.Time { return now }),
		certificate.WithReporter(func(msg string) { f.status = append(f.status, msg) }),
	)
	return f
}

func pdf(name string, data []byte) certificate.File {
	return certificate.File{Name: name, ContentType: "application/pdf", Data: data}
}

func TestIssueThenVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.Len(t, certPDF, 17)

	iss, err := f.svc.Issue(ctx, f.cfg, pdf("cert.pdf", certPDF), f.wallet)
	require.NoError(t, err)
	assert.Len(t, iss.TxHash, 64)
	assert.Equal(t, digest.SumBytes(certPDF), iss.Digest)
	assert.Equal(t, "cert.pdf", iss.Record.FileName)
	assert.Equal(t, "2025-04-30T08:15:00.000Z", iss.Record.IssuedAt)
	assert.Equal(t, f.wallet.Address().String(), iss.Address)
	assert.Contains(t, f.status, "Calculating file hash...")
	assert.Contains(t, f.status, "Creating blockchain transaction...")

	res, err := f.svc.Verify(ctx, f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, iss.TxHash, res.TransactionHash)
	assert.Equal(t, "cert.pdf", res.FileName)
	assert.Equal(t, iss.Digest.String(), res.CertificateHash)
	assert.Equal(t, "preprod", res.Network)
	assert.Equal(t, "Docufy - Document Verifier App", res.Issuer)
	assert.Equal(t, 1, res.Scanned)
	assert.Empty(t, res.Warnings)

	entries, err := f.journal.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, iss.AttemptID, entries[0].ID)
	assert.Equal(t, "submitted", entries[0].Stage)
	assert.Equal(t, iss.TxHash, entries[0].TxHash)
	assert.True(t, entries[0].Done())

	receipt, err := f.archive.Get(ctx, iss.TxHash)
	require.NoError(t, err)
	assert.Equal(t, "cert.pdf", receipt.FileName)
	assert.Equal(t, iss.Fee, receipt.Fee)
}

func TestIssueThenVerify_MixedCaseNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cfg.Network = "Preprod"

	iss, err := f.svc.Issue(ctx, f.cfg, pdf("cert.pdf", certPDF), f.wallet)
	require.NoError(t, err)
	assert.Equal(t, "preprod", iss.Record.Network)

	res, err := f.svc.Verify(ctx, f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "preprod", res.Network)
}

func TestVerify_UnknownFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, f.cfg, pdf("cert.pdf", certPDF), f.wallet)
	require.NoError(t, err)

	other := append([]byte(nil), certPDF...)
	other[len(other)-1] = 'x'
	res, err := f.svc.Verify(ctx, f.cfg, pdf("cert.pdf", other), f.wallet.Address().String())
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Message, "Certificate hash not found on blockchain")
	assert.Empty(t, res.TransactionHash)
}

func TestVerify_FirstMatchWins(t *testing.T) {
	f := newFixture(t)
	d := digest.SumBytes(certPDF).String()

	f.chain.addTx("t3", 40, nil)
	f.chain.addTx("t2", 30, map[string]string{"certificate_hash": d, "file_name": "newer.pdf", "network": "preprod"})
	f.chain.addTx("t1", 20, map[string]string{"certificate_hash": d, "file_name": "older.pdf", "network": "preprod"})
	f.chain.addTx("t0", 10, nil)

	res, err := f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "t2", res.TransactionHash)
	assert.Equal(t, "newer.pdf", res.FileName)
	assert.Equal(t, int64(30), res.BlockHeight)
	assert.Equal(t, []string{"t3", "t2"}, f.chain.fetched)
}

func TestVerify_SkipsFailedLookups(t *testing.T) {
	f := newFixture(t)
	d := digest.SumBytes(certPDF).String()

	f.chain.addTx("broken", 50, nil)
	f.chain.metaErr["broken"] = &indexer.APIError{Status: 500, Path: "/txs/broken/metadata"}
	f.chain.addTx("cip20", 40, nil)
	f.chain.metadata["cip20"] = indexer.Metadata{"674": json.RawMessage(`{"msg":["hello"]}`)}
	f.chain.addTx("hit", 30, map[string]string{"certificate_hash": d, "file_name": "cert.pdf"})

	res, err := f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "hit", res.TransactionHash)
	assert.Equal(t, "preprod", res.Network, "falls back to the configured network")
	assert.Equal(t, 2, res.Scanned)
}

func TestVerify_FutureVersionWarns(t *testing.T) {
	f := newFixture(t)
	d := digest.SumBytes(certPDF).String()
	f.chain.addTx("v2", 10, map[string]string{"certificate_hash": d, "version": "2.0", "network": "preview"})

	res, err := f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "preview", res.Network)
	assert.Len(t, res.Warnings, 1)
}

func TestVerify_EmptyHistory(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Message, "No transactions found for this address")
	assert.Empty(t, f.chain.fetched)
}

func TestPlaceholderKeyBlocksNetwork(t *testing.T) {
	for _, key := range []string{"", "YOUR_API_KEY_HERE", "preprodYOUR_API_KEY_HERE", "mainnetYOUR_API_KEY_HERE"} {
		t.Run(fmt.Sprintf("key=%q", key), func(t *testing.T) {
			f := newFixture(t)
			f.cfg.IndexerAPIKey = key
			ctx := context.Background()

			_, err := f.svc.Issue(ctx, f.cfg, pdf("cert.pdf", certPDF), f.wallet)
			assert.ErrorIs(t, err, certificate.ErrConfiguration)

			_, err = f.svc.Verify(ctx, f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
			assert.ErrorIs(t, err, certificate.ErrConfiguration)

			var ce *certificate.Error
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Message, "Blockfrost API key not configured")
			assert.Zero(t, f.chain.calls)
		})
	}
}

func TestProbeRejectsKey(t *testing.T) {
	f := newFixture(t)
	f.chain.probeErr = &indexer.APIError{Status: 403, Path: "/network", Message: "Invalid project token."}

	_, err := f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
	var ce *certificate.Error
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, certificate.ErrConfiguration)
	assert.Equal(t, certificate.StepProbe, ce.Step)
	assert.Contains(t, ce.Message, "Invalid Blockfrost API key")

	f.cfg.ProbeAPIKey = false
	_, err = f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
	assert.NoError(t, err)
}

func TestVerify_ListingFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"transport", &indexer.TransportError{Op: "GET /addresses", Err: errors.New("connection refused")}, certificate.ErrNetwork},
		{"timeout", fmt.Errorf("list: %w", context.DeadlineExceeded), certificate.ErrNetwork},
		{"bad address", fmt.Errorf("%w: HTTP 400", indexer.ErrAddressFormat), certificate.ErrAddressFormat},
		{"server", &indexer.APIError{Status: 500, Path: "/addresses"}, certificate.ErrIndexer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.chain.listErr = tt.err

			_, err := f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), f.wallet.Address().String())
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err, "cause is preserved")
		})
	}
}

func TestVerify_Addresses(t *testing.T) {
	f := newFixture(t)
	raw, err := f.wallet.Address().Bytes()
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, f.wallet.Address().String(), f.chain.listed, "raw hex is converted before listing")

	calls := f.chain.calls
	byron := "82" + strings.Repeat("00", 28)
	_, err = f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), byron)
	assert.ErrorIs(t, err, certificate.ErrAddressFormat)
	assert.Equal(t, calls, f.chain.calls, "no indexer call for an unconvertible address")

	_, err = f.svc.Verify(context.Background(), f.cfg, pdf("cert.pdf", certPDF), "")
	assert.ErrorIs(t, err, certificate.ErrWalletUnavailable)
}

func TestIssue_NoWallet(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Issue(context.Background(), f.cfg, pdf("cert.pdf", certPDF), nil)
	assert.ErrorIs(t, err, certificate.ErrWalletUnavailable)
	assert.Zero(t, f.chain.calls)
}

func TestIssue_EmptyWallet(t *testing.T) {
	f := newFixture(t)
	f.chain.utxos = nil

	_, err := f.svc.Issue(context.Background(), f.cfg, pdf("cert.pdf", certPDF), f.wallet)
	var ce *certificate.Error
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, certificate.ErrInsufficientFunds)
	assert.Contains(t, ce.Message, "No UTXOs found in wallet")
	assert.Equal(t, "none", ce.Step)

	entries, err := f.journal.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ce.Message, entries[0].Error)
	assert.False(t, entries[0].Done())
}

type rejectingWallet struct{ *wallet.KeyWallet }

func (rejectingWallet) SignTx(context.Context, string, bool) (string, error) {
	return "", fmt.Errorf("%w: user declined", wallet.ErrRejected)
}

func TestIssue_SigningDeclined(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Issue(context.Background(), f.cfg, pdf("cert.pdf", certPDF), rejectingWallet{f.wallet})
	var ce *certificate.Error
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, certificate.ErrWalletSigning)
	assert.ErrorIs(t, err, wallet.ErrRejected)
	assert.Equal(t, "metadata_attached", ce.Step)
	assert.Empty(t, f.chain.txs, "nothing was submitted")
}

type garbledWallet struct{ *wallet.KeyWallet }

func (garbledWallet) Utxos(context.Context) ([]string, error) {
	return []string{"82deadbeef"}, nil
}

func TestIssue_BuildFailuresAreNotSigningErrors(t *testing.T) {
	tests := []struct {
		name    string
		params  *indexer.ProtocolParameters
		garbled bool
		class   error
		msg     string
	}{
		{"too large", &indexer.ProtocolParameters{MinFeeA: 44, MinFeeB: 155381, MaxTxSize: 100, CoinsPerUTxOSize: "4310"}, false, certificate.ErrValidation, "maximum transaction size"},
		{"malformed utxo", nil, true, certificate.ErrWalletUnavailable, "could not be read"},
		{"bad parameters", &indexer.ProtocolParameters{MinFeeA: 44, MinFeeB: 155381, MaxTxSize: 16384}, false, certificate.ErrIndexer, "Could not build"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.chain.params = tt.params
			var h wallet.Handle = f.wallet
			if tt.garbled {
				h = garbledWallet{f.wallet}
			}

			_, err := f.svc.Issue(context.Background(), f.cfg, pdf("cert.pdf", certPDF), h)
			var ce *certificate.Error
			require.ErrorAs(t, err, &ce)
			assert.ErrorIs(t, err, tt.class)
			assert.NotErrorIs(t, err, certificate.ErrWalletSigning)
			assert.Contains(t, ce.Message, tt.msg)
			assert.Empty(t, f.chain.txs, "nothing was submitted")
		})
	}
}

func TestIssue_NameTooLong(t *testing.T) {
	f := newFixture(t)
	name := strings.Repeat("n", 61) + ".pdf"

	_, err := f.svc.Issue(context.Background(), f.cfg, pdf(name, certPDF), f.wallet)
	assert.ErrorIs(t, err, certificate.ErrValidation)
}
