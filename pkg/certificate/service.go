// Package certificate issues and verifies PDF certificates anchored in
// Cardano transaction metadata.
//
// Issue hashes a file and submits a self-payment carrying the digest under
// metadata label 674. Verify re-hashes a candidate file and walks the most
// recent transactions of an address until the digest turns up.
package certificate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/chaitanya1-coder/docufy/pkg/address"
	"github.com/chaitanya1-coder/docufy/pkg/archive"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/digest"
	"github.com/chaitanya1-coder/docufy/pkg/indexer"
	"github.com/chaitanya1-coder/docufy/pkg/journal"
	"github.com/chaitanya1-coder/docufy/pkg/observability"
	"github.com/chaitanya1-coder/docufy/pkg/record"
	"github.com/chaitanya1-coder/docufy/pkg/txbuilder"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

// Indexer is the chain read and submit surface the service needs.
type Indexer interface {
	Probe(ctx context.Context) error
	AddressTransactions(ctx context.Context, addr string, count int) ([]indexer.TransactionSummary, error)
	TransactionMetadata(ctx context.Context, txHash string) (indexer.Metadata, bool, error)
	LatestBlock(ctx context.Context) (*indexer.Block, error)
	ProtocolParameters(ctx context.Context) (*indexer.ProtocolParameters, error)
	SubmitTx(ctx context.Context, tx []byte) (string, error)
}

// IndexerFactory builds an Indexer for one call's configuration.
type IndexerFactory func(cfg config.Config) Indexer

// Journal records issuance attempts.
type Journal interface {
	Save(ctx context.Context, e journal.Entry) error
}

// Archive keeps receipts of submitted transactions.
type Archive interface {
	Put(ctx context.Context, r archive.Receipt) error
}

// Reporter receives human-readable progress lines.
type Reporter func(msg string)

// Issuance is the outcome of a successful Issue.
type Issuance struct {
	TxHash    string        `json:"tx_hash"`
	Digest    digest.Digest `json:"certificate_hash"`
	Record    record.Record `json:"record"`
	Address   string        `json:"address"`
	Fee       uint64        `json:"fee"`
	Size      int           `json:"size"`
	AttemptID string        `json:"attempt_id"`
}

// Result is the outcome of Verify. A negative result is not an error.
type Result struct {
	Valid           bool     `json:"valid"`
	Message         string   `json:"message"`
	CertificateHash string   `json:"certificate_hash"`
	FileName        string   `json:"file_name,omitempty"`
	IssuedAt        string   `json:"issued_at,omitempty"`
	Issuer          string   `json:"issuer,omitempty"`
	Version         string   `json:"version,omitempty"`
	Network         string   `json:"network,omitempty"`
	TransactionHash string   `json:"transaction_hash,omitempty"`
	BlockTime       int64    `json:"block_time,omitempty"`
	BlockHeight     int64    `json:"block_height,omitempty"`
	Scanned         int      `json:"scanned"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

func WithIndexerFactory(f IndexerFactory) Option {
	return func(s *Service) { s.newIndexer = f }
}

// WithLimiter shares one request budget across every indexer the default
// factory builds.
func WithLimiter(l indexer.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

func WithTelemetry(p *observability.Provider) Option {
	return func(s *Service) { s.telemetry = p }
}

func WithReporter(r Reporter) Option {
	return func(s *Service) { s.reporter = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs issue and verify. It keeps no per-call state; the
// configuration is passed into every call.
type Service struct {
	newIndexer IndexerFactory
	limiter    indexer.Limiter
	journal    Journal
	archive    Archive
	telemetry  *observability.Provider
	reporter   Reporter
	logger     *slog.Logger
	now        func() time.Time
}

func New(opts ...Option) *Service {
	s := &Service{
		logger: slog.Default().With("component", "certificate"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.newIndexer == nil {
		s.newIndexer = s.defaultIndexer
	}
	return s
}

func (s *Service) defaultIndexer(cfg config.Config) Indexer {
	opts := []indexer.Option{
		indexer.WithTimeout(cfg.Timeout()),
		indexer.WithLogger(s.logger.With("component", "indexer")),
	}
	if s.limiter != nil {
		opts = append(opts, indexer.WithLimiter(s.limiter))
	}
	if s.telemetry != nil {
		opts = append(opts, indexer.WithTracer(s.telemetry.Tracer()))
	}
	return indexer.New(cfg.BaseURL(), cfg.IndexerAPIKey, opts...)
}

func (s *Service) report(msg string) {
	s.logger.Debug(msg)
	if s.reporter != nil {
		s.reporter(msg)
	}
}

// Hash validates f and returns its digest.
func Hash(f File) (digest.Digest, error) {
	if err := ValidateFile(f); err != nil {
		return "", err
	}
	return digest.SumBytes(f.Data), nil
}

// checkConfig gates both operations before any network call and returns
// cfg with its network in canonical form.
func checkConfig(cfg config.Config) (config.Config, error) {
	if err := cfg.CheckAPIKey(); err != nil {
		return cfg, classify(StepConfigure, err)
	}
	if cfg.Network == "" {
		return cfg, classify(StepConfigure, config.ErrUnknownNetwork)
	}
	n, err := config.ParseNetwork(string(cfg.Network))
	if err != nil {
		return cfg, classify(StepConfigure, err)
	}
	cfg.Network = n
	return cfg, nil
}

// connect builds the call's indexer and, if configured, proves the key works.
func (s *Service) connect(ctx context.Context, cfg config.Config) (Indexer, error) {
	idx := s.newIndexer(cfg)
	if cfg.ProbeAPIKey {
		if err := idx.Probe(ctx); err != nil {
			return nil, classify(StepProbe, err)
		}
	}
	return idx, nil
}

// Issue anchors f's digest on chain from the wallet behind h.
func (s *Service) Issue(ctx context.Context, cfg config.Config, f File, h wallet.Handle) (_ *Issuance, err error) {
	ctx, done := s.telemetry.TrackOperation(ctx, "certificate.issue",
		attribute.String("network", string(cfg.Network)))
	defer func() { done(err) }()

	if err := ValidateFile(f); err != nil {
		return nil, err
	}
	if cfg, err = checkConfig(cfg); err != nil {
		return nil, err
	}
	if h == nil {
		return nil, newError(ErrWalletUnavailable, StepConfigure, msgNoWallet, wallet.ErrUnavailable)
	}
	idx, err := s.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.report("Calculating file hash...")
	d := digest.SumBytes(f.Data)

	s.report("Getting wallet address...")
	from, err := wallet.ResolveSpendableAddress(ctx, h)
	if err != nil {
		return nil, classify(StepAddress, err)
	}

	rec, err := record.New(d, f.Name, cfg.Network, s.now())
	if err != nil {
		return nil, classify(StepRecord, err)
	}

	entry := journal.Entry{
		ID:        journal.NewID(),
		Network:   string(cfg.Network),
		Address:   from.String(),
		FileName:  rec.FileName,
		Stage:     txbuilder.StageNone.String(),
		StartedAt: s.now().UTC(),
	}
	s.saveEntry(ctx, &entry)

	s.report("Creating blockchain transaction...")
	b := txbuilder.New(h, idx,
		txbuilder.WithSubmitVia(cfg.SubmitVia),
		txbuilder.WithLogger(s.logger.With("component", "txbuilder", "attempt", entry.ID)),
		txbuilder.WithObserver(func(st txbuilder.Stage) {
			entry.Stage = st.String()
			s.saveEntry(ctx, &entry)
			s.report("Transaction stage: " + st.String())
		}),
	)
	res, err := b.Run(ctx, from, rec)
	if err != nil {
		ce := classify(StepTransaction, err)
		ce.Step = b.Stage().String()
		entry.Stage = b.Stage().String()
		entry.Error = ce.Message
		s.saveEntry(context.WithoutCancel(ctx), &entry)
		s.logger.Error("issuance failed", "attempt", entry.ID, "last_stage", ce.Step, "error", err)
		return nil, ce
	}

	entry.TxHash = res.TxHash
	s.saveEntry(ctx, &entry)
	s.putReceipt(ctx, cfg, from, rec, res)
	s.logger.Info("certificate issued", "attempt", entry.ID, "tx_hash", res.TxHash, "network", cfg.Network)

	return &Issuance{
		TxHash:    res.TxHash,
		Digest:    d,
		Record:    rec,
		Address:   from.String(),
		Fee:       res.Fee,
		Size:      res.Size,
		AttemptID: entry.ID,
	}, nil
}

func (s *Service) saveEntry(ctx context.Context, e *journal.Entry) {
	if s.journal == nil {
		return
	}
	e.UpdatedAt = s.now().UTC()
	if err := s.journal.Save(ctx, *e); err != nil {
		s.logger.Warn("journal write failed", "attempt", e.ID, "error", err)
	}
}

// putReceipt never fails the issuance; the transaction is already out.
func (s *Service) putReceipt(ctx context.Context, cfg config.Config, from address.Address, rec record.Record, res *txbuilder.Result) {
	if s.archive == nil {
		return
	}
	err := s.archive.Put(ctx, archive.Receipt{
		TxHash:   res.TxHash,
		Network:  string(cfg.Network),
		Address:  from.String(),
		FileName: rec.FileName,
		IssuedAt: rec.IssuedAt,
		Issuer:   rec.Issuer,
		Version:  rec.Version,
		Fee:      res.Fee,
		Size:     res.Size,
	})
	if err != nil {
		s.logger.Warn("receipt archive failed", "tx_hash", res.TxHash, "error", err)
	}
}

// Verify looks for f's digest among the recent transactions of addr.
func (s *Service) Verify(ctx context.Context, cfg config.Config, f File, addr string) (_ *Result, err error) {
	ctx, done := s.telemetry.TrackOperation(ctx, "certificate.verify",
		attribute.String("network", string(cfg.Network)))
	defer func() { done(err) }()

	if err := ValidateFile(f); err != nil {
		return nil, err
	}
	if cfg, err = checkConfig(cfg); err != nil {
		return nil, err
	}
	target, err := resolveAddress(addr)
	if err != nil {
		return nil, err
	}
	idx, err := s.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s.report("Calculating file hash...")
	d := digest.SumBytes(f.Data)

	s.report("Searching blockchain for certificate...")
	txs, err := idx.AddressTransactions(ctx, target.String(), cfg.Depth())
	if err != nil {
		return nil, classify(StepListHistory, err)
	}
	if len(txs) == 0 {
		return &Result{Message: msgNoTransactions, CertificateHash: d.String()}, nil
	}

	res := &Result{Message: msgNotFound, CertificateHash: d.String()}
	for lk, err := range indexer.Scan(ctx, idx, txs) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, classify(StepScanMetadata, ctxErr)
			}
			s.logger.Warn("metadata lookup failed, skipping transaction",
				"tx_hash", lk.Summary.TxHash, "error", err)
			continue
		}
		res.Scanned++
		if !lk.Present {
			continue
		}
		raw, ok := lk.Metadata.Label(record.Label)
		if !ok {
			continue
		}
		rec, err := record.FromMetadata(raw)
		if err != nil {
			s.logger.Debug("ignoring foreign metadata", "tx_hash", lk.Summary.TxHash, "error", err)
			continue
		}
		if !d.Matches(rec.CertificateHash) {
			continue
		}
		s.match(res, cfg, rec, lk.Summary)
		break
	}
	s.logger.Info("verification finished", "valid", res.Valid, "scanned", res.Scanned, "listed", len(txs))
	return res, nil
}

func (s *Service) match(res *Result, cfg config.Config, rec record.Record, tx indexer.TransactionSummary) {
	res.Valid = true
	res.Message = msgVerified
	res.FileName = rec.FileName
	res.IssuedAt = rec.IssuedAt
	res.Issuer = rec.Issuer
	res.Version = rec.Version
	res.Network = rec.Network
	if res.Network == "" {
		res.Network = string(cfg.Network)
	}
	res.TransactionHash = tx.TxHash
	res.BlockTime = tx.BlockTime
	res.BlockHeight = tx.BlockHeight
	if err := rec.Compatible(); err != nil {
		s.logger.Warn("record version not understood", "tx_hash", tx.TxHash, "error", err)
		res.Warnings = append(res.Warnings, msgVersionUnknown)
	}
}

// resolveAddress accepts bech32 text or raw hex that converts to it.
func resolveAddress(s string) (address.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return address.Address{}, newError(ErrWalletUnavailable, StepAddress, msgNoAddress, wallet.ErrNoAddress)
	}
	a, err := address.Parse(s)
	if err != nil {
		return address.Address{}, classify(StepAddress, err)
	}
	if a.Kind() == address.Bech32 {
		return a, nil
	}
	converted, err := a.ToBech32()
	if err != nil {
		return address.Address{}, classify(StepAddress, err)
	}
	return converted, nil
}
