package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/chaitanya1-coder/docufy/pkg/archive"
	"github.com/chaitanya1-coder/docufy/pkg/certificate"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/indexer"
	"github.com/chaitanya1-coder/docufy/pkg/journal"
	"github.com/chaitanya1-coder/docufy/pkg/observability"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

// app is the per-invocation wiring shared by the commands.
type app struct {
	cfg     config.Config
	rt      config.Runtime
	logger  *slog.Logger
	tp      *observability.Provider
	closers []func() error
}

func loadApp(profile string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	rt := config.LoadRuntime()
	if profile != "" {
		if cfg, rt, err = config.LoadFile(profile, cfg, rt); err != nil {
			return nil, err
		}
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: rt.SlogLevel()}))
	slog.SetDefault(logger)
	return &app{cfg: cfg, rt: rt, logger: logger}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}
}

func dataDir() string {
	if d := os.Getenv("DOCUFY_DATA_DIR"); d != "" {
		return d
	}
	return "data"
}

// limiter shares the indexer quota through Redis when configured.
func (a *app) limiter() indexer.Limiter {
	if a.rt.RedisAddr == "" {
		return indexer.NewLocalLimiter(indexer.DefaultRate, indexer.DefaultBurst)
	}
	client := redis.NewClient(&redis.Options{Addr: a.rt.RedisAddr, Password: a.rt.RedisPassword})
	a.closers = append(a.closers, client.Close)
	return indexer.NewRedisLimiter(client, indexer.BucketName(string(a.cfg.Network), a.cfg.IndexerAPIKey), indexer.DefaultRate, indexer.DefaultBurst)
}

func (a *app) indexerClient(l indexer.Limiter) *indexer.Client {
	return indexer.New(a.cfg.BaseURL(), a.cfg.IndexerAPIKey,
		indexer.WithTimeout(a.cfg.Timeout()),
		indexer.WithLimiter(l),
		indexer.WithLogger(a.logger.With("component", "indexer")),
	)
}

func (a *app) openJournal(ctx context.Context) (journal.Store, error) {
	dsn := a.rt.JournalDSN
	if dsn == "" {
		dir := dataDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		dsn = "sqlite:" + filepath.Join(dir, "journal.db")
	}
	j, err := journal.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, j.Close)
	return j, nil
}

func (a *app) telemetry(ctx context.Context) (*observability.Provider, error) {
	if a.tp != nil {
		return a.tp, nil
	}
	oc := observability.DefaultConfig()
	oc.Enabled = a.rt.TelemetryEnabled
	if a.rt.OTLPEndpoint != "" {
		oc.OTLPEndpoint = a.rt.OTLPEndpoint
	}
	p, err := observability.New(ctx, oc)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return p.Shutdown(context.Background()) })
	a.tp = p
	return p, nil
}

// service wires the certificate service with telemetry. Only issuing
// services get the journal and receipt archive, so verify leaves no files behind.
func (a *app) service(ctx context.Context, l indexer.Limiter, reporter certificate.Reporter, issuing bool) (*certificate.Service, error) {
	opts := []certificate.Option{
		certificate.WithLogger(a.logger),
		certificate.WithLimiter(l),
		certificate.WithReporter(reporter),
	}

	if issuing {
		j, err := a.openJournal(ctx)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		opts = append(opts, certificate.WithJournal(j))

		arch, err := archive.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		if arch != nil {
			opts = append(opts, certificate.WithArchive(arch))
		}
	}

	tp, err := a.telemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	opts = append(opts, certificate.WithTelemetry(tp))

	return certificate.New(opts...), nil
}

// keyWallet opens the signing key at path (or DOCUFY_KEY_FILE) through the registry.
func (a *app) keyWallet(ctx context.Context, path string, chain wallet.Chain) (wallet.Handle, error) {
	if path == "" {
		path = a.rt.KeyFile
	}
	if path == "" {
		return nil, errors.New("no signing key: pass --key or set DOCUFY_KEY_FILE")
	}
	reg := wallet.NewRegistry()
	if err := reg.Register(wallet.KeyProvider("keyfile", path, a.cfg.Network, chain)); err != nil {
		return nil, err
	}
	return reg.Enable(ctx, "keyfile")
}

// printError shows the user-facing message; the cause goes to the log.
func printError(stderr io.Writer, err error) {
	var ce *certificate.Error
	if errors.As(err, &ce) {
		_, _ = fmt.Fprintf(stderr, "%sError:%s %s\n", ColorRed, ColorReset, ce.Message)
		if ce.Step != "" {
			_, _ = fmt.Fprintf(stderr, "Last step reached: %s\n", ce.Step)
		}
		if ce.Err != nil {
			slog.Debug("cause", "error", ce.Err)
		}
		return
	}
	_, _ = fmt.Fprintf(stderr, "%sError:%s %v\n", ColorRed, ColorReset, err)
}

func statusPrinter(w io.Writer, quiet bool) certificate.Reporter {
	if quiet {
		return nil
	}
	return func(msg string) { _, _ = fmt.Fprintf(w, "%s%s%s\n", ColorGray, msg, ColorReset) }
}
