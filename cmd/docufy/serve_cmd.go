package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaitanya1-coder/docufy/pkg/api"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

func runServeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	profile := cmd.String("config", "", "YAML profile")
	addr := cmd.String("addr", "", "Listen address (default $DOCUFY_LISTEN_ADDR or :8080)")
	rps := cmd.Float64("rps", 5, "Per-client request rate")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	a, err := loadApp(*profile, stderr)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	defer a.Close()
	if *addr != "" {
		a.rt.ListenAddr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := a.limiter()
	svc, err := a.service(ctx, l, nil, true)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	tp, err := a.telemetry(ctx)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	opts := []api.ServerOption{
		api.WithAuthenticator(api.NewAuthenticator(a.rt.JWTSecret)),
		api.WithRateLimiter(api.NewIPRateLimiter(*rps, int(*rps*4)+1)),
		api.WithTelemetry(tp),
		api.WithLogger(a.logger.With("component", "api")),
	}
	var h wallet.Handle
	if a.rt.KeyFile != "" {
		if h, err = a.keyWallet(ctx, "", a.indexerClient(l)); err != nil {
			printError(stderr, err)
			return 2
		}
		opts = append(opts, api.WithWallet(h))
	}
	if a.rt.JWTSecret == "" {
		a.logger.Warn("DOCUFY_JWT_SECRET not set; /v1/issue and /v1/config will reject every request")
	}

	srv := &http.Server{
		Addr:              a.rt.ListenAddr,
		Handler:           api.NewServer(config.NewHolder(a.cfg), svc, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	_, _ = fmt.Fprintf(stdout, "%sDocufy API listening on %s (%s)%s\n", ColorBold+ColorBlue, a.rt.ListenAddr, a.cfg.Network, ColorReset)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			printError(stderr, err)
			return 2
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			printError(stderr, err)
			return 2
		}
	}
	return 0
}

// runTokenCmd mints a bearer token for the API using DOCUFY_JWT_SECRET.
func runTokenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("token", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	subject := cmd.String("subject", "operator", "Token subject")
	ttl := cmd.Duration("ttl", 24*time.Hour, "Token lifetime")
	profile := cmd.String("config", "", "YAML profile")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	a, err := loadApp(*profile, stderr)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	tok, err := api.NewAuthenticator(a.rt.JWTSecret).Token(*subject, *ttl)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: DOCUFY_JWT_SECRET is not set")
		return 2
	}
	_, _ = fmt.Fprintln(stdout, tok)
	return 0
}
