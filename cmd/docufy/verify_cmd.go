package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/chaitanya1-coder/docufy/pkg/certificate"
)

// runVerifyCmd implements `docufy verify`.
//
// Exit codes:
//
//	0 = certificate found on chain
//	1 = not found
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		addr       string
		profile    string
		jsonOutput bool
	)
	cmd.StringVar(&addr, "address", "", "Issuing wallet address, bech32 or hex (REQUIRED)")
	cmd.StringVar(&profile, "config", "", "YAML profile")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 || addr == "" {
		_, _ = fmt.Fprintln(stderr, "Usage: docufy verify --address <addr> [--json] <file.pdf>")
		return 2
	}

	a, err := loadApp(profile, stderr)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	defer a.Close()

	f, err := certificate.LoadFile(cmd.Arg(0))
	if err != nil {
		printError(stderr, err)
		return 2
	}

	ctx := context.Background()
	svc, err := a.service(ctx, a.limiter(), statusPrinter(stderr, jsonOutput), false)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	res, err := svc.Verify(ctx, a.cfg, f, addr)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(res, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if res.Valid {
		_, _ = fmt.Fprintf(stdout, "%s✅ %s%s\n", ColorGreen, res.Message, ColorReset)
		_, _ = fmt.Fprintf(stdout, "File:        %s\n", res.FileName)
		_, _ = fmt.Fprintf(stdout, "Hash:        %s\n", res.CertificateHash)
		_, _ = fmt.Fprintf(stdout, "Issued at:   %s\n", res.IssuedAt)
		_, _ = fmt.Fprintf(stdout, "Issuer:      %s\n", res.Issuer)
		_, _ = fmt.Fprintf(stdout, "Network:     %s\n", res.Network)
		_, _ = fmt.Fprintf(stdout, "Transaction: %s\n", res.TransactionHash)
		_, _ = fmt.Fprintf(stdout, "Block:       %d (%s)\n", res.BlockHeight, time.Unix(res.BlockTime, 0).UTC().Format(time.RFC3339))
		for _, w := range res.Warnings {
			_, _ = fmt.Fprintf(stdout, "Warning:     %s\n", w)
		}
	} else {
		_, _ = fmt.Fprintf(stdout, "%s❌ %s%s\n", ColorRed, res.Message, ColorReset)
		_, _ = fmt.Fprintf(stdout, "Hash:        %s\n", res.CertificateHash)
	}

	if !res.Valid {
		return 1
	}
	return 0
}
