package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/chaitanya1-coder/docufy/pkg/certificate"
)

func runIssueCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("issue", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		keyPath    string
		profile    string
		jsonOutput bool
	)
	cmd.StringVar(&keyPath, "key", "", "Payment signing key file (default $DOCUFY_KEY_FILE)")
	cmd.StringVar(&profile, "config", "", "YAML profile")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: docufy issue [--key <skey>] [--json] <file.pdf>")
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
	l := a.limiter()
	svc, err := a.service(ctx, l, statusPrinter(stderr, jsonOutput), true)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	h, err := a.keyWallet(ctx, keyPath, a.indexerClient(l))
	if err != nil {
		printError(stderr, err)
		return 2
	}

	iss, err := svc.Issue(ctx, a.cfg, f, h)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(iss, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "%s✅ Certificate issued%s\n", ColorGreen, ColorReset)
	_, _ = fmt.Fprintf(stdout, "File:        %s\n", iss.Record.FileName)
	_, _ = fmt.Fprintf(stdout, "Hash:        %s\n", iss.Digest)
	_, _ = fmt.Fprintf(stdout, "Address:     %s\n", iss.Address)
	_, _ = fmt.Fprintf(stdout, "Transaction: %s\n", iss.TxHash)
	_, _ = fmt.Fprintf(stdout, "Fee:         %d lovelace\n", iss.Fee)
	return 0
}
