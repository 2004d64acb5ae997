package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/chaitanya1-coder/docufy/pkg/address"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

// runKeygenCmd writes a new payment signing key as a text envelope and
// prints its enterprise address.
func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	out := cmd.String("out", "payment.skey", "Where to write the signing key")
	network := cmd.String("network", "", "mainnet, preview or preprod (default $DOCUFY_NETWORK)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if *network == "" {
		*network = os.Getenv("DOCUFY_NETWORK")
	}
	n, err := config.ParseNetwork(*network)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	//nolint:gosec // G304: path is operator-provided
	fh, err := os.OpenFile(*out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			_, _ = fmt.Fprintf(stderr, "Error: %s already exists; refusing to overwrite a key\n", *out)
			return 2
		}
		printError(stderr, err)
		return 2
	}
	key, err := wallet.GenerateKey(fh, rand.Reader)
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		printError(stderr, err)
		return 2
	}

	kh, err := wallet.KeyHash(key.Public().(ed25519.PublicKey))
	if err != nil {
		printError(stderr, err)
		return 2
	}
	addr, err := address.Enterprise(n.NetworkID(), kh)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "Signing key: %s\n", *out)
	_, _ = fmt.Fprintf(stdout, "Address:     %s\n", addr)
	if n.IsTestnet() {
		_, _ = fmt.Fprintf(stdout, "Fund it from the %s faucet before issuing.\n", n.DisplayName())
	}
	return 0
}

// runWalletCmd reports what the key wallet sees on chain.
func runWalletCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("wallet", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	keyPath := cmd.String("key", "", "Payment signing key file (default $DOCUFY_KEY_FILE)")
	profile := cmd.String("config", "", "YAML profile")
	jsonOutput := cmd.Bool("json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	a, err := loadApp(*profile, stderr)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	defer a.Close()
	if err := a.cfg.CheckAPIKey(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	h, err := a.keyWallet(ctx, *keyPath, a.indexerClient(a.limiter()))
	if err != nil {
		printError(stderr, err)
		return 2
	}
	sum, err := wallet.Describe(ctx, h)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(sum, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "Address:  %s\n", sum.ChangeAddress)
	_, _ = fmt.Fprintf(stdout, "Network:  %s\n", a.cfg.Network.DisplayName())
	_, _ = fmt.Fprintf(stdout, "UTXOs:    %d (%d carry native assets)\n", sum.UTXOs, sum.AssetUTXOs)
	_, _ = fmt.Fprintf(stdout, "Balance:  %s ADA\n", sum.ADA())
	return 0
}
