package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Network selects the Cardano network the indexer and the certificate record refer to.
type Network string

const (
	Mainnet Network = "mainnet"
	Preview Network = "preview"
	Preprod Network = "preprod"
)

// DefaultNetwork is used when nothing else is configured.
const DefaultNetwork = Preprod

// PlaceholderSuffix marks the template API key shipped in example configuration.
const PlaceholderSuffix = "YOUR_API_KEY_HERE"

// History depth bounds. The indexer caps a single page at 100 entries.
const (
	DefaultHistoryDepth = 50
	MaxHistoryDepth     = 100
)

// DefaultRequestTimeout bounds every indexer request.
const DefaultRequestTimeout = 30 * time.Second

// Submission routes for signed transactions.
const (
	SubmitViaWallet  = "wallet"
	SubmitViaIndexer = "indexer"
)

var (
	ErrAPIKeyMissing     = errors.New("indexer API key not configured")
	ErrAPIKeyPlaceholder = errors.New("indexer API key is the template placeholder")
	ErrUnknownNetwork    = errors.New("unknown network")
)

// ParseNetwork accepts the lowercase network names, case-insensitively.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case Mainnet, Preview, Preprod:
		return n, nil
	case "":
		return DefaultNetwork, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
	}
}

// BaseURL returns the Blockfrost API root for the network.
func (n Network) BaseURL() string {
	switch n {
	case Mainnet:
		return "https://cardano-mainnet.blockfrost.io/api/v0"
	case Preview:
		return "https://cardano-preview.blockfrost.io/api/v0"
	default:
		return "https://cardano-preprod.blockfrost.io/api/v0"
	}
}

// NetworkID is the address header network nibble: 1 for mainnet, 0 for the testnets.
func (n Network) NetworkID() byte {
	if n == Mainnet {
		return 1
	}
	return 0
}

func (n Network) DisplayName() string {
	switch n {
	case Mainnet:
		return "Mainnet"
	case Preview:
		return "Preview Testnet"
	default:
		return "Pre-production Testnet"
	}
}

func (n Network) IsTestnet() bool { return n != Mainnet }

func (n Network) String() string { return string(n) }

// Config is the value passed into every indexer and certificate call.
type Config struct {
	IndexerAPIKey  string        `yaml:"indexer_api_key" json:"indexer_api_key"`
	Network        Network       `yaml:"network" json:"network"`
	IndexerURL     string        `yaml:"indexer_url,omitempty" json:"indexer_url,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
	HistoryDepth   int           `yaml:"history_depth,omitempty" json:"history_depth,omitempty"`
	ProbeAPIKey    bool          `yaml:"probe_api_key" json:"probe_api_key"`
	SubmitVia      string        `yaml:"submit_via,omitempty" json:"submit_via,omitempty"`
}

// Default returns the configuration a fresh install starts with: preprod and a placeholder key.
func Default() Config {
	return Config{
		IndexerAPIKey:  string(DefaultNetwork) + PlaceholderSuffix,
		Network:        DefaultNetwork,
		RequestTimeout: DefaultRequestTimeout,
		HistoryDepth:   DefaultHistoryDepth,
		ProbeAPIKey:    true,
		SubmitVia:      SubmitViaWallet,
	}
}

// BaseURL honours the explicit override before falling back to the network default.
func (c Config) BaseURL() string {
	if c.IndexerURL != "" {
		return strings.TrimRight(c.IndexerURL, "/")
	}
	return c.Network.BaseURL()
}

// CheckAPIKey reports whether the key is usable. Placeholder values count as absent.
func (c Config) CheckAPIKey() error {
	key := strings.TrimSpace(c.IndexerAPIKey)
	if key == "" {
		return ErrAPIKeyMissing
	}
	if IsPlaceholderKey(key) {
		return ErrAPIKeyPlaceholder
	}
	return nil
}

// IsPlaceholderKey matches the bare template and its network-prefixed variants.
func IsPlaceholderKey(key string) bool {
	if key == PlaceholderSuffix {
		return true
	}
	for _, n := range []Network{Mainnet, Preview, Preprod} {
		if key == string(n)+PlaceholderSuffix {
			return true
		}
	}
	return false
}

// MaskedAPIKey is safe to print.
func (c Config) MaskedAPIKey() string {
	key := c.IndexerAPIKey
	if c.CheckAPIKey() != nil {
		return "<unset>"
	}
	if len(key) <= 10 {
		return strings.Repeat("*", len(key))
	}
	return key[:7] + strings.Repeat("*", len(key)-10) + key[len(key)-3:]
}

// Depth returns the history depth clamped to the supported page window.
func (c Config) Depth() int {
	switch {
	case c.HistoryDepth < DefaultHistoryDepth:
		return DefaultHistoryDepth
	case c.HistoryDepth > MaxHistoryDepth:
		return MaxHistoryDepth
	default:
		return c.HistoryDepth
	}
}

// Timeout returns the request timeout, never zero.
func (c Config) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

// Validate checks the fields that have a closed set of values.
func (c Config) Validate() error {
	if _, err := ParseNetwork(string(c.Network)); err != nil {
		return err
	}
	switch c.SubmitVia {
	case "", SubmitViaWallet, SubmitViaIndexer:
	default:
		return fmt.Errorf("invalid submit route %q (expected %q or %q)", c.SubmitVia, SubmitViaWallet, SubmitViaIndexer)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}
	return nil
}

// Normalize returns c with the network in its canonical lowercase form, validated.
func (c Config) Normalize() (Config, error) {
	n, err := ParseNetwork(string(c.Network))
	if err != nil {
		return c, err
	}
	c.Network = n
	return c, c.Validate()
}

// Load loads configuration from environment variables on top of Default.
func Load() (Config, error) {
	cfg := Default()

	network, err := ParseNetwork(os.Getenv("DOCUFY_NETWORK"))
	if err != nil {
		return Config{}, err
	}
	cfg.Network = network
	cfg.IndexerAPIKey = string(network) + PlaceholderSuffix

	if key := firstEnv("DOCUFY_BLOCKFROST_API_KEY", "BLOCKFROST_API_KEY"); key != "" {
		cfg.IndexerAPIKey = key
	}
	cfg.IndexerURL = os.Getenv("DOCUFY_INDEXER_URL")

	if v := os.Getenv("DOCUFY_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("DOCUFY_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("DOCUFY_HISTORY_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("DOCUFY_HISTORY_DEPTH: %w", err)
		}
		cfg.HistoryDepth = n
	}
	if v := os.Getenv("DOCUFY_PROBE_API_KEY"); v != "" {
		cfg.ProbeAPIKey = v != "false" && v != "0"
	}
	if v := os.Getenv("DOCUFY_SUBMIT_VIA"); v != "" {
		cfg.SubmitVia = v
	}

	return cfg, cfg.Validate()
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
