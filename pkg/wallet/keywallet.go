package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/chaitanya1-coder/docufy/pkg/address"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/indexer"
)

// KeyEnvelopeType is the cardano-cli text envelope type for a payment signing key.
const KeyEnvelopeType = "PaymentSigningKeyShelley_ed25519"

var ErrKeyFormat = errors.New("wallet: unsupported signing key format")

// Chain is the indexer surface a key wallet needs.
type Chain interface {
	AddressUTXOs(ctx context.Context, addr string) ([]indexer.UTXO, error)
	SubmitTx(ctx context.Context, tx []byte) (string, error)
}

// KeyWallet is a Handle backed by a single ed25519 payment key and an
// enterprise address. It serves headless issuance from the CLI and API.
type KeyWallet struct {
	key   ed25519.PrivateKey
	addr  address.Address
	raw   []byte
	chain Chain
}

var _ Handle = (*KeyWallet)(nil)

// NewKeyWallet derives the enterprise address of key on network.
func NewKeyWallet(key ed25519.PrivateKey, network config.Network, chain Chain) (*KeyWallet, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrKeyFormat
	}
	if chain == nil {
		return nil, errors.New("wallet: key wallet needs a chain backend")
	}
	kh, err := KeyHash(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	addr, err := address.Enterprise(network.NetworkID(), kh)
	if err != nil {
		return nil, err
	}
	raw, err := addr.Bytes()
	if err != nil {
		return nil, err
	}
	return &KeyWallet{key: key, addr: addr, raw: raw, chain: chain}, nil
}

// KeyHash is blake2b-224 of the verification key.
func KeyHash(pub ed25519.PublicKey) ([]byte, error) {
	h, err := blake2b.New(address.KeyHashSize, nil)
	if err != nil {
		return nil, err
	}
	h.Write(pub)
	return h.Sum(nil), nil
}

// Address is the wallet's bech32 address.
func (w *KeyWallet) Address() address.Address { return w.addr }

func (w *KeyWallet) Utxos(ctx context.Context) ([]string, error) {
	rows, err := w.chain.AddressUTXOs(ctx, w.addr.String())
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		u, err := FromIndexer(r)
		if err != nil {
			return nil, err
		}
		enc, err := EncodeUTXO(u)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func (w *KeyWallet) ChangeAddress(context.Context) (string, error) {
	return hex.EncodeToString(w.raw), nil
}

func (w *KeyWallet) UsedAddresses(context.Context) ([]string, error) {
	return []string{hex.EncodeToString(w.raw)}, nil
}

func (w *KeyWallet) UnusedAddresses(context.Context) ([]string, error) { return []string{}, nil }

func (w *KeyWallet) RewardAddresses(context.Context) ([]string, error) { return []string{}, nil }

type vkeyWitness struct {
	_    struct{} `cbor:",toarray"`
	VKey []byte
	Sig  []byte
}

// SignTx signs blake2b-256 of the transaction body and returns the witness
// set {0: [[vkey, signature]]}.
func (w *KeyWallet) SignTx(_ context.Context, txHex string, _ bool) (string, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return "", fmt.Errorf("%w: tx hex: %v", ErrRejected, err)
	}
	var parts []cbor.RawMessage
	if err := cbor.Unmarshal(raw, &parts); err != nil || len(parts) < 2 {
		return "", fmt.Errorf("%w: not a transaction", ErrRejected)
	}
	sum := blake2b.Sum256(parts[0])
	ws := map[uint64][]vkeyWitness{
		0: {{VKey: w.key.Public().(ed25519.PublicKey), Sig: ed25519.Sign(w.key, sum[:])}},
	}
	b, err := encMode.Marshal(ws)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (w *KeyWallet) SubmitTx(ctx context.Context, txHex string) (string, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return "", fmt.Errorf("%w: tx hex: %v", ErrRejected, err)
	}
	return w.chain.SubmitTx(ctx, raw)
}

type textEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// ParseKey accepts a cardano-cli text envelope or a bare 32-byte hex seed.
func ParseKey(data []byte) (ed25519.PrivateKey, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var env textEnvelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
		}
		if env.Type != KeyEnvelopeType {
			return nil, fmt.Errorf("%w: envelope type %q", ErrKeyFormat, env.Type)
		}
		raw, err := hex.DecodeString(env.CborHex)
		if err != nil {
			return nil, fmt.Errorf("%w: cborHex: %v", ErrKeyFormat, err)
		}
		var seed []byte
		if err := cbor.Unmarshal(raw, &seed); err != nil {
			return nil, fmt.Errorf("%w: cborHex: %v", ErrKeyFormat, err)
		}
		return seedKey(seed)
	}
	seed, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	return seedKey(seed)
}

func seedKey(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes", ErrKeyFormat, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// LoadKeyFile reads a signing key from path.
func LoadKeyFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseKey(data)
}

// GenerateKey creates a key from rand and writes its text envelope to w.
func GenerateKey(w io.Writer, rand io.Reader) (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	seed, err := encMode.Marshal(key.Seed())
	if err != nil {
		return nil, err
	}
	env := textEnvelope{
		Type:        KeyEnvelopeType,
		Description: "Payment Signing Key",
		CborHex:     hex.EncodeToString(seed),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return key, nil
}

// KeyProvider exposes a key file as a registry entry.
func KeyProvider(name, path string, network config.Network, chain Chain) Provider {
	return ProviderFunc{ID: name, Open: func(context.Context) (Handle, error) {
		key, err := LoadKeyFile(path)
		if err != nil {
			return nil, err
		}
		return NewKeyWallet(key, network, chain)
	}}
}
