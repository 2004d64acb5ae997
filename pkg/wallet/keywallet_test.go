package wallet_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/chaitanya1-coder/docufy/pkg/address"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/indexer"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

type fakeChain struct {
	utxos     []indexer.UTXO
	submitted []byte
	queried   string
}

func (f *fakeChain) AddressUTXOs(_ context.Context, addr string) ([]indexer.UTXO, error) {
	f.queried = addr
	return f.utxos, nil
}

func (f *fakeChain) SubmitTx(_ context.Context, tx []byte) (string, error) {
	f.submitted = tx
	return "cafe", nil
}

var testSeed = bytes.Repeat([]byte{7}, ed25519.SeedSize)

func newKeyWallet(t *testing.T, chain *fakeChain) *wallet.KeyWallet {
	t.Helper()
	w, err := wallet.NewKeyWallet(ed25519.NewKeyFromSeed(testSeed), config.Preprod, chain)
	require.NoError(t, err)
	return w
}

func TestKeyWallet_Address(t *testing.T) {
	key := ed25519.NewKeyFromSeed(testSeed)
	kh, err := wallet.KeyHash(key.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	want, err := address.Enterprise(0, kh)
	require.NoError(t, err)

	w := newKeyWallet(t, &fakeChain{})
	assert.Equal(t, want, w.Address())
	assert.True(t, strings.HasPrefix(w.Address().String(), "addr_test1v"))

	change, err := w.ChangeAddress(context.Background())
	require.NoError(t, err)
	resolved, err := wallet.ResolveSpendableAddress(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, want.String(), resolved.String())
	assert.Equal(t, "60"+hex.EncodeToString(kh), change)
}

func TestKeyWallet_MainnetHeader(t *testing.T) {
	w, err := wallet.NewKeyWallet(ed25519.NewKeyFromSeed(testSeed), config.Mainnet, &fakeChain{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(w.Address().String(), "addr1v"))
}

func TestKeyWallet_Utxos(t *testing.T) {
	chain := &fakeChain{utxos: []indexer.UTXO{
		{Address: testAddrText, TxHash: txID, OutputIndex: 3, Amount: []indexer.Amount{{Unit: "lovelace", Quantity: "7000000"}}},
		{Address: testAddrText, TxHash: txID, OutputIndex: 4, Amount: []indexer.Amount{
			{Unit: "lovelace", Quantity: "1500000"},
			{Unit: policyHex + "746f6b6e", Quantity: "9"},
		}},
	}}
	w := newKeyWallet(t, chain)
	raw, err := w.Utxos(context.Background())
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, w.Address().String(), chain.queried)

	first, err := wallet.DecodeUTXO(raw[0])
	require.NoError(t, err)
	assert.Equal(t, uint32(3), first.Index)
	assert.Equal(t, uint64(7_000_000), first.Coin)

	second, err := wallet.DecodeUTXO(raw[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(9), second.Assets[policyHex]["746f6b6e"])
}

func TestKeyWallet_SignTx(t *testing.T) {
	body, err := cbor.Marshal(map[uint64]any{2: uint64(170000), 3: uint64(9000)})
	require.NoError(t, err)
	tx, err := cbor.Marshal([]any{cbor.RawMessage(body), map[uint64]any{}, true, nil})
	require.NoError(t, err)

	w := newKeyWallet(t, &fakeChain{})
	wsHex, err := w.SignTx(context.Background(), hex.EncodeToString(tx), false)
	require.NoError(t, err)

	raw, err := hex.DecodeString(wsHex)
	require.NoError(t, err)
	var ws map[uint64][][][]byte
	require.NoError(t, cbor.Unmarshal(raw, &ws))
	require.Len(t, ws[0], 1)

	pub, sig := ws[0][0][0], ws[0][0][1]
	sum := blake2b.Sum256(body)
	assert.True(t, ed25519.Verify(pub, sum[:], sig))
}

func TestKeyWallet_SignTxRejectsGarbage(t *testing.T) {
	w := newKeyWallet(t, &fakeChain{})
	_, err := w.SignTx(context.Background(), "zz", false)
	assert.ErrorIs(t, err, wallet.ErrRejected)
	_, err = w.SignTx(context.Background(), "01", false)
	assert.ErrorIs(t, err, wallet.ErrRejected)
}

func TestKeyWallet_SubmitTx(t *testing.T) {
	chain := &fakeChain{}
	w := newKeyWallet(t, chain)
	id, err := w.SubmitTx(context.Background(), "84a0")
	require.NoError(t, err)
	assert.Equal(t, "cafe", id)
	assert.Equal(t, []byte{0x84, 0xa0}, chain.submitted)
}

func TestGenerateAndParseKey(t *testing.T) {
	var buf bytes.Buffer
	key, err := wallet.GenerateKey(&buf, bytes.NewReader(testSeed))
	require.NoError(t, err)

	var env map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, wallet.KeyEnvelopeType, env["type"])
	assert.True(t, strings.HasPrefix(env["cborHex"], "5820"))

	parsed, err := wallet.ParseKey(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	bare, err := wallet.ParseKey([]byte(hex.EncodeToString(testSeed) + "\n"))
	require.NoError(t, err)
	assert.Equal(t, key, bare)
}

func TestParseKey_Rejects(t *testing.T) {
	for name, in := range map[string]string{
		"short seed":      "0102",
		"not hex":         "not a key",
		"wrong envelope":  `{"type":"StakeSigningKeyShelley_ed25519","cborHex":"5820` + strings.Repeat("00", 32) + `"}`,
		"broken envelope": `{"type":`,
		"short cbor":      `{"type":"PaymentSigningKeyShelley_ed25519","cborHex":"4101"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := wallet.ParseKey([]byte(in))
			assert.ErrorIs(t, err, wallet.ErrKeyFormat)
		})
	}
}

func TestKeyProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payment.skey")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = wallet.GenerateKey(f, nil)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := wallet.NewRegistry()
	require.NoError(t, r.Register(wallet.KeyProvider("keyfile", path, config.Preview, &fakeChain{})))
	h, err := r.Enable(context.Background(), "keyfile")
	require.NoError(t, err)
	_, ok := h.(*wallet.KeyWallet)
	assert.True(t, ok)

	require.NoError(t, r.Register(wallet.KeyProvider("missing", filepath.Join(dir, "nope"), config.Preview, &fakeChain{})))
	_, err = r.Enable(context.Background(), "missing")
	assert.ErrorIs(t, err, wallet.ErrUnavailable)
}
