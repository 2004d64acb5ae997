package txbuilder

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

const (
	// vkey witness = [bytes(32), bytes(64)]
	vkeySize = 32
	sigSize  = 64

	placeholderFee = math.MaxUint32
)

type txIn struct {
	_     struct{} `cbor:",toarray"`
	TxID  []byte
	Index uint32
}

type txOut struct {
	_       struct{} `cbor:",toarray"`
	Address []byte
	Coin    uint64
}

type txBody struct {
	Inputs      []txIn  `cbor:"0,keyasint"`
	Outputs     []txOut `cbor:"1,keyasint"`
	Fee         uint64  `cbor:"2,keyasint"`
	TTL         uint64  `cbor:"3,keyasint"`
	AuxDataHash []byte  `cbor:"7,keyasint,omitempty"`
}

type transaction struct {
	_       struct{} `cbor:",toarray"`
	Body    cbor.RawMessage
	Witness cbor.RawMessage
	Valid   bool
	AuxData cbor.RawMessage
}

type vkeyWitness struct {
	_    struct{} `cbor:",toarray"`
	VKey []byte
	Sig  []byte
}

func toInputs(utxos []wallet.UTXO) ([]txIn, error) {
	ins := make([]txIn, 0, len(utxos))
	for _, u := range utxos {
		id, err := hex.DecodeString(u.TxHash)
		if err != nil || len(id) != 32 {
			return nil, fmt.Errorf("input %s: bad tx hash", u)
		}
		ins = append(ins, txIn{TxID: id, Index: u.Index})
	}
	sort.Slice(ins, func(i, j int) bool {
		if c := bytes.Compare(ins[i].TxID, ins[j].TxID); c != 0 {
			return c < 0
		}
		return ins[i].Index < ins[j].Index
	})
	return ins, nil
}

func encodeAux(metadata map[uint64]any) ([]byte, [32]byte, error) {
	raw, err := encMode.Marshal(metadata)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("encode metadata: %w", err)
	}
	return raw, blake2b.Sum256(raw), nil
}

// placeholderWitnesses sizes a witness set for n signers.
func placeholderWitnesses(n int) ([]byte, error) {
	ws := make([]vkeyWitness, n)
	for i := range ws {
		ws[i] = vkeyWitness{VKey: make([]byte, vkeySize), Sig: make([]byte, sigSize)}
	}
	return encMode.Marshal(map[uint64][]vkeyWitness{0: ws})
}

func assemble(body, witness, aux []byte) ([]byte, error) {
	return encMode.Marshal(transaction{
		Body:    body,
		Witness: witness,
		Valid:   true,
		AuxData: aux,
	})
}

// TxHash is blake2b-256 of the body bytes.
func TxHash(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}
