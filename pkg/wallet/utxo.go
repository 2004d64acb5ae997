package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"github.com/chaitanya1-coder/docufy/pkg/address"
	"github.com/chaitanya1-coder/docufy/pkg/indexer"
)

// ErrMalformedUTXO is returned for CBOR that is not a TransactionUnspentOutput.
var ErrMalformedUTXO = errors.New("wallet: malformed utxo")

const (
	majorUint  = 0
	majorArray = 4
	majorMap   = 5

	policyIDHexLen = 56
)

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// MultiAsset maps policy id hex to asset name hex to quantity.
type MultiAsset map[string]map[string]uint64

// UTXO is a decoded unspent output.
type UTXO struct {
	TxHash  string
	Index   uint32
	Address []byte
	Coin    uint64
	Assets  MultiAsset
}

// AdaOnly reports whether the output carries nothing but lovelace.
func (u UTXO) AdaOnly() bool { return len(u.Assets) == 0 }

func (u UTXO) String() string { return u.TxHash + "#" + strconv.FormatUint(uint64(u.Index), 10) }

type txIn struct {
	_     struct{} `cbor:",toarray"`
	TxID  []byte
	Index uint32
}

type unspent struct {
	_      struct{} `cbor:",toarray"`
	Input  txIn
	Output cbor.RawMessage
}

type outputArray struct {
	_       struct{} `cbor:",toarray"`
	Address []byte
	Value   cbor.RawMessage
}

type multiValue struct {
	_      struct{} `cbor:",toarray"`
	Coin   uint64
	Assets map[cbor.ByteString]map[cbor.ByteString]uint64
}

// DecodeUTXO parses a hex CIP-30 TransactionUnspentOutput. Both the legacy
// array output and the post-Alonzo map output are accepted.
func DecodeUTXO(s string) (UTXO, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return UTXO{}, fmt.Errorf("%w: %v", ErrMalformedUTXO, err)
	}
	var u unspent
	if err := cbor.Unmarshal(raw, &u); err != nil {
		return UTXO{}, fmt.Errorf("%w: %v", ErrMalformedUTXO, err)
	}
	if len(u.Input.TxID) != 32 {
		return UTXO{}, fmt.Errorf("%w: tx id is %d bytes", ErrMalformedUTXO, len(u.Input.TxID))
	}
	if len(u.Output) == 0 {
		return UTXO{}, fmt.Errorf("%w: missing output", ErrMalformedUTXO)
	}

	var addr []byte
	var value cbor.RawMessage
	switch u.Output[0] >> 5 {
	case majorArray:
		var out outputArray
		if err := cbor.Unmarshal(u.Output, &out); err != nil {
			return UTXO{}, fmt.Errorf("%w: output: %v", ErrMalformedUTXO, err)
		}
		addr, value = out.Address, out.Value
	case majorMap:
		var out map[uint64]cbor.RawMessage
		if err := cbor.Unmarshal(u.Output, &out); err != nil {
			return UTXO{}, fmt.Errorf("%w: output: %v", ErrMalformedUTXO, err)
		}
		if err := cbor.Unmarshal(out[0], &addr); err != nil {
			return UTXO{}, fmt.Errorf("%w: output address: %v", ErrMalformedUTXO, err)
		}
		value = out[1]
	default:
		return UTXO{}, fmt.Errorf("%w: output major type %d", ErrMalformedUTXO, u.Output[0]>>5)
	}
	if len(addr) == 0 || len(value) == 0 {
		return UTXO{}, fmt.Errorf("%w: incomplete output", ErrMalformedUTXO)
	}

	res := UTXO{
		TxHash:  hex.EncodeToString(u.Input.TxID),
		Index:   u.Input.Index,
		Address: addr,
	}
	switch value[0] >> 5 {
	case majorUint:
		if err := cbor.Unmarshal(value, &res.Coin); err != nil {
			return UTXO{}, fmt.Errorf("%w: coin: %v", ErrMalformedUTXO, err)
		}
	case majorArray:
		var mv multiValue
		if err := cbor.Unmarshal(value, &mv); err != nil {
			return UTXO{}, fmt.Errorf("%w: value: %v", ErrMalformedUTXO, err)
		}
		res.Coin = mv.Coin
		if len(mv.Assets) > 0 {
			res.Assets = make(MultiAsset, len(mv.Assets))
			for policy, names := range mv.Assets {
				p := hex.EncodeToString([]byte(policy))
				res.Assets[p] = make(map[string]uint64, len(names))
				for name, qty := range names {
					res.Assets[p][hex.EncodeToString([]byte(name))] = qty
				}
			}
		}
	default:
		return UTXO{}, fmt.Errorf("%w: value major type %d", ErrMalformedUTXO, value[0]>>5)
	}
	return res, nil
}

// EncodeUTXO is the inverse of DecodeUTXO, always producing a legacy array output.
func EncodeUTXO(u UTXO) (string, error) {
	txID, err := hex.DecodeString(u.TxHash)
	if err != nil || len(txID) != 32 {
		return "", fmt.Errorf("%w: tx hash %q", ErrMalformedUTXO, u.TxHash)
	}
	var value any = u.Coin
	if len(u.Assets) > 0 {
		assets := make(map[cbor.ByteString]map[cbor.ByteString]uint64, len(u.Assets))
		for p, names := range u.Assets {
			pb, err := hex.DecodeString(p)
			if err != nil {
				return "", fmt.Errorf("%w: policy %q", ErrMalformedUTXO, p)
			}
			inner := make(map[cbor.ByteString]uint64, len(names))
			for n, qty := range names {
				nb, err := hex.DecodeString(n)
				if err != nil {
					return "", fmt.Errorf("%w: asset name %q", ErrMalformedUTXO, n)
				}
				inner[cbor.ByteString(nb)] = qty
			}
			assets[cbor.ByteString(pb)] = inner
		}
		value = multiValue{Coin: u.Coin, Assets: assets}
	}
	rawValue, err := encMode.Marshal(value)
	if err != nil {
		return "", err
	}
	rawOut, err := encMode.Marshal(outputArray{Address: u.Address, Value: rawValue})
	if err != nil {
		return "", err
	}
	b, err := encMode.Marshal(unspent{Input: txIn{TxID: txID, Index: u.Index}, Output: rawOut})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// FromIndexer converts an indexer UTXO row.
func FromIndexer(u indexer.UTXO) (UTXO, error) {
	a, err := address.Parse(u.Address)
	if err != nil {
		return UTXO{}, err
	}
	addr, err := a.Bytes()
	if err != nil {
		return UTXO{}, err
	}
	res := UTXO{TxHash: u.TxHash, Index: u.OutputIndex, Address: addr}
	for _, amt := range u.Amount {
		qty, err := strconv.ParseUint(amt.Quantity, 10, 64)
		if err != nil {
			return UTXO{}, fmt.Errorf("%w: %s quantity %q", ErrMalformedUTXO, amt.Unit, amt.Quantity)
		}
		if amt.Unit == "lovelace" {
			res.Coin = qty
			continue
		}
		if len(amt.Unit) < policyIDHexLen {
			return UTXO{}, fmt.Errorf("%w: asset unit %q", ErrMalformedUTXO, amt.Unit)
		}
		if res.Assets == nil {
			res.Assets = make(MultiAsset)
		}
		policy, name := amt.Unit[:policyIDHexLen], amt.Unit[policyIDHexLen:]
		if res.Assets[policy] == nil {
			res.Assets[policy] = make(map[string]uint64)
		}
		res.Assets[policy][name] = qty
	}
	return res, nil
}
