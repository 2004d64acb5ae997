package indexer

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TransactionSummary is one row of an address history listing.
type TransactionSummary struct {
	TxHash      string `json:"tx_hash"`
	TxIndex     int    `json:"tx_index"`
	BlockHeight int64  `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
}

// Metadata maps a metadata label (decimal string) to its JSON value.
type Metadata map[string]json.RawMessage

// Label returns the value stored under label, if any.
func (m Metadata) Label(label uint64) (json.RawMessage, bool) {
	v, ok := m[strconv.FormatUint(label, 10)]
	if !ok || len(v) == 0 || string(v) == "null" {
		return nil, false
	}
	return v, true
}

type metadataEntry struct {
	Label        string          `json:"label"`
	JSONMetadata json.RawMessage `json:"json_metadata"`
}

// Amount is one asset quantity; unit "lovelace" is ADA.
type Amount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// UTXO is an unspent output as reported by the indexer.
type UTXO struct {
	Address             string   `json:"address"`
	TxHash              string   `json:"tx_hash"`
	OutputIndex         uint32   `json:"output_index"`
	Amount              []Amount `json:"amount"`
	DataHash            *string  `json:"data_hash"`
	InlineDatum         *string  `json:"inline_datum"`
	ReferenceScriptHash *string  `json:"reference_script_hash"`
}

// Lovelace returns the ADA quantity and whether any other asset is present.
func (u UTXO) Lovelace() (coin uint64, hasAssets bool, err error) {
	for _, a := range u.Amount {
		if a.Unit != "lovelace" {
			hasAssets = true
			continue
		}
		coin, err = strconv.ParseUint(a.Quantity, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("utxo %s#%d: lovelace quantity: %w", u.TxHash, u.OutputIndex, err)
		}
	}
	return coin, hasAssets, nil
}

// Block is the subset of block fields the builder needs.
type Block struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
	Slot   uint64 `json:"slot"`
	Time   int64  `json:"time"`
}

// ProtocolParameters carries the fee and size parameters of the current epoch.
type ProtocolParameters struct {
	Epoch            int64  `json:"epoch"`
	MinFeeA          uint64 `json:"min_fee_a"`
	MinFeeB          uint64 `json:"min_fee_b"`
	MaxTxSize        uint64 `json:"max_tx_size"`
	CoinsPerUTxOSize string `json:"coins_per_utxo_size"`
}

// CoinsPerUTxOByte parses the string-encoded Babbage min-UTxO coefficient.
func (p ProtocolParameters) CoinsPerUTxOByte() (uint64, error) {
	if p.CoinsPerUTxOSize == "" {
		return 0, fmt.Errorf("coins_per_utxo_size missing")
	}
	return strconv.ParseUint(p.CoinsPerUTxOSize, 10, 64)
}

// NetworkInfo is the /network summary, used by the doctor command.
type NetworkInfo struct {
	Supply struct {
		Max         string `json:"max"`
		Total       string `json:"total"`
		Circulating string `json:"circulating"`
		Locked      string `json:"locked"`
	} `json:"supply"`
	Stake struct {
		Live   string `json:"live"`
		Active string `json:"active"`
	} `json:"stake"`
}
