// Package txbuilder assembles, signs and submits the self-payment that
// anchors a certificate record.
//
// A Builder walks Draft, MetadataAttached, Signed and Submitted in that
// order. A failed stage leaves the builder unusable; callers start over
// from a fresh Builder.
package txbuilder

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/chaitanya1-coder/docufy/pkg/address"
	"github.com/chaitanya1-coder/docufy/pkg/config"
	"github.com/chaitanya1-coder/docufy/pkg/indexer"
	"github.com/chaitanya1-coder/docufy/pkg/record"
	"github.com/chaitanya1-coder/docufy/pkg/wallet"
)

const (
	// PaymentLovelace is the self-payment carried by every certificate transaction.
	PaymentLovelace uint64 = 2_000_000
	// TTLSlots bounds how long a signed transaction stays valid.
	TTLSlots uint64 = 7200

	// Fixed per-output overhead in the Babbage min-UTxO rule.
	utxoEntryOverhead = 160
)

// Chain is the indexer surface the builder reads protocol state from.
type Chain interface {
	LatestBlock(ctx context.Context) (*indexer.Block, error)
	ProtocolParameters(ctx context.Context) (*indexer.ProtocolParameters, error)
	SubmitTx(ctx context.Context, tx []byte) (string, error)
}

// Observer is told about every completed stage.
type Observer func(Stage)

// Option configures a Builder.
type Option func(*Builder)

// WithSubmitVia picks the submission route, config.SubmitViaWallet by default.
func WithSubmitVia(route string) Option {
	return func(b *Builder) {
		if route != "" {
			b.submitVia = route
		}
	}
}

func WithObserver(o Observer) Option {
	return func(b *Builder) { b.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Result describes a submitted transaction.
type Result struct {
	TxHash string `json:"tx_hash"`
	Fee    uint64 `json:"fee"`
	Inputs int    `json:"inputs"`
	Change uint64 `json:"change"`
	Size   int    `json:"size"`
	TTL    uint64 `json:"ttl"`
}

// Builder holds no key material; signing is always delegated to the wallet.
type Builder struct {
	wallet    wallet.Handle
	chain     Chain
	submitVia string
	observer  Observer
	logger    *slog.Logger

	stage  Stage
	failed bool

	from     []byte
	utxos    []wallet.UTXO
	params   indexer.ProtocolParameters
	perByte  uint64
	ttl      uint64
	signers  int
	selected []wallet.UTXO
	fee      uint64
	change   uint64
	body     []byte
	aux      []byte
	tx       []byte
	hash     string
}

// New returns a Builder in StageNone.
func New(w wallet.Handle, chain Chain, opts ...Option) *Builder {
	b := &Builder{
		wallet:    w,
		chain:     chain,
		submitVia: config.SubmitViaWallet,
		logger:    slog.Default().With("component", "txbuilder"),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Stage is the last completed stage.
func (b *Builder) Stage() Stage { return b.stage }

// Hash is the transaction id once metadata is attached.
func (b *Builder) Hash() string { return b.hash }

// CBOR returns the assembled transaction bytes, signed once StageSigned is reached.
func (b *Builder) CBOR() []byte { return b.tx }

func (b *Builder) advance(expect, next Stage, fn func() error) error {
	if b.failed || b.stage != expect {
		return &StageError{Stage: next, Err: fmt.Errorf("%w: at %s", ErrOutOfOrder, b.stage)}
	}
	if err := fn(); err != nil {
		b.failed = true
		return &StageError{Stage: next, Err: err}
	}
	b.stage = next
	b.logger.Debug("stage complete", "stage", next.String())
	if b.observer != nil {
		b.observer(next)
	}
	return nil
}

// Draft gathers spendable ADA-only outputs and the protocol state for from.
func (b *Builder) Draft(ctx context.Context, from address.Address) error {
	return b.advance(StageNone, StageDraft, func() error {
		if b.wallet == nil {
			return wallet.ErrUnavailable
		}
		raw, err := from.Bytes()
		if err != nil {
			return err
		}
		b.from = raw

		encoded, err := b.wallet.Utxos(ctx)
		if err != nil {
			return fmt.Errorf("list utxos: %w", err)
		}
		for _, e := range encoded {
			u, err := wallet.DecodeUTXO(e)
			if err != nil {
				return err
			}
			if u.AdaOnly() && u.Coin > 0 {
				b.utxos = append(b.utxos, u)
			}
		}
		if len(b.utxos) == 0 {
			return fmt.Errorf("%w: %w", ErrInsufficientFunds, ErrNoUTXOs)
		}

		params, err := b.chain.ProtocolParameters(ctx)
		if err != nil {
			return fmt.Errorf("protocol parameters: %w", err)
		}
		if b.perByte, err = params.CoinsPerUTxOByte(); err != nil {
			return fmt.Errorf("protocol parameters: %w", err)
		}
		b.params = *params

		tip, err := b.chain.LatestBlock(ctx)
		if err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
		b.ttl = tip.Slot + TTLSlots
		return nil
	})
}

// AttachMetadata embeds rec under label 674, selects inputs and fixes the fee.
func (b *Builder) AttachMetadata(rec record.Record) error {
	return b.advance(StageDraft, StageMetadataAttached, func() error {
		aux, auxHash, err := encodeAux(rec.Metadata())
		if err != nil {
			return err
		}
		b.aux = aux
		return b.balance(auxHash[:])
	})
}

// balance picks the fewest largest inputs that cover payment plus fee.
// Leftover too small for a change output goes to the fee.
func (b *Builder) balance(auxHash []byte) error {
	sorted := append([]wallet.UTXO(nil), b.utxos...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Coin > sorted[j].Coin })

	payment := max(PaymentLovelace, b.minUTxO(b.from))
	minChange := b.minUTxO(b.from)

	var total uint64
	for i := range sorted {
		total += sorted[i].Coin
		ins := sorted[:i+1]
		signers := distinctSigners(ins)

		feeWith, err := b.estimateFee(ins, signers, payment, true, auxHash)
		if err != nil {
			return err
		}
		if total >= payment+feeWith+minChange {
			return b.finish(ins, signers, payment, feeWith, total-payment-feeWith, auxHash)
		}
		feeWithout, err := b.estimateFee(ins, signers, payment, false, auxHash)
		if err != nil {
			return err
		}
		if total >= payment+feeWithout {
			return b.finish(ins, signers, payment, total-payment, 0, auxHash)
		}
	}
	return fmt.Errorf("%w: need at least %d lovelace plus fees, have %d", ErrInsufficientFunds, payment, total)
}

func (b *Builder) finish(ins []wallet.UTXO, signers int, payment, fee, change uint64, auxHash []byte) error {
	body, err := b.encodeBody(ins, payment, fee, change, change > 0, auxHash)
	if err != nil {
		return err
	}
	ws, err := placeholderWitnesses(signers)
	if err != nil {
		return err
	}
	unsigned, err := assemble(body, []byte{0xa0}, b.aux)
	if err != nil {
		return err
	}
	probe, err := assemble(body, ws, b.aux)
	if err != nil {
		return err
	}
	if b.params.MaxTxSize > 0 && uint64(len(probe)) > b.params.MaxTxSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(probe), b.params.MaxTxSize)
	}
	b.selected, b.signers = ins, signers
	b.fee, b.change = fee, change
	b.body, b.tx = body, unsigned
	b.hash = TxHash(body)
	return nil
}

func (b *Builder) encodeBody(ins []wallet.UTXO, payment, fee, change uint64, withChange bool, auxHash []byte) ([]byte, error) {
	inputs, err := toInputs(ins)
	if err != nil {
		return nil, err
	}
	outs := []txOut{{Address: b.from, Coin: payment}}
	if withChange {
		outs = append(outs, txOut{Address: b.from, Coin: change})
	}
	return encMode.Marshal(txBody{
		Inputs:      inputs,
		Outputs:     outs,
		Fee:         fee,
		TTL:         b.ttl,
		AuxDataHash: auxHash,
	})
}

// estimateFee prices the largest encoding the final transaction can have.
func (b *Builder) estimateFee(ins []wallet.UTXO, signers int, payment uint64, withChange bool, auxHash []byte) (uint64, error) {
	body, err := b.encodeBody(ins, payment, placeholderFee, ^uint64(0), withChange, auxHash)
	if err != nil {
		return 0, err
	}
	ws, err := placeholderWitnesses(signers)
	if err != nil {
		return 0, err
	}
	tx, err := assemble(body, ws, b.aux)
	if err != nil {
		return 0, err
	}
	return b.params.MinFeeA*uint64(len(tx)) + b.params.MinFeeB, nil
}

func (b *Builder) minUTxO(addr []byte) uint64 {
	out, err := encMode.Marshal(txOut{Address: addr, Coin: ^uint64(0)})
	if err != nil {
		return 0
	}
	return (utxoEntryOverhead + uint64(len(out))) * b.perByte
}

func distinctSigners(ins []wallet.UTXO) int {
	seen := make(map[string]struct{}, len(ins))
	for _, u := range ins {
		key := string(u.Address)
		if len(u.Address) >= 1+address.KeyHashSize {
			key = string(u.Address[1 : 1+address.KeyHashSize])
		}
		seen[key] = struct{}{}
	}
	return max(1, len(seen))
}

// Sign asks the wallet for a full witness set and splices it in. Body bytes
// are reused verbatim so the transaction id cannot change.
func (b *Builder) Sign(ctx context.Context) error {
	return b.advance(StageMetadataAttached, StageSigned, func() error {
		wsHex, err := b.wallet.SignTx(ctx, hex.EncodeToString(b.tx), false)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSigning, err)
		}
		ws, err := hex.DecodeString(wsHex)
		if err != nil || len(ws) == 0 || ws[0]>>5 != 5 {
			return fmt.Errorf("%w: wallet returned a malformed witness set", ErrSigning)
		}
		var check map[uint64]cbor.RawMessage
		if err := cbor.Unmarshal(ws, &check); err != nil {
			return fmt.Errorf("%w: witness set: %v", ErrSigning, err)
		}
		signed, err := assemble(b.body, ws, b.aux)
		if err != nil {
			return err
		}
		b.tx = signed
		return nil
	})
}

// Submit sends the signed transaction and returns its id.
func (b *Builder) Submit(ctx context.Context) (string, error) {
	var id string
	err := b.advance(StageSigned, StageSubmitted, func() error {
		var err error
		switch b.submitVia {
		case config.SubmitViaIndexer:
			id, err = b.chain.SubmitTx(ctx, b.tx)
		default:
			id, err = b.wallet.SubmitTx(ctx, hex.EncodeToString(b.tx))
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSubmission, err)
		}
		if id != "" && !strings.EqualFold(id, b.hash) {
			return fmt.Errorf("%w: network reported %s, expected %s", ErrSubmission, id, b.hash)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.hash, nil
}

// Run drives every stage in order.
func (b *Builder) Run(ctx context.Context, from address.Address, rec record.Record) (*Result, error) {
	if err := b.Draft(ctx, from); err != nil {
		return nil, err
	}
	if err := b.AttachMetadata(rec); err != nil {
		return nil, err
	}
	if err := b.Sign(ctx); err != nil {
		return nil, err
	}
	hash, err := b.Submit(ctx)
	if err != nil {
		return nil, err
	}
	b.logger.Info("transaction submitted", "tx_hash", hash, "fee", b.fee, "inputs", len(b.selected))
	return &Result{
		TxHash: hash,
		Fee:    b.fee,
		Inputs: len(b.selected),
		Change: b.change,
		Size:   len(b.tx),
		TTL:    b.ttl,
	}, nil
}

// IsStage reports whether err is a StageError raised at s.
func IsStage(err error, s Stage) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == s
}
