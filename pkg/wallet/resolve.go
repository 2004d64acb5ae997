package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/chaitanya1-coder/docufy/pkg/address"
)

// ResolveSpendableAddress returns the wallet's receive address in bech32.
// Candidates are tried in order: change, first used, first unused. A raw
// address without a text form is an error, never a silent fallback.
func ResolveSpendableAddress(ctx context.Context, h Handle) (address.Address, error) {
	if h == nil {
		return address.Address{}, ErrUnavailable
	}
	var candidates []string
	var lastErr error
	if a, err := h.ChangeAddress(ctx); err == nil && a != "" {
		candidates = append(candidates, a)
	} else if err != nil {
		lastErr = err
	}
	if used, err := h.UsedAddresses(ctx); err == nil && len(used) > 0 {
		candidates = append(candidates, used[0])
	} else if err != nil {
		lastErr = err
	}
	if unused, err := h.UnusedAddresses(ctx); err == nil && len(unused) > 0 {
		candidates = append(candidates, unused[0])
	} else if err != nil {
		lastErr = err
	}
	if len(candidates) == 0 {
		if lastErr != nil {
			return address.Address{}, fmt.Errorf("%w: %v", ErrNoAddress, lastErr)
		}
		return address.Address{}, ErrNoAddress
	}

	var convErr error
	for _, c := range candidates {
		a, err := address.Parse(c)
		if err != nil {
			convErr = err
			continue
		}
		b, err := a.ToBech32()
		if err != nil {
			convErr = err
			continue
		}
		return b, nil
	}
	if errors.Is(convErr, address.ErrNotConvertible) {
		return address.Address{}, convErr
	}
	return address.Address{}, fmt.Errorf("%w: %v", address.ErrNotConvertible, convErr)
}

// Summary is a connection check of a wallet.
type Summary struct {
	ChangeAddress   string `json:"change_address"`
	UsedAddresses   int    `json:"used_addresses"`
	UnusedAddresses int    `json:"unused_addresses"`
	RewardAddresses int    `json:"reward_addresses"`
	UTXOs           int    `json:"utxos"`
	AssetUTXOs      int    `json:"asset_utxos"`
	Lovelace        uint64 `json:"lovelace"`
}

// ADA renders the balance with six decimals.
func (s Summary) ADA() string {
	return strconv.FormatFloat(float64(s.Lovelace)/1e6, 'f', 6, 64)
}

// Describe exercises every read capability of h once.
func Describe(ctx context.Context, h Handle) (*Summary, error) {
	addr, err := ResolveSpendableAddress(ctx, h)
	if err != nil {
		return nil, err
	}
	s := &Summary{ChangeAddress: addr.String()}
	used, err := h.UsedAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("used addresses: %w", err)
	}
	unused, err := h.UnusedAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("unused addresses: %w", err)
	}
	reward, err := h.RewardAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("reward addresses: %w", err)
	}
	s.UsedAddresses, s.UnusedAddresses, s.RewardAddresses = len(used), len(unused), len(reward)

	raw, err := h.Utxos(ctx)
	if err != nil {
		return nil, fmt.Errorf("utxos: %w", err)
	}
	for _, r := range raw {
		u, err := DecodeUTXO(r)
		if err != nil {
			return nil, err
		}
		s.UTXOs++
		if len(u.Assets) > 0 {
			s.AssetUTXOs++
		}
		if s.Lovelace > math.MaxUint64-u.Coin {
			return nil, fmt.Errorf("utxo total overflows")
		}
		s.Lovelace += u.Coin
	}
	return s, nil
}
