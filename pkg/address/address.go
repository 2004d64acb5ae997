// Package address models Cardano addresses as either their bech32 text form or the raw hex
// bytes some wallets hand out, with an explicit conversion between the two.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Kind tags which encoding an Address carries.
type Kind int

const (
	Bech32 Kind = iota + 1
	RawHex
)

func (k Kind) String() string {
	switch k {
	case Bech32:
		return "bech32"
	case RawHex:
		return "hex"
	default:
		return "unknown"
	}
}

// Header type nibbles.
const (
	typeEnterpriseKey = 0x6
	typeRewardKey     = 0xe
	typeRewardScript  = 0xf
)

// KeyHashSize is the blake2b-224 payment key hash length.
const KeyHashSize = 28

var (
	ErrInvalid        = errors.New("address: not a cardano address")
	ErrNotConvertible = errors.New("address: no bech32 form")
)

// Address is an immutable tagged address value.
type Address struct {
	kind Kind
	text string
}

// Parse classifies s. Bech32 text is checksum-validated; hex must decode to a plausible address.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	if hasTextPrefix(s) {
		if _, _, err := bech32.DecodeNoLimit(s); err != nil {
			return Address{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return Address{kind: Bech32, text: s}, nil
	}

	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) < 1+KeyHashSize {
		return Address{}, fmt.Errorf("%w: %s", ErrInvalid, preview(s))
	}
	return Address{kind: RawHex, text: strings.ToLower(s)}, nil
}

// FromBytes encodes raw address bytes into their bech32 form.
func FromBytes(raw []byte) (Address, error) {
	if len(raw) < 1+KeyHashSize {
		return Address{}, fmt.Errorf("%w: %d bytes", ErrInvalid, len(raw))
	}
	hrp, err := humanPart(raw[0])
	if err != nil {
		return Address{}, err
	}
	text, err := bech32.EncodeFromBase256(hrp, raw)
	if err != nil {
		return Address{}, fmt.Errorf("address: encode: %w", err)
	}
	return Address{kind: Bech32, text: text}, nil
}

// Enterprise builds a payment-key address without a stake part.
func Enterprise(networkID byte, keyHash []byte) (Address, error) {
	if len(keyHash) != KeyHashSize {
		return Address{}, fmt.Errorf("%w: key hash must be %d bytes", ErrInvalid, KeyHashSize)
	}
	raw := make([]byte, 0, 1+KeyHashSize)
	raw = append(raw, typeEnterpriseKey<<4|networkID&0x0f)
	raw = append(raw, keyHash...)
	return FromBytes(raw)
}

func (a Address) Kind() Kind { return a.kind }

func (a Address) String() string { return a.text }

func (a Address) IsZero() bool { return a.kind == 0 }

// Bytes returns the raw address bytes, whichever form a holds.
func (a Address) Bytes() ([]byte, error) {
	switch a.kind {
	case RawHex:
		return hex.DecodeString(a.text)
	case Bech32:
		_, data, err := bech32.DecodeNoLimit(a.text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return bech32.ConvertBits(data, 5, 8, false)
	default:
		return nil, ErrInvalid
	}
}

// ToBech32 converts a RawHex address. Byron and unknown header types fail with ErrNotConvertible.
func (a Address) ToBech32() (Address, error) {
	if a.kind == Bech32 {
		return a, nil
	}
	raw, err := a.Bytes()
	if err != nil {
		return Address{}, err
	}
	return FromBytes(raw)
}

// NetworkID is the header network nibble.
func (a Address) NetworkID() (byte, error) {
	raw, err := a.Bytes()
	if err != nil {
		return 0, err
	}
	return raw[0] & 0x0f, nil
}

// PaymentKeyHash returns the key hash following the header for key-based payment addresses.
func (a Address) PaymentKeyHash() ([]byte, error) {
	raw, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	if t := raw[0] >> 4; len(raw) < 1+KeyHashSize || t > 0x7 || t&0x1 == 1 {
		return nil, fmt.Errorf("%w: not a key-hash payment address", ErrInvalid)
	}
	return raw[1 : 1+KeyHashSize], nil
}

func humanPart(header byte) (string, error) {
	var hrp string
	switch t := header >> 4; {
	case t <= 0x7:
		hrp = "addr"
	case t == typeRewardKey || t == typeRewardScript:
		hrp = "stake"
	default:
		return "", fmt.Errorf("%w: header type %#x", ErrNotConvertible, t)
	}
	if header&0x0f == 0 {
		hrp += "_test"
	}
	return hrp, nil
}

func hasTextPrefix(s string) bool {
	for _, p := range []string{"addr1", "addr_test1", "stake1", "stake_test1"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func preview(s string) string {
	if len(s) > 20 {
		return s[:20] + "..."
	}
	return s
}
