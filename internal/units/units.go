// Package units converts between wei amounts and human-readable ether strings.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between wei and ether.
const EtherDecimals = 18

// MaxWeiBits is the width of an on-chain uint256 amount.
const MaxWeiBits = 256

var (
	ErrFractionalWei  = errors.New("amount has more than 18 decimal places")
	ErrAmountTooLarge = errors.New("amount does not fit in 256 bits")
)

// ParseWei parses a base-10 integer amount of wei. Negative amounts are rejected.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", s)
	}
	if v.BitLen() > MaxWeiBits {
		return nil, fmt.Errorf("%w: %q", ErrAmountTooLarge, s)
	}
	return v, nil
}

// ToWei converts an ether amount such as "0.01" to wei.
func ToWei(ether string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(ether))
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", ether, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("ether amount %q must not be negative", ether)
	}
	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, ErrFractionalWei
	}
	v := wei.BigInt()
	if v.BitLen() > MaxWeiBits {
		return nil, fmt.Errorf("%w: %q ether", ErrAmountTooLarge, ether)
	}
	return v, nil
}

// FromWei renders wei as ether without trailing zeros, e.g. 10000000000000000 -> "0.01".
func FromWei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}
