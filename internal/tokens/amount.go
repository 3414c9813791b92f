package tokens

import (
	"errors"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the precision of every ledger-issued token.
const Decimals = 9

// scale converts whole units into base units.
const scale uint64 = 1_000_000_000

// MaxUnits is the largest whole-unit quantity that scales without overflow.
const MaxUnits = math.MaxUint64 / scale

var ErrAmountOverflow = errors.New("amount overflows base units")

// Amount is a balance in base units (whole units x 10^9).
type Amount uint64

// Units scales a whole-unit quantity into base units.
func Units(whole uint64) (Amount, error) {
	if whole > MaxUnits {
		return 0, ErrAmountOverflow
	}
	return Amount(whole * scale), nil
}

// MustUnits is Units for constants known to fit.
func MustUnits(whole uint64) Amount {
	a, err := Units(whole)
	if err != nil {
		panic(err)
	}
	return a
}

// Whole returns the amount truncated to whole units.
func (a Amount) Whole() uint64 {
	return uint64(a) / scale
}

// Decimal renders the amount with its fixed precision.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -Decimals)
}

// String renders the amount as a fixed-point decimal, e.g. "48.000000000".
func (a Amount) String() string {
	return a.Decimal().StringFixed(Decimals)
}

func (a Amount) add(b Amount) (Amount, bool) {
	sum := a + b
	return sum, sum >= a
}
