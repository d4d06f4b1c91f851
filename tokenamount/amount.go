// Package tokenamount provides the TokenAmount value object: an
// arbitrary-precision token quantity tied to a fixed decimals scale.
package tokenamount

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cygnus-wealth/sol-core/errs"
)

// MaxDecimals bounds the decimals field per the data model invariant
// decimals ∈ [0,30].
const MaxDecimals = 30

// TokenAmount is an immutable value object wrapping a non-negative integer
// raw unit count and the decimals it is scaled by. Arithmetic between two
// TokenAmounts requires matching decimals.
type TokenAmount struct {
	raw      decimal.Decimal
	decimals int32
}

// New validates rawUnits (a non-negative integer string) and decimals, and
// constructs a TokenAmount.
func New(rawUnits string, decimals int32) (TokenAmount, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return TokenAmount{}, &errs.ValidationError{Field: "decimals", Reason: fmt.Sprintf("must be in [0,%d], got %d", MaxDecimals, decimals)}
	}
	raw, err := decimal.NewFromString(rawUnits)
	if err != nil {
		return TokenAmount{}, &errs.ValidationError{Field: "rawUnits", Reason: err.Error()}
	}
	if raw.IsNegative() {
		return TokenAmount{}, &errs.ValidationError{Field: "rawUnits", Reason: "must be non-negative"}
	}
	if !raw.Equal(raw.Truncate(0)) {
		return TokenAmount{}, &errs.ValidationError{Field: "rawUnits", Reason: "must be an integer"}
	}
	return TokenAmount{raw: raw, decimals: decimals}, nil
}

// Zero returns a zero-valued TokenAmount at the given decimals scale.
func Zero(decimals int32) TokenAmount {
	return TokenAmount{raw: decimal.Zero, decimals: decimals}
}

// RawString returns the raw integer unit count as a string, e.g. lamports.
func (a TokenAmount) RawString() string {
	return a.raw.StringFixed(0)
}

// Decimals returns the scale the raw units are denominated in.
func (a TokenAmount) Decimals() int32 {
	return a.decimals
}

// Decimal returns the human-scaled value (raw / 10^decimals).
func (a TokenAmount) Decimal() decimal.Decimal {
	return a.raw.Shift(-a.decimals)
}

// IsZero reports whether the amount is zero raw units.
func (a TokenAmount) IsZero() bool {
	return a.raw.IsZero()
}

// Add returns a + b. Both must share the same decimals scale.
func (a TokenAmount) Add(b TokenAmount) (TokenAmount, error) {
	if a.decimals != b.decimals {
		return TokenAmount{}, &errs.ValidationError{Field: "decimals", Reason: "mismatched decimals in arithmetic"}
	}
	return TokenAmount{raw: a.raw.Add(b.raw), decimals: a.decimals}, nil
}

// Sub returns a - b. Both must share the same decimals scale; the result
// must remain non-negative.
func (a TokenAmount) Sub(b TokenAmount) (TokenAmount, error) {
	if a.decimals != b.decimals {
		return TokenAmount{}, &errs.ValidationError{Field: "decimals", Reason: "mismatched decimals in arithmetic"}
	}
	result := a.raw.Sub(b.raw)
	if result.IsNegative() {
		return TokenAmount{}, errs.ErrInsufficientBalance
	}
	return TokenAmount{raw: result, decimals: a.decimals}, nil
}

// Cmp compares a and b numerically; both must share the same decimals
// scale.
func (a TokenAmount) Cmp(b TokenAmount) (int, error) {
	if a.decimals != b.decimals {
		return 0, &errs.ValidationError{Field: "decimals", Reason: "mismatched decimals in comparison"}
	}
	return a.raw.Cmp(b.raw), nil
}

// String renders the human-scaled decimal form.
func (a TokenAmount) String() string {
	return a.Decimal().String()
}
