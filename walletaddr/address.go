// Package walletaddr provides the WalletAddress value object: a validated
// 32-byte Solana public key plus its base58 form.
package walletaddr

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/cygnus-wealth/sol-core/errs"
)

// Validator performs the curve/format check a wallet address must pass at
// construction. The check itself is treated as an external black box; the
// default implementation below is a minimal stand-in, not a cryptographic
// guarantee.
type Validator interface {
	Validate(address string) (solana.PublicKey, error)
}

// Base58Validator decodes the address as base58 and requires exactly 32
// decoded bytes, matching the shape gagliardetto/solana-go expects for a
// PublicKey.
type Base58Validator struct{}

func (Base58Validator) Validate(address string) (solana.PublicKey, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", errs.ErrInvalidAddress, err)
	}
	if len(decoded) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: expected %d bytes, got %d", errs.ErrInvalidAddress, solana.PublicKeyLength, len(decoded))
	}
	var pk solana.PublicKey
	copy(pk[:], decoded)
	return pk, nil
}

var defaultValidator Validator = Base58Validator{}

// SetDefaultValidator swaps the package-level validator used by New. Tests
// may install a fake to exercise invalid-address paths without depending on
// base58 edge cases.
func SetDefaultValidator(v Validator) {
	if v == nil {
		v = Base58Validator{}
	}
	defaultValidator = v
}

// WalletAddress is an opaque, immutable value object: a validated public
// key plus the base58 string it was constructed from.
type WalletAddress struct {
	key    solana.PublicKey
	base58 string
}

// New validates s and returns the resulting WalletAddress, or a
// *errs.ValidationError wrapping errs.ErrInvalidAddress on failure.
func New(s string) (WalletAddress, error) {
	key, err := defaultValidator.Validate(s)
	if err != nil {
		return WalletAddress{}, &errs.ValidationError{Field: "wallet", Reason: err.Error(), Err: err}
	}
	return WalletAddress{key: key, base58: s}, nil
}

// MustNew panics if s is invalid. Intended for tests and constant literals.
func MustNew(s string) WalletAddress {
	w, err := New(s)
	if err != nil {
		panic(err)
	}
	return w
}

// String returns the base58 form the address was constructed from.
func (w WalletAddress) String() string {
	return w.base58
}

// PublicKey returns the underlying solana-go public key.
func (w WalletAddress) PublicKey() solana.PublicKey {
	return w.key
}

// IsZero reports whether w is the zero value (never produced by New).
func (w WalletAddress) IsZero() bool {
	return w.base58 == ""
}

// Equal compares two wallet addresses by their underlying key bytes.
func (w WalletAddress) Equal(other WalletAddress) bool {
	return w.key.Equals(other.key)
}
