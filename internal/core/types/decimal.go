// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Quantity represents a stock quantity with full precision.
// Uses decimal.Decimal to avoid floating-point errors and to support
// fractional units (weight, volume). Stored as NUMERIC(18,6) in PostgreSQL.
type Quantity = decimal.Decimal

// Money represents a monetary value with full precision.
// Stored as NUMERIC(14,4) in PostgreSQL.
type Money = decimal.Decimal

// NewQuantityFromString creates a Quantity from a string.
// This is the preferred method for precise values.
func NewQuantityFromString(s string) (Quantity, error) {
	return decimal.NewFromString(s)
}

// MustQuantity creates a Quantity from a string, panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewQuantityFromInt creates a Quantity from an integer unit count.
func NewQuantityFromInt(n int64) Quantity {
	return decimal.NewFromInt(n)
}

// Zero returns the zero Quantity/Money value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
