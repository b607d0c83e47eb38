// Package risk enforces per-match position and order size limits.
//
// Limits are a safety rail for the simulation, not margining: they cap how
// large a single position or order may grow regardless of available cash.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPositionLimitExceeded is returned when a fill would push a
	// symbol's absolute position beyond the per-symbol maximum.
	ErrPositionLimitExceeded = errors.New("risk: per-symbol position limit exceeded")

	// ErrOrderTooLarge is returned when a single order's quantity exceeds
	// the maximum order size.
	ErrOrderTooLarge = errors.New("risk: order quantity exceeds maximum order size")
)

// Limiter holds the configured limits. Zero limits disable the check.
type Limiter struct {
	// MaxPositionPerSymbol is the maximum absolute signed quantity held
	// in any single symbol.
	MaxPositionPerSymbol decimal.Decimal

	// MaxOrderQuantity is the maximum quantity of a single order.
	MaxOrderQuantity decimal.Decimal
}

// NewLimiter creates a limiter with the given caps.
func NewLimiter(maxPosition, maxOrder decimal.Decimal) *Limiter {
	return &Limiter{
		MaxPositionPerSymbol: maxPosition,
		MaxOrderQuantity:     maxOrder,
	}
}

// CheckOrder validates an order's quantity against the order size cap.
func (l *Limiter) CheckOrder(quantity decimal.Decimal) error {
	if l == nil || l.MaxOrderQuantity.IsZero() {
		return nil
	}
	if quantity.GreaterThan(l.MaxOrderQuantity) {
		return ErrOrderTooLarge
	}
	return nil
}

// CheckPosition validates the position that would result from a fill.
// currentQty is the signed position before the fill, delta the signed
// quantity change.
func (l *Limiter) CheckPosition(currentQty, delta decimal.Decimal) error {
	if l == nil || l.MaxPositionPerSymbol.IsZero() {
		return nil
	}
	if currentQty.Add(delta).Abs().GreaterThan(l.MaxPositionPerSymbol) {
		return ErrPositionLimitExceeded
	}
	return nil
}
