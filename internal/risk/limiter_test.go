package risk_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradeduel/match-engine/internal/risk"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestCheckOrder(t *testing.T) {
	l := risk.NewLimiter(d(0), d(50))

	assert.NoError(t, l.CheckOrder(d(50)), "exactly at the cap")
	assert.ErrorIs(t, l.CheckOrder(d(51)), risk.ErrOrderTooLarge)
}

func TestCheckPosition(t *testing.T) {
	l := risk.NewLimiter(d(100), d(0))

	assert.NoError(t, l.CheckPosition(d(90), d(10)))
	assert.ErrorIs(t, l.CheckPosition(d(90), d(11)), risk.ErrPositionLimitExceeded)
	// Shorts count by absolute size.
	assert.ErrorIs(t, l.CheckPosition(d(-90), d(-11)), risk.ErrPositionLimitExceeded)
	// Reducing an oversized position is always allowed.
	assert.NoError(t, l.CheckPosition(d(100), d(-50)))
}

func TestDisabledLimits(t *testing.T) {
	var nilLimiter *risk.Limiter
	assert.NoError(t, nilLimiter.CheckOrder(d(1000000)))
	assert.NoError(t, nilLimiter.CheckPosition(d(0), d(1000000)))

	zero := risk.NewLimiter(decimal.Zero, decimal.Zero)
	assert.NoError(t, zero.CheckOrder(d(1000000)))
	assert.NoError(t, zero.CheckPosition(d(0), d(1000000)))
}
