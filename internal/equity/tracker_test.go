package equity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradeduel/match-engine/internal/equity"
	"github.com/tradeduel/match-engine/internal/model"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func tick(sym string, price float64) model.PriceTick {
	return model.PriceTick{Symbol: sym, Timestamp: time.Now().UTC(), Price: d(price)}
}

func state(cash float64, positions map[string]*model.Position) *model.PlayerState {
	if positions == nil {
		positions = make(map[string]*model.Position)
	}
	return &model.PlayerState{
		PlayerID:    "p1",
		CashBalance: d(cash),
		Positions:   positions,
	}
}

func TestEquity_CashOnly(t *testing.T) {
	trk := equity.NewTracker("m1")
	assert.True(t, trk.Equity(state(10000, nil)).Equal(d(10000)))
}

func TestEquity_MarkToMarket(t *testing.T) {
	trk := equity.NewTracker("m1")
	trk.SetPrice(tick("BTCUSD", 110))

	s := state(9000, map[string]*model.Position{
		"BTCUSD": {Symbol: "BTCUSD", Quantity: d(10), AverageEntryPrice: d(100)},
	})
	// 9000 + 10*110; the position is marked at the tick, not the entry.
	assert.True(t, trk.Equity(s).Equal(d(10100)))
	assert.True(t, s.Equity.Equal(d(10100)), "state.Equity updated in place")
}

func TestEquity_ShortPosition(t *testing.T) {
	trk := equity.NewTracker("m1")
	trk.SetPrice(tick("ETHUSD-PERP", 90))

	s := state(10500, map[string]*model.Position{
		"ETHUSD-PERP": {Symbol: "ETHUSD-PERP", Quantity: d(-5), AverageEntryPrice: d(100)},
	})
	// Short from 100, marked at 90: 10500 - 5*90 = 10050.
	assert.True(t, trk.Equity(s).Equal(d(10050)))
}

func TestEquity_FallsBackToEntryPrice(t *testing.T) {
	trk := equity.NewTracker("m1")

	s := state(9000, map[string]*model.Position{
		"BTCUSD": {Symbol: "BTCUSD", Quantity: d(10), AverageEntryPrice: d(100)},
	})
	assert.True(t, trk.Equity(s).Equal(d(10000)), "no tick yet: marked at entry")
}

func TestEquity_FillAtTickLeavesEquityUnchanged(t *testing.T) {
	// Buying at exactly the mark price converts cash to position value
	// one-for-one.
	trk := equity.NewTracker("m1")
	trk.SetPrice(tick("BTCUSD", 100))

	before := trk.Equity(state(10000, nil))
	after := trk.Equity(state(9000, map[string]*model.Position{
		"BTCUSD": {Symbol: "BTCUSD", Quantity: d(10), AverageEntryPrice: d(100)},
	}))
	assert.True(t, before.Equal(after))
}

func TestSample(t *testing.T) {
	trk := equity.NewTracker("m1")
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trk.SetPrice(model.PriceTick{Symbol: "BTCUSD", Timestamp: ts, Price: d(105)})

	s := state(9000, map[string]*model.Position{
		"BTCUSD": {Symbol: "BTCUSD", Quantity: d(10), AverageEntryPrice: d(100)},
	})
	sample := trk.Sample(s, model.PriceTick{Symbol: "BTCUSD", Timestamp: ts, Price: d(105)})

	assert.Equal(t, "m1", sample.MatchID)
	assert.Equal(t, "p1", sample.PlayerID)
	assert.True(t, sample.Timestamp.Equal(ts))
	assert.True(t, sample.Equity.Equal(d(10050)))
}

func TestLastPrice(t *testing.T) {
	trk := equity.NewTracker("m1")

	_, ok := trk.LastPrice("BTCUSD")
	assert.False(t, ok)

	trk.SetPrice(tick("BTCUSD", 100))
	trk.SetPrice(tick("BTCUSD", 101))
	p, ok := trk.LastPrice("BTCUSD")
	assert.True(t, ok)
	assert.True(t, p.Equal(d(101)), "latest tick wins")
}

func TestAffected(t *testing.T) {
	s := state(10000, map[string]*model.Position{
		"BTCUSD": {Symbol: "BTCUSD", Quantity: d(1), AverageEntryPrice: d(100)},
	})
	assert.True(t, equity.Affected(s, "BTCUSD"))
	assert.False(t, equity.Affected(s, "ETHUSD"))
}
