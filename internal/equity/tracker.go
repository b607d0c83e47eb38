// Package equity recomputes player equity from cash and mark-to-market
// position values, producing the per-player equity time series.
package equity

import (
	"github.com/shopspring/decimal"

	"github.com/tradeduel/match-engine/internal/model"
)

// Tracker computes equity samples for one match. Like the engine it is
// owned by the match worker and not safe for concurrent use.
//
// equity = cashBalance + Σ position.quantity * latestPrice[position.symbol]
//
// A position whose symbol has not ticked yet is marked at its average
// entry price; since fills are tick-driven this only matters for state
// seeded before the first tick.
type Tracker struct {
	matchID   string
	lastPrice map[string]decimal.Decimal
}

// NewTracker creates a tracker for a match.
func NewTracker(matchID string) *Tracker {
	return &Tracker{
		matchID:   matchID,
		lastPrice: make(map[string]decimal.Decimal),
	}
}

// SetPrice records the latest tick price for a symbol.
func (t *Tracker) SetPrice(tick model.PriceTick) {
	t.lastPrice[tick.Symbol] = tick.Price
}

// LastPrice returns the latest known price for a symbol, or zero and false
// if none has been seen.
func (t *Tracker) LastPrice(sym string) (decimal.Decimal, bool) {
	p, ok := t.lastPrice[sym]
	return p, ok
}

// Equity computes a player's current equity and updates state.Equity.
func (t *Tracker) Equity(state *model.PlayerState) decimal.Decimal {
	eq := state.CashBalance
	for sym, pos := range state.Positions {
		price, ok := t.lastPrice[sym]
		if !ok {
			price = pos.AverageEntryPrice
		}
		eq = eq.Add(pos.Quantity.Mul(price))
	}
	state.Equity = eq
	return eq
}

// Sample recomputes a player's equity and returns the sample for the given
// tick timestamp. Samples share the tick's timestamp, so a fill and a tick
// landing on the same instant produce one final value per
// (match, player, timestamp) — the store upsert keeps the last write.
func (t *Tracker) Sample(state *model.PlayerState, tick model.PriceTick) model.EquitySample {
	return model.EquitySample{
		MatchID:   t.matchID,
		PlayerID:  state.PlayerID,
		Timestamp: tick.Timestamp,
		Equity:    t.Equity(state),
	}
}

// Affected reports whether a tick touches a player: true when the player
// holds the ticked symbol. Fills are handled separately by the caller.
func Affected(state *model.PlayerState, sym string) bool {
	return state.Positions[sym] != nil
}
