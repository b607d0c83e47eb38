// Package engine implements per-match order evaluation and position
// bookkeeping. All execution is tick-driven: even market orders wait for
// the next tick on their symbol, so every fill has a single canonical
// price source and audit trail.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/tradeduel/match-engine/internal/apperr"
	"github.com/tradeduel/match-engine/internal/model"
	"github.com/tradeduel/match-engine/internal/risk"
	"github.com/tradeduel/match-engine/internal/symbol"
)

// Engine holds pending orders and current positions for both players of
// one match. It is not safe for concurrent use; the match worker owns it
// and serializes all calls.
type Engine struct {
	matchID string
	players map[string]*model.PlayerState
	limiter *risk.Limiter

	orders    map[string]*model.Order
	orderSeq  []string // placement order, for deterministic tick evaluation
	triggered map[string]bool
}

// New creates an engine for a match. The limiter may be nil (no limits).
func New(matchID string, limiter *risk.Limiter) *Engine {
	return &Engine{
		matchID:   matchID,
		players:   make(map[string]*model.PlayerState, 2),
		limiter:   limiter,
		orders:    make(map[string]*model.Order),
		triggered: make(map[string]bool),
	}
}

// AddPlayer seeds a player with the match's initial balance.
func (e *Engine) AddPlayer(playerID string, initialBalance decimal.Decimal) {
	e.players[playerID] = &model.PlayerState{
		PlayerID:    playerID,
		CashBalance: initialBalance,
		Positions:   make(map[string]*model.Position),
		Equity:      initialBalance,
	}
}

// Player returns a player's live state, or nil if unknown.
func (e *Engine) Player(playerID string) *model.PlayerState {
	return e.players[playerID]
}

// Players returns both player states.
func (e *Engine) Players() map[string]*model.PlayerState { return e.players }

// PlaceOrder validates an order and registers it as pending. Market orders
// stay pending until the next tick for their symbol arrives. Checks that
// need a price (balance floor, position limits) run again at fill time
// against the actual tick price.
func (e *Engine) PlaceOrder(o *model.Order) error {
	state, ok := e.players[o.PlayerID]
	if !ok {
		return apperr.NotFound("player %s not in match %s", o.PlayerID, e.matchID)
	}

	if !o.Quantity.IsPositive() {
		return apperr.Validation("quantity must be positive")
	}
	if o.Side != model.SideBuy && o.Side != model.SideSell {
		return apperr.Validation("side must be buy or sell")
	}
	switch o.Type {
	case model.OrderMarket:
	case model.OrderLimit:
		if o.LimitPrice == nil || !o.LimitPrice.IsPositive() {
			return apperr.Validation("limit order requires a positive limit_price")
		}
	case model.OrderStop:
		if o.TriggerPrice == nil || !o.TriggerPrice.IsPositive() {
			return apperr.Validation("stop order requires a positive trigger_price")
		}
	default:
		return apperr.Validation("type must be market, limit or stop")
	}

	if err := e.limiter.CheckOrder(o.Quantity); err != nil {
		return apperr.Conflict("%v", err)
	}

	// Selling needs no price to validate: without shorting the player must
	// already hold at least the order quantity.
	if o.Side == model.SideSell && !symbol.Shortable(o.Symbol) {
		held := decimal.Zero
		if pos := state.Positions[o.Symbol]; pos != nil {
			held = pos.Quantity
		}
		if held.LessThan(o.Quantity) {
			return apperr.InsufficientPosition(
				"sell %s exceeds held position %s in %s", o.Quantity, held, o.Symbol)
		}
	}

	// Limit buys have a known worst-case cost; reject early when even the
	// limit price is unaffordable.
	if o.Side == model.SideBuy && o.Type == model.OrderLimit {
		if o.LimitPrice.Mul(o.Quantity).GreaterThan(state.CashBalance) {
			return apperr.InsufficientBalance(
				"limit buy cost %s exceeds cash %s", o.LimitPrice.Mul(o.Quantity), state.CashBalance)
		}
	}

	o.Status = model.OrderPending
	e.orders[o.ID] = o
	e.orderSeq = append(e.orderSeq, o.ID)
	return nil
}

// CancelOrder cancels a pending order. Filled, rejected or already
// cancelled orders cannot be cancelled.
func (e *Engine) CancelOrder(orderID string) (*model.Order, error) {
	o, ok := e.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("order %s not found", orderID)
	}
	if o.Status != model.OrderPending {
		return nil, apperr.Conflict("order %s is %s, only pending orders may be cancelled", orderID, o.Status)
	}
	o.Status = model.OrderCancelled
	e.removeOrder(orderID)
	return o, nil
}

// CancelAll cancels every pending order. Called when the match ends.
func (e *Engine) CancelAll() []*model.Order {
	var cancelled []*model.Order
	for _, id := range e.orderSeq {
		o := e.orders[id]
		o.Status = model.OrderCancelled
		cancelled = append(cancelled, o)
	}
	e.orders = make(map[string]*model.Order)
	e.orderSeq = nil
	e.triggered = make(map[string]bool)
	return cancelled
}

// PendingOrders returns the pending orders in placement order.
func (e *Engine) PendingOrders() []*model.Order {
	out := make([]*model.Order, 0, len(e.orderSeq))
	for _, id := range e.orderSeq {
		out = append(out, e.orders[id])
	}
	return out
}

// OnTick evaluates all pending orders for the tick's symbol, in placement
// order. Returns the fills produced and the orders rejected by economic
// rules at fill time (balance floor, position floor, risk limits).
func (e *Engine) OnTick(tick model.PriceTick) (fills []model.Fill, rejected []*model.Order) {
	var done []string

	for _, id := range e.orderSeq {
		o := e.orders[id]
		if o.Symbol != tick.Symbol {
			continue
		}

		if !e.eligible(o, tick.Price) {
			continue
		}

		fill, err := e.apply(o, tick)
		if err != nil {
			o.Status = model.OrderRejected
			o.RejectReason = err.Error()
			rejected = append(rejected, o)
			done = append(done, id)
			continue
		}

		now := tick.Timestamp
		o.Status = model.OrderFilled
		price := tick.Price
		o.FillPrice = &price
		o.FilledAt = &now
		fills = append(fills, fill)
		done = append(done, id)
	}

	for _, id := range done {
		e.removeOrder(id)
	}
	return fills, rejected
}

// eligible reports whether an order fills at this tick price. Stop orders
// convert to market once the trigger is crossed and then fill on the same
// tick.
func (e *Engine) eligible(o *model.Order, price decimal.Decimal) bool {
	switch o.Type {
	case model.OrderMarket:
		return true
	case model.OrderLimit:
		if o.Side == model.SideBuy {
			return price.LessThanOrEqual(*o.LimitPrice)
		}
		return price.GreaterThanOrEqual(*o.LimitPrice)
	case model.OrderStop:
		if e.triggered[o.ID] {
			return true
		}
		crossed := false
		if o.Side == model.SideBuy {
			crossed = price.GreaterThanOrEqual(*o.TriggerPrice)
		} else {
			crossed = price.LessThanOrEqual(*o.TriggerPrice)
		}
		if crossed {
			e.triggered[o.ID] = true
		}
		return crossed
	}
	return false
}

// apply executes the fill accounting for one order at the tick price.
// Validates economic rules first; nothing mutates on failure.
func (e *Engine) apply(o *model.Order, tick model.PriceTick) (model.Fill, error) {
	state := e.players[o.PlayerID]
	price := tick.Price

	delta := o.Quantity
	if o.Side == model.SideSell {
		delta = delta.Neg()
	}

	oldQty := decimal.Zero
	oldAvg := decimal.Zero
	if pos := state.Positions[o.Symbol]; pos != nil {
		oldQty = pos.Quantity
		oldAvg = pos.AverageEntryPrice
	}

	// Position floor: no shorting on spot symbols.
	if o.Side == model.SideSell && !symbol.Shortable(o.Symbol) && oldQty.LessThan(o.Quantity) {
		return model.Fill{}, apperr.InsufficientPosition(
			"sell %s exceeds held position %s in %s", o.Quantity, oldQty, o.Symbol)
	}

	// Balance floor: cash can never go negative. Cash flow is always
	// -delta*price (buys pay, sells receive).
	newCash := state.CashBalance.Sub(delta.Mul(price))
	if newCash.IsNegative() {
		return model.Fill{}, apperr.InsufficientBalance(
			"order cost %s exceeds cash %s", delta.Mul(price), state.CashBalance)
	}

	if err := e.limiter.CheckPosition(oldQty, delta); err != nil {
		return model.Fill{}, apperr.Conflict("%v", err)
	}

	newQty := oldQty.Add(delta)
	realized := decimal.Zero
	var newAvg decimal.Decimal

	switch {
	case oldQty.IsZero() || oldQty.Sign() == delta.Sign():
		// Opening or adding: size-weighted average entry.
		newAvg = oldQty.Abs().Mul(oldAvg).
			Add(delta.Abs().Mul(price)).
			Div(oldQty.Abs().Add(delta.Abs()))
	case newQty.Sign() == oldQty.Sign() || newQty.IsZero():
		// Reducing or closing: average entry unchanged, P&L realized on
		// the closed quantity.
		closed := delta.Abs()
		realized = price.Sub(oldAvg).Mul(closed).Mul(decimal.NewFromInt(int64(oldQty.Sign())))
		newAvg = oldAvg
	default:
		// Reversing: realize the whole old position, open the remainder
		// at the tick price.
		closed := oldQty.Abs()
		realized = price.Sub(oldAvg).Mul(closed).Mul(decimal.NewFromInt(int64(oldQty.Sign())))
		newAvg = price
	}

	state.CashBalance = newCash
	if newQty.IsZero() {
		delete(state.Positions, o.Symbol)
	} else {
		state.Positions[o.Symbol] = &model.Position{
			Symbol:            o.Symbol,
			Quantity:          newQty,
			AverageEntryPrice: newAvg,
		}
	}

	return model.Fill{
		Order:    o,
		Price:    price,
		Time:     tick.Timestamp,
		Realized: realized,
	}, nil
}

func (e *Engine) removeOrder(id string) {
	delete(e.orders, id)
	delete(e.triggered, id)
	for i, v := range e.orderSeq {
		if v == id {
			e.orderSeq = append(e.orderSeq[:i], e.orderSeq[i+1:]...)
			break
		}
	}
}
