// Package model defines the core domain types shared across the match engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchWaiting   MatchStatus = "waiting"
	MatchActive    MatchStatus = "active"
	MatchCompleted MatchStatus = "completed"
)

// Match is one timed 1v1 trading session between two players.
// Player2 is set iff status is active or completed; EndedAt is set iff
// status is completed. Mutated only by the match orchestrator; immutable
// once completed.
type Match struct {
	ID              string          `json:"id" db:"id"`
	Player1         string          `json:"player1" db:"player1"`
	Player2         string          `json:"player2,omitempty" db:"player2"`
	Status          MatchStatus     `json:"status" db:"status"`
	Symbols         []string        `json:"symbols" db:"symbols"`
	InitialBalance  decimal.Decimal `json:"initial_balance" db:"initial_balance"`
	DurationMinutes int             `json:"duration_minutes" db:"duration_minutes"`
	Winner          string          `json:"winner,omitempty" db:"winner"` // empty on draw or while running
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty" db:"ended_at"`
	EndReason       string          `json:"end_reason,omitempty" db:"end_reason"`
}

// Position is a player's holding in one symbol. Quantity is signed:
// positive long, negative short. Quantity and AverageEntryPrice only
// change atomically together on a fill; quantity zero means the position
// is gone.
type Position struct {
	Symbol            string          `json:"symbol"`
	Quantity          decimal.Decimal `json:"quantity"`
	AverageEntryPrice decimal.Decimal `json:"average_entry_price"`
}

// PlayerState holds one player's cash and positions within a match.
// Owned exclusively by the match's execution engine; destroyed with the
// match. Equity is derived, never set directly.
type PlayerState struct {
	PlayerID    string               `json:"player_id"`
	CashBalance decimal.Decimal      `json:"cash_balance"`
	Positions   map[string]*Position `json:"positions"`
	Equity      decimal.Decimal      `json:"equity"`
}

// OrderType is how an order triggers.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
	OrderStop   OrderType = "stop"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderStatus is the lifecycle state of an order. Filled, cancelled and
// rejected are terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

// Order is a player's instruction to trade. Mutated only by the
// execution engine.
type Order struct {
	ID               string           `json:"id" db:"id"`
	MatchID          string           `json:"match_id" db:"match_id"`
	PlayerID         string           `json:"player_id" db:"player_id"`
	Symbol           string           `json:"symbol" db:"symbol"`
	Type             OrderType        `json:"type" db:"type"`
	Side             OrderSide        `json:"side" db:"side"`
	Quantity         decimal.Decimal  `json:"quantity" db:"quantity"`
	LimitPrice       *decimal.Decimal `json:"limit_price,omitempty" db:"limit_price"`
	TriggerPrice     *decimal.Decimal `json:"trigger_price,omitempty" db:"trigger_price"`
	Status           OrderStatus      `json:"status" db:"status"`
	LinkedPositionID string           `json:"linked_position_id,omitempty" db:"linked_position_id"`
	FillPrice        *decimal.Decimal `json:"fill_price,omitempty" db:"fill_price"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	FilledAt         *time.Time       `json:"filled_at,omitempty" db:"filled_at"`
	RejectReason     string           `json:"reject_reason,omitempty" db:"reject_reason"`
}

// PriceTick is a timestamped price observation for a symbol. The feed
// adapter guarantees strictly increasing timestamps per symbol.
type PriceTick struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// Fill records the execution of an order at a tick price.
type Fill struct {
	Order    *Order
	Price    decimal.Decimal
	Time     time.Time
	Realized decimal.Decimal // realized P&L booked to cash, zero if none
}

// EquitySample is one point of a player's equity time series. Append-only,
// keyed by (match, player, timestamp) with no duplicate timestamps.
type EquitySample struct {
	MatchID   string          `json:"match_id" db:"match_id"`
	PlayerID  string          `json:"player_id" db:"player_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	Equity    decimal.Decimal `json:"equity" db:"equity"`
}

// LeaderboardEntry is a derived ranking row, computed on demand from
// completed matches.
type LeaderboardEntry struct {
	PlayerID    string          `json:"player_id"`
	Wins        int             `json:"wins"`
	GamesPlayed int             `json:"games_played"`
	WinRate     decimal.Decimal `json:"win_rate"` // percentage, 0 when no games
}

// OngoingMatch is the summary row returned for a player's running matches.
type OngoingMatch struct {
	MatchID         string     `json:"match_id"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	OpponentID      string     `json:"opponent_id,omitempty"`
}
