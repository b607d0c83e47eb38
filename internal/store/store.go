// Package store defines the persistence interface for the match engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// All writes are idempotent upserts keyed by natural identity (match id,
// order id, (matchID, playerID, timestamp) for equity samples) so retried
// writes after a transient failure cannot duplicate state.
package store

import (
	"context"
	"errors"

	"github.com/tradeduel/match-engine/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Matches ---

	// UpsertMatch creates or replaces a match by id.
	UpsertMatch(ctx context.Context, m *model.Match) error

	// GetMatch retrieves a match by its ID.
	GetMatch(ctx context.Context, id string) (*model.Match, error)

	// ListCompletedMatches returns all completed matches ordered by end time.
	ListCompletedMatches(ctx context.Context) ([]model.Match, error)

	// ListOngoingMatchesByPlayer returns a player's waiting and active matches.
	ListOngoingMatchesByPlayer(ctx context.Context, playerID string) ([]model.Match, error)

	// --- Orders ---

	// UpsertOrder creates or replaces an order by id.
	UpsertOrder(ctx context.Context, o *model.Order) error

	// GetOrder retrieves an order by its ID.
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	// ListOrders returns a player's orders in a match, oldest first,
	// optionally filtered by status ("" = all).
	ListOrders(ctx context.Context, matchID, playerID string, status model.OrderStatus) ([]model.Order, error)

	// --- Equity samples ---

	// UpsertEquitySample writes one equity sample, last-write-wins per
	// (matchID, playerID, timestamp).
	UpsertEquitySample(ctx context.Context, s model.EquitySample) error

	// ListEquitySamples returns a player's equity history in a match,
	// ordered by timestamp ascending. Empty slice when none exist.
	ListEquitySamples(ctx context.Context, matchID, playerID string) ([]model.EquitySample, error)
}
