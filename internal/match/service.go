// Package match implements the match lifecycle: create/join/start/tick/end,
// one execution engine and equity tracker per match, and the HTTP handlers
// exposing the whole API.
//
// Concurrency model: one worker goroutine per live match consumes a single
// ordered command queue, so lifecycle transitions, order placement and tick
// processing are strictly serialized within a match and fully independent
// across matches. The durable store is the only shared resource; all writes
// to it are idempotent upserts retried with bounded backoff.
package match

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeduel/match-engine/internal/apperr"
	"github.com/tradeduel/match-engine/internal/feed"
	"github.com/tradeduel/match-engine/internal/leaderboard"
	"github.com/tradeduel/match-engine/internal/metrics"
	"github.com/tradeduel/match-engine/internal/model"
	"github.com/tradeduel/match-engine/internal/risk"
	"github.com/tradeduel/match-engine/internal/store"
	"github.com/tradeduel/match-engine/internal/symbol"
)

// Defaults are applied when a create request leaves fields unset.
type Defaults struct {
	DurationMinutes int
	InitialBalance  decimal.Decimal
	Symbols         []string
}

// Service orchestrates all matches. Construct once in main and pass the
// store and feed explicitly — no ambient globals.
type Service struct {
	store    store.Store
	feed     *feed.Adapter
	limiter  *risk.Limiter
	hub      *WSHub // optional WebSocket hub for live broadcasts
	defaults Defaults

	mu      sync.Mutex
	workers map[string]*worker
}

// NewService creates the orchestrator. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, fd *feed.Adapter, limiter *risk.Limiter, hub *WSHub, defaults Defaults) *Service {
	return &Service{
		store:    st,
		feed:     fd,
		limiter:  limiter,
		hub:      hub,
		defaults: defaults,
		workers:  make(map[string]*worker),
	}
}

// Create makes a new match in the waiting state with the creator in the
// first player slot and one player state seeded with the initial balance.
func (s *Service) Create(ctx context.Context, creatorID string, initialBalance decimal.Decimal, durationMinutes int, symbols []string) (*model.Match, error) {
	if creatorID == "" {
		return nil, apperr.Validation("creator_id is required")
	}
	if initialBalance.IsZero() {
		initialBalance = s.defaults.InitialBalance
	}
	if !initialBalance.IsPositive() {
		return nil, apperr.Validation("initial_balance must be positive")
	}
	if durationMinutes == 0 {
		durationMinutes = s.defaults.DurationMinutes
	}
	if durationMinutes <= 0 {
		return nil, apperr.Validation("duration_minutes must be positive")
	}
	if len(symbols) == 0 {
		symbols = s.defaults.Symbols
	}
	if len(symbols) == 0 {
		return nil, apperr.Validation("at least one symbol is required")
	}
	if err := symbol.ValidateAll(symbols); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	m := &model.Match{
		ID:              uuid.New().String(),
		Player1:         creatorID,
		Status:          model.MatchWaiting,
		Symbols:         append([]string(nil), symbols...),
		InitialBalance:  initialBalance,
		DurationMinutes: durationMinutes,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.persist(ctx, "upsert match", func(c context.Context) error {
		return s.store.UpsertMatch(c, m)
	}); err != nil {
		return nil, err
	}

	w := newWorker(s, m)
	s.mu.Lock()
	s.workers[m.ID] = w
	s.mu.Unlock()
	go w.run()

	slog.Info("match created",
		"match", m.ID,
		"creator", creatorID,
		"balance", initialBalance.String(),
		"duration_minutes", durationMinutes,
	)
	return snapshot(m), nil
}

// Join fills the second player slot. The match stays waiting: starting is
// a separate, creator-only action.
func (s *Service) Join(ctx context.Context, matchID, userID string) (*model.Match, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	return s.route(ctx, matchID,
		func(w *worker) (*model.Match, error) { return w.join(userID) },
		func(m *model.Match) (*model.Match, error) {
			return nil, apperr.Conflict("match %s already started", matchID)
		})
}

// Start transitions a full waiting match to active. Only the creator may
// start; on success the match subscribes to its symbols' tick stream and
// the duration timeout is scheduled.
func (s *Service) Start(ctx context.Context, matchID, userID string) (*model.Match, error) {
	return s.route(ctx, matchID,
		func(w *worker) (*model.Match, error) { return w.start(userID) },
		func(m *model.Match) (*model.Match, error) {
			return nil, apperr.NotFound("match %s is not waiting to start", matchID)
		})
}

// OrderRequest carries one placeOrder call.
type OrderRequest struct {
	MatchID          string
	PlayerID         string
	Symbol           string
	Type             model.OrderType
	Side             model.OrderSide
	Quantity         decimal.Decimal
	LimitPrice       *decimal.Decimal
	TriggerPrice     *decimal.Decimal
	LinkedPositionID string
}

// PlaceOrder validates and registers an order with the match's engine.
// Market orders stay pending until the next tick on their symbol.
func (s *Service) PlaceOrder(ctx context.Context, req OrderRequest) (*model.Order, error) {
	return routeOrder(ctx, s, req.MatchID,
		func(w *worker) (*model.Order, error) { return w.placeOrder(req) },
		func(m *model.Match) (*model.Order, error) {
			return nil, apperr.Conflict("match %s is not accepting orders", req.MatchID)
		})
}

// CancelOrder cancels a pending order. Only pending orders may be
// cancelled.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*model.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("order %s not found", orderID)
		}
		return nil, apperr.Persistence(err, "get order")
	}
	return routeOrder(ctx, s, o.MatchID,
		func(w *worker) (*model.Order, error) { return w.cancelOrder(orderID) },
		func(m *model.Match) (*model.Order, error) {
			return nil, apperr.Conflict("order %s belongs to a completed match", orderID)
		})
}

// End force-completes a match. Idempotent: ending a completed match
// returns it unchanged.
func (s *Service) End(ctx context.Context, matchID, reason string) (*model.Match, error) {
	return s.route(ctx, matchID,
		func(w *worker) (*model.Match, error) { return w.end(reason) },
		func(m *model.Match) (*model.Match, error) {
			// Already completed: idempotent success.
			return m, nil
		})
}

// GetMatch returns a match by id.
func (s *Service) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.NotFound("match %s not found", matchID)
		}
		return nil, apperr.Persistence(err, "get match")
	}
	return m, nil
}

// EquityHistory returns a player's equity samples ordered by timestamp
// ascending. A match with no samples yet yields an empty slice, never an
// error; a store failure is reported as a failure.
func (s *Service) EquityHistory(ctx context.Context, matchID, playerID string) ([]model.EquitySample, error) {
	samples, err := s.store.ListEquitySamples(ctx, matchID, playerID)
	if err != nil {
		return nil, apperr.Persistence(err, "list equity samples")
	}
	if samples == nil {
		samples = []model.EquitySample{}
	}
	return samples, nil
}

// Orders returns a player's orders in a match, optionally filtered by
// status.
func (s *Service) Orders(ctx context.Context, matchID, playerID string, status model.OrderStatus) ([]model.Order, error) {
	switch status {
	case "", model.OrderPending, model.OrderFilled, model.OrderCancelled, model.OrderRejected:
	default:
		return nil, apperr.Validation("unknown order status %q", status)
	}
	orders, err := s.store.ListOrders(ctx, matchID, playerID, status)
	if err != nil {
		return nil, apperr.Persistence(err, "list orders")
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// OngoingMatches returns summaries of a player's waiting and active
// matches.
func (s *Service) OngoingMatches(ctx context.Context, playerID string) ([]model.OngoingMatch, error) {
	matches, err := s.store.ListOngoingMatchesByPlayer(ctx, playerID)
	if err != nil {
		return nil, apperr.Persistence(err, "list ongoing matches")
	}
	out := make([]model.OngoingMatch, 0, len(matches))
	for _, m := range matches {
		opponent := m.Player2
		if m.Player1 != playerID {
			opponent = m.Player1
		}
		if opponent == playerID {
			opponent = ""
		}
		out = append(out, model.OngoingMatch{
			MatchID:         m.ID,
			StartedAt:       m.StartedAt,
			DurationMinutes: m.DurationMinutes,
			OpponentID:      opponent,
		})
	}
	return out, nil
}

// Leaderboard ranks players over completed matches, truncated to limit
// (0 = no truncation).
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	completed, err := s.store.ListCompletedMatches(ctx)
	if err != nil {
		return nil, apperr.Persistence(err, "list completed matches")
	}
	entries := leaderboard.Compute(completed)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// --- Worker routing ---

// route sends a command to the match's worker, falling back to
// store-derived handling when the worker has exited (completed match).
func (s *Service) route(ctx context.Context, matchID string,
	live func(*worker) (*model.Match, error),
	fallback func(*model.Match) (*model.Match, error),
) (*model.Match, error) {
	return routeOrder(ctx, s, matchID, live, fallback)
}

// routeOrder is route generalized over the result type.
func routeOrder[T any](ctx context.Context, s *Service, matchID string,
	live func(*worker) (T, error),
	fallback func(*model.Match) (T, error),
) (T, error) {
	var zero T

	s.mu.Lock()
	w, ok := s.workers[matchID]
	s.mu.Unlock()

	if ok {
		res, err, delivered := deliver(ctx, w, live)
		if delivered {
			return res, err
		}
		// Worker exited between lookup and delivery; fall through.
	}

	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		if err == store.ErrNotFound {
			return zero, apperr.NotFound("match %s not found", matchID)
		}
		return zero, apperr.Persistence(err, "get match")
	}
	return fallback(m)
}

// deliver runs fn on the worker's goroutine and waits for the result.
// Returns delivered=false if the worker shut down first.
func deliver[T any](ctx context.Context, w *worker, fn func(*worker) (T, error)) (res T, err error, delivered bool) {
	type result struct {
		val T
		err error
	}
	reply := make(chan result, 1)
	cmd := func(w *worker) {
		v, e := fn(w)
		reply <- result{v, e}
	}

	select {
	case w.cmds <- cmd:
	case <-w.done:
		return res, nil, false
	case <-ctx.Done():
		return res, ctx.Err(), true
	}

	select {
	case r := <-reply:
		return r.val, r.err, true
	case <-w.done:
		// Command queued but never processed: worker ended first.
		select {
		case r := <-reply:
			return r.val, r.err, true
		default:
			return res, nil, false
		}
	}
}

func (s *Service) removeWorker(matchID string) {
	s.mu.Lock()
	delete(s.workers, matchID)
	s.mu.Unlock()
}

// persist runs an idempotent store write with bounded exponential backoff
// before surfacing a persistence error.
func (s *Service) persist(ctx context.Context, what string, fn func(context.Context) error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), 3), ctx)
	err := backoff.RetryNotify(
		func() error { return fn(ctx) },
		bo,
		func(err error, next time.Duration) {
			metrics.PersistenceRetries.Inc()
			slog.Warn("store write failed, retrying", "op", what, "retry_in", next, "err", err)
		},
	)
	if err != nil {
		return apperr.Persistence(err, "%s", what)
	}
	return nil
}

func newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	return bo
}

// snapshot returns a defensive copy of a match for callers outside the
// worker.
func snapshot(m *model.Match) *model.Match {
	c := *m
	c.Symbols = append([]string(nil), m.Symbols...)
	return &c
}
