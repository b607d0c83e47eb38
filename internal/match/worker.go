package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradeduel/match-engine/internal/apperr"
	"github.com/tradeduel/match-engine/internal/engine"
	"github.com/tradeduel/match-engine/internal/equity"
	"github.com/tradeduel/match-engine/internal/feed"
	"github.com/tradeduel/match-engine/internal/metrics"
	"github.com/tradeduel/match-engine/internal/model"
	"github.com/tradeduel/match-engine/internal/symbol"
)

// minuteUnit converts a match's duration_minutes to wall time. Tests shrink
// it to exercise the timeout path without waiting a real minute.
var minuteUnit = time.Minute

// worker owns one match's mutable state. All mutations happen on its
// goroutine, fed by the command queue and (once active) the tick
// subscription, so within a match everything is strictly ordered:
// join → start → tick₁ → tick₂ → … → end.
type worker struct {
	svc     *Service
	matchID string

	cmds chan func(*worker)
	done chan struct{}

	m     *model.Match
	eng   *engine.Engine
	trk   *equity.Tracker
	sub   *feed.Subscription
	ticks <-chan model.PriceTick // nil until the match starts
	timer *time.Timer            // duration timeout, nil until start
}

func newWorker(s *Service, m *model.Match) *worker {
	eng := engine.New(m.ID, s.limiter)
	eng.AddPlayer(m.Player1, m.InitialBalance)
	return &worker{
		svc:     s,
		matchID: m.ID,
		cmds:    make(chan func(*worker), 64),
		done:    make(chan struct{}),
		m:       m,
		eng:     eng,
		trk:     equity.NewTracker(m.ID),
	}
}

func (w *worker) run() {
	defer close(w.done)
	for {
		select {
		case cmd := <-w.cmds:
			cmd(w)
			if w.m.Status == model.MatchCompleted {
				w.svc.removeWorker(w.matchID)
				return
			}
		case tick, ok := <-w.ticks:
			if !ok {
				w.ticks = nil
				continue
			}
			w.handleTick(tick)
		}
	}
}

// ctx for store writes issued from the worker goroutine. Tick-path writes
// must not inherit a request context.
func (w *worker) ctx() context.Context { return context.Background() }

// --- Lifecycle ---

func (w *worker) join(userID string) (*model.Match, error) {
	if w.m.Status != model.MatchWaiting {
		return nil, apperr.Conflict("match %s already started", w.matchID)
	}
	if userID == w.m.Player1 {
		return nil, apperr.Conflict("cannot join own match")
	}
	if w.m.Player2 != "" {
		return nil, apperr.Conflict("match %s is full", w.matchID)
	}

	w.m.Player2 = userID
	w.eng.AddPlayer(userID, w.m.InitialBalance)

	if err := w.persistMatch(); err != nil {
		// Roll back so a retry can succeed.
		w.m.Player2 = ""
		return nil, err
	}

	slog.Info("player joined", "match", w.matchID, "player", userID)
	return snapshot(w.m), nil
}

func (w *worker) start(userID string) (*model.Match, error) {
	if w.m.Status != model.MatchWaiting {
		return nil, apperr.NotFound("match %s is not waiting to start", w.matchID)
	}
	if w.m.Player2 == "" {
		return nil, apperr.Validation("match %s needs a second player before starting", w.matchID)
	}
	if userID != w.m.Player1 {
		return nil, apperr.Authorization("only the creator may start the match")
	}

	now := time.Now().UTC()
	w.m.Status = model.MatchActive
	w.m.StartedAt = &now

	if err := w.persistMatch(); err != nil {
		w.m.Status = model.MatchWaiting
		w.m.StartedAt = nil
		return nil, err
	}

	w.sub = w.svc.feed.Subscribe(w.matchID, w.m.Symbols)
	w.ticks = w.sub.Ticks()

	duration := time.Duration(w.m.DurationMinutes) * minuteUnit
	w.timer = time.AfterFunc(duration, func() {
		// Advisory: the end command goes through the normal queue so
		// ordering guarantees stay intact.
		if _, err := w.svc.End(context.Background(), w.matchID, "timeout"); err != nil {
			slog.Error("timeout end failed", "match", w.matchID, "err", err)
		}
	})

	metrics.ActiveMatches.Inc()
	slog.Info("match started",
		"match", w.matchID,
		"player1", w.m.Player1,
		"player2", w.m.Player2,
		"symbols", w.m.Symbols,
		"duration_minutes", w.m.DurationMinutes,
	)
	return snapshot(w.m), nil
}

func (w *worker) end(reason string) (*model.Match, error) {
	if w.m.Status == model.MatchCompleted {
		return snapshot(w.m), nil
	}

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.sub != nil {
		w.svc.feed.Unsubscribe(w.matchID)
		w.sub = nil
		w.ticks = nil
	}

	now := time.Now().UTC()
	wasActive := w.m.Status == model.MatchActive

	// Cancel anything still pending — never silently dropped.
	for _, o := range w.eng.CancelAll() {
		w.persistOrder(o)
	}

	// Final equity snapshot decides the winner.
	winner := ""
	if w.m.Player2 != "" {
		p1 := w.trk.Equity(w.eng.Player(w.m.Player1))
		p2 := w.trk.Equity(w.eng.Player(w.m.Player2))
		switch {
		case p1.GreaterThan(p2):
			winner = w.m.Player1
		case p2.GreaterThan(p1):
			winner = w.m.Player2
		}
		endTick := model.PriceTick{Timestamp: now}
		for _, pid := range []string{w.m.Player1, w.m.Player2} {
			w.persistSample(w.trk.Sample(w.eng.Player(pid), endTick))
		}
	}

	w.m.Status = model.MatchCompleted
	w.m.EndedAt = &now
	w.m.EndReason = reason
	w.m.Winner = winner

	if err := w.persistMatch(); err != nil {
		// The match still completes in memory; the store write already
		// exhausted its retries. Report but do not resurrect the match.
		slog.Error("failed to persist completed match", "match", w.matchID, "err", err)
	}

	if wasActive {
		metrics.ActiveMatches.Dec()
	}
	if w.svc.hub != nil {
		w.svc.hub.Broadcast(WSMessage{
			Type:    "match_ended",
			MatchID: w.matchID,
			Winner:  winner,
			Reason:  reason,
		})
	}
	slog.Info("match ended", "match", w.matchID, "reason", reason, "winner", winner)
	return snapshot(w.m), nil
}

// --- Orders ---

func (w *worker) placeOrder(req OrderRequest) (*model.Order, error) {
	if w.m.Status != model.MatchActive {
		return nil, apperr.Conflict("match %s is not active", w.matchID)
	}
	if !w.tradesSymbol(req.Symbol) {
		return nil, apperr.Validation("symbol %s is not traded in this match", req.Symbol)
	}
	if _, err := symbol.Parse(req.Symbol); err != nil {
		return nil, apperr.Validation("%v", err)
	}

	o := &model.Order{
		ID:               uuid.New().String(),
		MatchID:          w.matchID,
		PlayerID:         req.PlayerID,
		Symbol:           req.Symbol,
		Type:             req.Type,
		Side:             req.Side,
		Quantity:         req.Quantity,
		LimitPrice:       req.LimitPrice,
		TriggerPrice:     req.TriggerPrice,
		LinkedPositionID: req.LinkedPositionID,
		CreatedAt:        time.Now().UTC(),
	}

	if err := w.eng.PlaceOrder(o); err != nil {
		return nil, err
	}

	if err := w.svc.persist(w.ctx(), "upsert order", func(c context.Context) error {
		return w.svc.store.UpsertOrder(c, o)
	}); err != nil {
		// Un-register the order; the engine never saw a tick for it.
		_, _ = w.eng.CancelOrder(o.ID)
		return nil, err
	}

	metrics.OrdersTotal.WithLabelValues(string(o.Type), string(o.Side), string(o.Status)).Inc()
	c := *o
	return &c, nil
}

func (w *worker) cancelOrder(orderID string) (*model.Order, error) {
	o, err := w.eng.CancelOrder(orderID)
	if err != nil {
		// The engine no longer holds it: the store knows its terminal state.
		stored, serr := w.svc.store.GetOrder(w.ctx(), orderID)
		if serr == nil && stored.Status != model.OrderPending {
			return nil, apperr.Conflict("order %s is already %s", orderID, stored.Status)
		}
		return nil, err
	}
	w.persistOrder(o)
	c := *o
	return &c, nil
}

// --- Ticks ---

func (w *worker) handleTick(tick model.PriceTick) {
	if w.m.Status != model.MatchActive {
		return
	}
	metrics.TicksProcessed.WithLabelValues(tick.Symbol).Inc()

	fills, rejected := w.eng.OnTick(tick)
	w.trk.SetPrice(tick)

	filledBy := make(map[string]bool, 2)
	for i := range fills {
		f := &fills[i]
		filledBy[f.Order.PlayerID] = true
		w.persistOrder(f.Order)
		metrics.FillsTotal.WithLabelValues(string(f.Order.Side)).Inc()

		slog.Info("order filled",
			"match", w.matchID,
			"order", f.Order.ID,
			"player", f.Order.PlayerID,
			"symbol", f.Order.Symbol,
			"side", f.Order.Side,
			"qty", f.Order.Quantity.String(),
			"price", f.Price.String(),
			"realized", f.Realized.String(),
		)
		if w.svc.hub != nil {
			w.svc.hub.Broadcast(WSMessage{
				Type:     "fill",
				MatchID:  w.matchID,
				PlayerID: f.Order.PlayerID,
				Symbol:   f.Order.Symbol,
				Side:     string(f.Order.Side),
				Quantity: f.Order.Quantity.String(),
				Price:    f.Price.String(),
			})
		}
	}
	for _, o := range rejected {
		w.persistOrder(o)
		metrics.OrdersTotal.WithLabelValues(string(o.Type), string(o.Side), string(o.Status)).Inc()
		slog.Info("order rejected at fill",
			"match", w.matchID, "order", o.ID, "reason", o.RejectReason)
	}

	// Equity recomputes for every fill and for every player holding the
	// ticked symbol. Both land on the tick's timestamp, so a fill and a
	// tick at the same instant produce one final sample.
	for _, state := range w.eng.Players() {
		if !filledBy[state.PlayerID] && !equity.Affected(state, tick.Symbol) {
			continue
		}
		sample := w.trk.Sample(state, tick)
		w.persistSample(sample)
		if w.svc.hub != nil {
			w.svc.hub.Broadcast(WSMessage{
				Type:     "equity",
				MatchID:  w.matchID,
				PlayerID: state.PlayerID,
				Equity:   sample.Equity.String(),
			})
		}
	}

	if w.svc.hub != nil {
		w.svc.hub.Broadcast(WSMessage{
			Type:    "tick",
			MatchID: w.matchID,
			Symbol:  tick.Symbol,
			Price:   tick.Price.String(),
		})
	}
}

// --- Helpers ---

func (w *worker) tradesSymbol(sym string) bool {
	for _, s := range w.m.Symbols {
		if s == sym {
			return true
		}
	}
	return false
}

func (w *worker) persistMatch() error {
	return w.svc.persist(w.ctx(), "upsert match", func(c context.Context) error {
		return w.svc.store.UpsertMatch(c, w.m)
	})
}

// persistOrder logs instead of failing: tick-path writes have no caller to
// surface to, and upserts make retries on later writes safe.
func (w *worker) persistOrder(o *model.Order) {
	if err := w.svc.persist(w.ctx(), "upsert order", func(c context.Context) error {
		return w.svc.store.UpsertOrder(c, o)
	}); err != nil {
		slog.Error("order write failed", "match", w.matchID, "order", o.ID, "err", err)
	}
}

func (w *worker) persistSample(s model.EquitySample) {
	if err := w.svc.persist(w.ctx(), "upsert equity sample", func(c context.Context) error {
		return w.svc.store.UpsertEquitySample(c, s)
	}); err != nil {
		slog.Error("equity sample write failed",
			"match", w.matchID, "player", s.PlayerID, "err", err)
	}
}
