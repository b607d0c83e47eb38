// Package feed normalizes raw price ticks into a deduplicated, time-ordered
// stream fanned out to subscribed matches.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tradeduel/match-engine/internal/metrics"
	"github.com/tradeduel/match-engine/internal/model"
)

// Subscription is one subscriber's view of the feed: a bounded queue of
// ticks for the symbols it registered. Receive from Ticks until it is
// closed by Unsubscribe.
type Subscription struct {
	id      string
	symbols map[string]bool
	ch      chan model.PriceTick

	closeOnce sync.Once
}

// Ticks returns the subscriber's tick queue.
func (s *Subscription) Ticks() <-chan model.PriceTick { return s.ch }

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Adapter dedupes ticks per symbol and fans them out to subscribers.
//
// Dedup rule: a tick with timestamp <= the last emitted timestamp for its
// symbol is dropped silently (a repeated poll, not an error). Fan-out never
// blocks: each subscriber queue is bounded, and on overflow the oldest
// unconsumed tick for that subscriber is dropped and a feed overrun is
// recorded.
type Adapter struct {
	queueCap int

	mu     sync.Mutex
	lastTS map[string]time.Time
	subs   map[string]*Subscription
}

// NewAdapter creates an adapter with the given per-subscriber queue
// capacity (minimum 1).
func NewAdapter(queueCap int) *Adapter {
	if queueCap < 1 {
		queueCap = 1
	}
	return &Adapter{
		queueCap: queueCap,
		lastTS:   make(map[string]time.Time),
		subs:     make(map[string]*Subscription),
	}
}

// Subscribe registers a subscriber for the given symbols. The id must be
// unique per subscriber; re-subscribing the same id replaces the previous
// subscription.
func (a *Adapter) Subscribe(id string, symbols []string) *Subscription {
	sub := &Subscription{
		id:      id,
		symbols: make(map[string]bool, len(symbols)),
		ch:      make(chan model.PriceTick, a.queueCap),
	}
	for _, s := range symbols {
		sub.symbols[s] = true
	}

	a.mu.Lock()
	if old, ok := a.subs[id]; ok {
		old.close()
	}
	a.subs[id] = sub
	a.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its queue.
func (a *Adapter) Unsubscribe(id string) {
	a.mu.Lock()
	sub, ok := a.subs[id]
	if ok {
		delete(a.subs, id)
	}
	a.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish offers one raw tick to the feed. Out-of-order and duplicate
// timestamps are dropped. Returns true if the tick was emitted.
func (a *Adapter) Publish(tick model.PriceTick) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if last, ok := a.lastTS[tick.Symbol]; ok && !tick.Timestamp.After(last) {
		return false
	}
	a.lastTS[tick.Symbol] = tick.Timestamp

	for _, sub := range a.subs {
		if !sub.symbols[tick.Symbol] {
			continue
		}
		select {
		case sub.ch <- tick:
		default:
			// Queue full: drop the oldest tick to make room so the
			// subscriber lags rather than stalls the feed.
			select {
			case dropped := <-sub.ch:
				metrics.FeedOverruns.Inc()
				slog.Warn("feed overrun, dropped tick",
					"subscriber", sub.id,
					"symbol", dropped.Symbol,
					"timestamp", dropped.Timestamp,
				)
			default:
			}
			select {
			case sub.ch <- tick:
			default:
			}
		}
	}
	return true
}

// Run pumps ticks from a source into the adapter until the context is
// cancelled or the source stops.
func (a *Adapter) Run(ctx context.Context, src Source) error {
	raw := make(chan model.PriceTick, 64)

	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx, raw) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case tick := <-raw:
			a.Publish(tick)
		}
	}
}
