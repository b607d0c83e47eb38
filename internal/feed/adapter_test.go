package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeduel/match-engine/internal/feed"
	"github.com/tradeduel/match-engine/internal/model"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func tick(sym string, seq int, price int64) model.PriceTick {
	return model.PriceTick{
		Symbol:    sym,
		Timestamp: base.Add(time.Duration(seq) * time.Second),
		Price:     decimal.NewFromInt(price),
	}
}

func drain(sub *feed.Subscription) []model.PriceTick {
	var out []model.PriceTick
	for {
		select {
		case t, ok := <-sub.Ticks():
			if !ok {
				return out
			}
			out = append(out, t)
		default:
			return out
		}
	}
}

func TestPublish_FansOutToSubscribedSymbols(t *testing.T) {
	a := feed.NewAdapter(8)
	btc := a.Subscribe("m1", []string{"BTCUSD"})
	eth := a.Subscribe("m2", []string{"ETHUSD"})

	assert.True(t, a.Publish(tick("BTCUSD", 1, 100)))
	assert.True(t, a.Publish(tick("ETHUSD", 1, 200)))

	got := drain(btc)
	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSD", got[0].Symbol)

	got = drain(eth)
	require.Len(t, got, 1)
	assert.Equal(t, "ETHUSD", got[0].Symbol)
}

func TestPublish_DropsDuplicateAndStaleTimestamps(t *testing.T) {
	a := feed.NewAdapter(8)
	sub := a.Subscribe("m1", []string{"BTCUSD"})

	assert.True(t, a.Publish(tick("BTCUSD", 2, 100)))
	assert.False(t, a.Publish(tick("BTCUSD", 2, 101)), "same timestamp is a repeated poll")
	assert.False(t, a.Publish(tick("BTCUSD", 1, 99)), "older timestamp is stale")
	assert.True(t, a.Publish(tick("BTCUSD", 3, 102)))

	got := drain(sub)
	require.Len(t, got, 2)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, got[1].Price.Equal(decimal.NewFromInt(102)))
}

func TestPublish_DedupIsPerSymbol(t *testing.T) {
	a := feed.NewAdapter(8)
	sub := a.Subscribe("m1", []string{"BTCUSD", "ETHUSD"})

	assert.True(t, a.Publish(tick("BTCUSD", 1, 100)))
	assert.True(t, a.Publish(tick("ETHUSD", 1, 200)), "other symbol, same timestamp")

	assert.Len(t, drain(sub), 2)
}

func TestPublish_OverrunDropsOldest(t *testing.T) {
	a := feed.NewAdapter(2)
	sub := a.Subscribe("m1", []string{"BTCUSD"})

	for i := 1; i <= 4; i++ {
		a.Publish(tick("BTCUSD", i, int64(100+i)))
	}

	// Queue holds the two newest ticks; the two oldest were dropped.
	got := drain(sub)
	require.Len(t, got, 2)
	assert.True(t, got[0].Price.Equal(decimal.NewFromInt(103)))
	assert.True(t, got[1].Price.Equal(decimal.NewFromInt(104)))
}

func TestUnsubscribe_ClosesQueue(t *testing.T) {
	a := feed.NewAdapter(8)
	sub := a.Subscribe("m1", []string{"BTCUSD"})
	a.Unsubscribe("m1")

	_, ok := <-sub.Ticks()
	assert.False(t, ok)

	// Publishing after unsubscribe is a no-op for this subscriber.
	a.Publish(tick("BTCUSD", 1, 100))
}

func TestResubscribe_ReplacesPrevious(t *testing.T) {
	a := feed.NewAdapter(8)
	old := a.Subscribe("m1", []string{"BTCUSD"})
	sub := a.Subscribe("m1", []string{"ETHUSD"})

	_, ok := <-old.Ticks()
	assert.False(t, ok, "old subscription closed on replace")

	a.Publish(tick("ETHUSD", 1, 200))
	assert.Len(t, drain(sub), 1)
}

func TestRun_PumpsSourceUntilCancelled(t *testing.T) {
	a := feed.NewAdapter(8)
	sub := a.Subscribe("m1", []string{"BTCUSD"})

	src := feed.NewSimulatedSource([]string{"BTCUSD"}, time.Millisecond, decimal.NewFromInt(100), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, src) }()

	require.Eventually(t, func() bool {
		return len(drain(sub)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSimulatedSource_PricesStayPositive(t *testing.T) {
	src := feed.NewSimulatedSource([]string{"BTCUSD"}, time.Millisecond, decimal.NewFromFloat(0.05), 42)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	out := make(chan model.PriceTick, 256)
	go src.Run(ctx, out)

	<-ctx.Done()
	for {
		select {
		case tk := <-out:
			assert.True(t, tk.Price.IsPositive(), "price %s", tk.Price)
		default:
			return
		}
	}
}
