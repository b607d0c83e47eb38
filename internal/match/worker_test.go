package match

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tradeduel/match-engine/internal/feed"
	"github.com/tradeduel/match-engine/internal/model"
	"github.com/tradeduel/match-engine/internal/store"
)

func newTestService(st store.Store) *Service {
	return NewService(st, feed.NewAdapter(64), nil, nil, Defaults{
		DurationMinutes: 1,
		InitialBalance:  decimal.NewFromInt(10000),
		Symbols:         []string{"BTCUSD"},
	})
}

func TestDurationTimeoutEndsMatch(t *testing.T) {
	prev := minuteUnit
	minuteUnit = 20 * time.Millisecond
	defer func() { minuteUnit = prev }()

	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(st)

	m, err := svc.Create(ctx, "alice", decimal.Zero, 0, nil)
	require.NoError(t, err)
	_, err = svc.Join(ctx, m.ID, "bob")
	require.NoError(t, err)
	_, err = svc.Start(ctx, m.ID, "alice")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := st.GetMatch(ctx, m.ID)
		return err == nil && got.Status == model.MatchCompleted
	}, 2*time.Second, 5*time.Millisecond)

	got, err := st.GetMatch(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, "timeout", got.EndReason)
	require.NotNil(t, got.EndedAt)
	require.Empty(t, got.Winner, "no trades: equal equity is a draw")
}

func TestWorkerExitsAfterEnd(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newTestService(st)

	m, err := svc.Create(ctx, "alice", decimal.Zero, 0, nil)
	require.NoError(t, err)
	_, err = svc.End(ctx, m.ID, "forfeit")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.workers) == 0
	}, 2*time.Second, 5*time.Millisecond)

	// Ending again goes through the store fallback and stays idempotent.
	got, err := svc.End(ctx, m.ID, "forfeit")
	require.NoError(t, err)
	require.Equal(t, model.MatchCompleted, got.Status)
}

// Random lifecycle sequences can never leave a match active without both
// player slots filled, and completed matches never change again.
func TestLifecycleInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		st := store.NewMemoryStore()
		svc := newTestService(st)

		users := []string{"alice", "bob", "carol"}
		var ids []string
		pickUser := func() string { return users[rapid.IntRange(0, len(users)-1).Draw(t, "user")] }
		pickMatch := func() string {
			if len(ids) == 0 {
				return "none"
			}
			return ids[rapid.IntRange(0, len(ids)-1).Draw(t, "match")]
		}

		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				if m, err := svc.Create(ctx, pickUser(), decimal.Zero, 0, nil); err == nil {
					ids = append(ids, m.ID)
				}
			case 1:
				svc.Join(ctx, pickMatch(), pickUser())
			case 2:
				svc.Start(ctx, pickMatch(), pickUser())
			case 3:
				svc.End(ctx, pickMatch(), "forfeit")
			}

			for _, id := range ids {
				m, err := st.GetMatch(ctx, id)
				if err != nil {
					t.Fatalf("match %s vanished: %v", id, err)
				}
				if m.Status == model.MatchActive && m.Player2 == "" {
					t.Fatalf("match %s active with one player", id)
				}
				if m.Status == model.MatchActive && m.StartedAt == nil {
					t.Fatalf("match %s active without started_at", id)
				}
				if m.Status == model.MatchCompleted && m.EndedAt == nil {
					t.Fatalf("match %s completed without ended_at", id)
				}
			}
		}
	})
}
