package leaderboard_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeduel/match-engine/internal/leaderboard"
	"github.com/tradeduel/match-engine/internal/model"
)

func completed(p1, p2, winner string) model.Match {
	return model.Match{
		Player1: p1,
		Player2: p2,
		Status:  model.MatchCompleted,
		Winner:  winner,
	}
}

func TestCompute_Empty(t *testing.T) {
	assert.Empty(t, leaderboard.Compute(nil))
}

func TestCompute_RanksByWinRateThenWins(t *testing.T) {
	matches := []model.Match{
		// alice: 2 wins / 2 games = 100%
		completed("alice", "bob", "alice"),
		completed("alice", "carol", "alice"),
		// bob: 1 win / 3 games ≈ 33.3%
		completed("bob", "carol", "bob"),
		completed("bob", "dave", "dave"),
		// dave: 1 win / 1 game = 100%, fewer wins than alice
		// carol: 0 wins / 2 games
	}

	entries := leaderboard.Compute(matches)
	require.Len(t, entries, 4)

	assert.Equal(t, "alice", entries[0].PlayerID, "full win rate, 2 wins")
	assert.Equal(t, "dave", entries[1].PlayerID, "full win rate, 1 win")
	assert.Equal(t, "bob", entries[2].PlayerID)
	assert.Equal(t, "carol", entries[3].PlayerID)

	assert.Equal(t, 2, entries[0].Wins)
	assert.Equal(t, 2, entries[0].GamesPlayed)
	assert.True(t, entries[0].WinRate.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 0, entries[3].Wins)
	assert.True(t, entries[3].WinRate.IsZero())
}

func TestCompute_DrawCountsAsGameForBoth(t *testing.T) {
	entries := leaderboard.Compute([]model.Match{
		completed("alice", "bob", ""), // draw: no winner
	})
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, 0, e.Wins)
		assert.Equal(t, 1, e.GamesPlayed)
		assert.True(t, e.WinRate.IsZero())
	}
}

func TestCompute_TiesKeepFirstSeenOrder(t *testing.T) {
	// bob and alice are identical on every ranking key; input order decides.
	entries := leaderboard.Compute([]model.Match{
		completed("bob", "x", "bob"),
		completed("alice", "y", "alice"),
	})
	require.Len(t, entries, 4)
	assert.Equal(t, "bob", entries[0].PlayerID)
	assert.Equal(t, "alice", entries[1].PlayerID)
}

func TestCompute_IgnoresNonCompleted(t *testing.T) {
	entries := leaderboard.Compute([]model.Match{
		{Player1: "alice", Player2: "bob", Status: model.MatchActive},
		{Player1: "alice", Status: model.MatchWaiting},
	})
	assert.Empty(t, entries)
}
