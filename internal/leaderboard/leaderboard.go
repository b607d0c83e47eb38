// Package leaderboard computes player rankings over completed matches.
//
// Pure read-side computation: no state of its own, fully deterministic for
// a given input ordering.
package leaderboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tradeduel/match-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Compute aggregates completed matches into ranked leaderboard entries.
//
// For each participant: wins = matches won, gamesPlayed = completed matches
// participated in, winRate = wins/gamesPlayed*100 (0 when no games).
// Ranking: winRate descending, then wins descending; remaining ties keep
// first-seen order (stable sort). Page truncation is the caller's concern.
func Compute(completed []model.Match) []model.LeaderboardEntry {
	type agg struct {
		wins  int
		games int
	}

	stats := make(map[string]*agg)
	var order []string // first-seen order, the stable-sort baseline

	seen := func(playerID string) *agg {
		if playerID == "" {
			return nil
		}
		a, ok := stats[playerID]
		if !ok {
			a = &agg{}
			stats[playerID] = a
			order = append(order, playerID)
		}
		return a
	}

	for _, m := range completed {
		if m.Status != model.MatchCompleted {
			continue
		}
		for _, pid := range []string{m.Player1, m.Player2} {
			if a := seen(pid); a != nil {
				a.games++
			}
		}
		if a := stats[m.Winner]; a != nil {
			a.wins++
		}
	}

	entries := make([]model.LeaderboardEntry, 0, len(order))
	for _, pid := range order {
		a := stats[pid]
		rate := decimal.Zero
		if a.games > 0 {
			rate = decimal.NewFromInt(int64(a.wins)).
				Div(decimal.NewFromInt(int64(a.games))).
				Mul(hundred)
		}
		entries = append(entries, model.LeaderboardEntry{
			PlayerID:    pid,
			Wins:        a.wins,
			GamesPlayed: a.games,
			WinRate:     rate,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].WinRate.Equal(entries[j].WinRate) {
			return entries[i].WinRate.GreaterThan(entries[j].WinRate)
		}
		return entries[i].Wins > entries[j].Wins
	})

	return entries
}
