package store

import (
	"context"
	"sort"
	"sync"

	"github.com/tradeduel/match-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]*model.Match
	orders  map[string]*model.Order
	// order ids in insertion order, for stable listing
	orderSeq []string
	// samples keyed by matchID|playerID, kept sorted by timestamp
	samples map[string][]model.EquitySample
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[string]*model.Match),
		orders:  make(map[string]*model.Order),
		samples: make(map[string][]model.EquitySample),
	}
}

func copyMatch(m *model.Match) *model.Match {
	c := *m
	c.Symbols = append([]string(nil), m.Symbols...)
	return &c
}

func (s *MemoryStore) UpsertMatch(_ context.Context, m *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.matches[m.ID] = copyMatch(m)
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMatch(m), nil
}

func (s *MemoryStore) ListCompletedMatches(_ context.Context) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Match
	for _, m := range s.matches {
		if m.Status == model.MatchCompleted {
			out = append(out, *copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].EndedAt, out[j].EndedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.Before(*tj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListOngoingMatchesByPlayer(_ context.Context, playerID string) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Match
	for _, m := range s.matches {
		if m.Status == model.MatchCompleted {
			continue
		}
		if m.Player1 == playerID || m.Player2 == playerID {
			out = append(out, *copyMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpsertOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		s.orderSeq = append(s.orderSeq, o.ID)
	}
	c := *o
	s.orders[o.ID] = &c
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *o
	return &c, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, matchID, playerID string, status model.OrderStatus) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Order
	for _, id := range s.orderSeq {
		o := s.orders[id]
		if o.MatchID != matchID || o.PlayerID != playerID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func sampleKey(matchID, playerID string) string { return matchID + "|" + playerID }

func (s *MemoryStore) UpsertEquitySample(_ context.Context, sample model.EquitySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sampleKey(sample.MatchID, sample.PlayerID)
	series := s.samples[key]

	// Last-write-wins per timestamp. New samples land at the end in the
	// common case; binary search keeps the series ordered otherwise.
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(sample.Timestamp)
	})
	if i < len(series) && series[i].Timestamp.Equal(sample.Timestamp) {
		series[i] = sample
	} else {
		series = append(series, model.EquitySample{})
		copy(series[i+1:], series[i:])
		series[i] = sample
	}
	s.samples[key] = series
	return nil
}

func (s *MemoryStore) ListEquitySamples(_ context.Context, matchID, playerID string) ([]model.EquitySample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.samples[sampleKey(matchID, playerID)]
	out := make([]model.EquitySample, len(series))
	copy(out, series)
	return out, nil
}
