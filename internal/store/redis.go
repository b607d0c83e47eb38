package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradeduel/match-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Live match state never lives here — only query results (match rows,
// equity history) that the read side serves repeatedly.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertMatch(ctx context.Context, m *model.Match) error {
	if err := s.primary.UpsertMatch(ctx, m); err != nil {
		return err
	}
	s.cacheJSON(ctx, matchKey(m.ID), m)
	return nil
}

func (s *CachedStore) UpsertOrder(ctx context.Context, o *model.Order) error {
	return s.primary.UpsertOrder(ctx, o)
}

func (s *CachedStore) UpsertEquitySample(ctx context.Context, sample model.EquitySample) error {
	if err := s.primary.UpsertEquitySample(ctx, sample); err != nil {
		return err
	}
	// Invalidate the history; next read re-populates.
	s.rdb.Del(ctx, equityKey(sample.MatchID, sample.PlayerID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	data, err := s.rdb.Get(ctx, matchKey(id)).Bytes()
	if err == nil {
		var m model.Match
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, matchKey(id), m)
	return m, nil
}

func (s *CachedStore) ListEquitySamples(ctx context.Context, matchID, playerID string) ([]model.EquitySample, error) {
	key := equityKey(matchID, playerID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var samples []model.EquitySample
		if json.Unmarshal(data, &samples) == nil {
			return samples, nil
		}
	}

	samples, err := s.primary.ListEquitySamples(ctx, matchID, playerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(samples); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return samples, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListCompletedMatches(ctx context.Context) ([]model.Match, error) {
	return s.primary.ListCompletedMatches(ctx)
}

func (s *CachedStore) ListOngoingMatchesByPlayer(ctx context.Context, playerID string) ([]model.Match, error) {
	return s.primary.ListOngoingMatchesByPlayer(ctx, playerID)
}

func (s *CachedStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.primary.GetOrder(ctx, id)
}

func (s *CachedStore) ListOrders(ctx context.Context, matchID, playerID string, status model.OrderStatus) ([]model.Order, error) {
	return s.primary.ListOrders(ctx, matchID, playerID, status)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func matchKey(id string) string { return fmt.Sprintf("match:%s", id) }

func equityKey(matchID, playerID string) string {
	return fmt.Sprintf("equity:%s:%s", matchID, playerID)
}
