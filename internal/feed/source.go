package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeduel/match-engine/internal/model"
)

// Source delivers raw price ticks. Implementations need not dedupe or
// order ticks; the adapter does that.
type Source interface {
	Run(ctx context.Context, out chan<- model.PriceTick) error
}

// --- HTTP polling source ---

// quote is the JSON shape returned by the external quote endpoint.
type quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// PollSource re-fetches a quote endpoint at a fixed interval for each
// configured symbol. Repeated polls returning the same quote are harmless:
// the adapter drops ticks whose timestamp has not advanced.
type PollSource struct {
	Endpoint string // base URL, queried as {Endpoint}?symbol={sym}
	Symbols  []string
	Interval time.Duration
	Client   *http.Client
}

// NewPollSource creates a polling source with a default client and interval.
func NewPollSource(endpoint string, symbols []string, interval time.Duration) *PollSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollSource{
		Endpoint: endpoint,
		Symbols:  symbols,
		Interval: interval,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Run polls until the context is cancelled. Individual fetch failures are
// logged and skipped; the feed tolerates gaps.
func (p *PollSource) Run(ctx context.Context, out chan<- model.PriceTick) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, sym := range p.Symbols {
				tick, err := p.fetch(ctx, sym)
				if err != nil {
					slog.Warn("quote fetch failed", "symbol", sym, "err", err)
					continue
				}
				select {
				case out <- tick:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (p *PollSource) fetch(ctx context.Context, sym string) (model.PriceTick, error) {
	u := p.Endpoint + "?symbol=" + url.QueryEscape(sym)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.PriceTick{}, err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return model.PriceTick{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.PriceTick{}, fmt.Errorf("quote endpoint returned %d", resp.StatusCode)
	}

	var q quote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return model.PriceTick{}, fmt.Errorf("decode quote: %w", err)
	}

	ts := time.UnixMilli(q.Timestamp).UTC()
	if q.Timestamp == 0 {
		ts = time.Now().UTC()
	}
	return model.PriceTick{Symbol: sym, Timestamp: ts, Price: q.Price}, nil
}

// --- Simulated source ---

// SimulatedSource emits a bounded random walk per symbol. Used for local
// development when no quote endpoint is configured.
type SimulatedSource struct {
	Symbols    []string
	Interval   time.Duration
	StartPrice decimal.Decimal

	rng *rand.Rand
}

// NewSimulatedSource creates a simulator starting every symbol at startPrice.
func NewSimulatedSource(symbols []string, interval time.Duration, startPrice decimal.Decimal, seed int64) *SimulatedSource {
	if interval <= 0 {
		interval = time.Second
	}
	if startPrice.LessThanOrEqual(decimal.Zero) {
		startPrice = decimal.NewFromInt(100)
	}
	return &SimulatedSource{
		Symbols:    symbols,
		Interval:   interval,
		StartPrice: startPrice,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Run emits ticks until the context is cancelled.
func (s *SimulatedSource) Run(ctx context.Context, out chan<- model.PriceTick) error {
	prices := make(map[string]decimal.Decimal, len(s.Symbols))
	for _, sym := range s.Symbols {
		prices[sym] = s.StartPrice
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	floor := decimal.NewFromFloat(0.01)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, sym := range s.Symbols {
				// Step up to ±0.5% of the current price.
				pct := decimal.NewFromFloat((s.rng.Float64() - 0.5) / 100)
				next := prices[sym].Add(prices[sym].Mul(pct)).Round(4)
				if next.LessThan(floor) {
					next = floor
				}
				prices[sym] = next

				select {
				case out <- model.PriceTick{Symbol: sym, Timestamp: now.UTC(), Price: next}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
