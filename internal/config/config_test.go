package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeduel/match-engine/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "simulated", cfg.Feed.Mode)
	assert.Equal(t, 2*time.Second, cfg.Feed.PollInterval.Std())
	assert.Equal(t, 256, cfg.Feed.QueueSize)
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, cfg.Symbols)
	assert.Equal(t, 30, cfg.Match.DurationMinutes)
	assert.True(t, cfg.Match.InitialBalanceDecimal().Equal(decimal.NewFromInt(10000)))
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
feed:
  quote_endpoint: "https://quotes.example.com/v1/quote"
  poll_interval: 500ms
symbols: ["SOLUSD", "ETHUSD-PERP"]
match:
  duration_minutes: 5
  initial_balance: "2500.50"
risk:
  max_position_per_symbol: "1000"
  max_order_quantity: "500"
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "poll", cfg.Feed.Mode, "endpoint configured implies poll mode")
	assert.Equal(t, 500*time.Millisecond, cfg.Feed.PollInterval.Std())
	assert.Equal(t, []string{"SOLUSD", "ETHUSD-PERP"}, cfg.Symbols)
	assert.Equal(t, 5, cfg.Match.DurationMinutes)
	assert.True(t, cfg.Match.InitialBalanceDecimal().Equal(decimal.RequireFromString("2500.50")))

	maxPos, maxOrder := cfg.Risk.Limits()
	assert.True(t, maxPos.Equal(decimal.NewFromInt(1000)))
	assert.True(t, maxOrder.Equal(decimal.NewFromInt(500)))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("DATABASE_URL", "postgres://example/db")
	t.Setenv("QUOTE_ENDPOINT", "https://quotes.example.com/v1/quote")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "postgres://example/db", cfg.DatabaseURL)
	assert.Equal(t, "poll", cfg.Feed.Mode)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not: valid"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}
