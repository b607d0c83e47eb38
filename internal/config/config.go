// Package config loads the service configuration from an optional YAML
// file with environment-variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

/*
YAML config example:

port: "8080"
database_url: "postgres://..."
redis_url: "redis://..."
feed:
  mode: "poll"            # poll | simulated
  quote_endpoint: "https://quotes.example.com/v1/quote"
  poll_interval: 2s
  queue_size: 256
symbols: ["BTCUSD", "ETHUSD", "ETHUSD-PERP"]
match:
  duration_minutes: 30
  initial_balance: "10000"
risk:
  max_position_per_symbol: "1000"
  max_order_quantity: "500"
*/

// Duration wraps time.Duration so YAML values like "500ms" or "2s" parse;
// yaml.v3 has no native handling for duration strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// FeedConfig configures the price feed.
type FeedConfig struct {
	Mode          string   `yaml:"mode"`
	QuoteEndpoint string   `yaml:"quote_endpoint"`
	PollInterval  Duration `yaml:"poll_interval"`
	QueueSize     int      `yaml:"queue_size"`
}

// MatchConfig holds the defaults applied to match creation. Money values
// are YAML strings: decimal.Decimal has no YAML unmarshaller.
type MatchConfig struct {
	DurationMinutes int    `yaml:"duration_minutes"`
	InitialBalance  string `yaml:"initial_balance"`
}

// InitialBalanceDecimal parses the configured initial balance.
func (m MatchConfig) InitialBalanceDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(m.InitialBalance)
	if err != nil {
		return decimal.NewFromInt(10000)
	}
	return d
}

// RiskConfig holds position and order size caps. Zero disables a cap.
type RiskConfig struct {
	MaxPositionPerSymbol string `yaml:"max_position_per_symbol"`
	MaxOrderQuantity     string `yaml:"max_order_quantity"`
}

// Limits parses the configured caps; unset or invalid values disable the
// corresponding cap.
func (r RiskConfig) Limits() (maxPosition, maxOrder decimal.Decimal) {
	maxPosition, _ = decimal.NewFromString(r.MaxPositionPerSymbol)
	maxOrder, _ = decimal.NewFromString(r.MaxOrderQuantity)
	return maxPosition, maxOrder
}

// Config is the full service configuration.
type Config struct {
	Port        string      `yaml:"port"`
	DatabaseURL string      `yaml:"database_url"`
	RedisURL    string      `yaml:"redis_url"`
	Feed        FeedConfig  `yaml:"feed"`
	Symbols     []string    `yaml:"symbols"`
	Match       MatchConfig `yaml:"match"`
	Risk        RiskConfig  `yaml:"risk"`
}

// Load reads the config file at path (skipped when path is empty or the
// file does not exist), applies env overrides, then defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// Env overrides for deployment settings.
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("QUOTE_ENDPOINT"); v != "" {
		cfg.Feed.QuoteEndpoint = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.Feed.Mode == "" {
		if c.Feed.QuoteEndpoint != "" {
			c.Feed.Mode = "poll"
		} else {
			c.Feed.Mode = "simulated"
		}
	}
	if c.Feed.PollInterval <= 0 {
		c.Feed.PollInterval = Duration(2 * time.Second)
	}
	if c.Feed.QueueSize <= 0 {
		c.Feed.QueueSize = 256
	}
	if len(c.Symbols) == 0 {
		c.Symbols = []string{"BTCUSD", "ETHUSD"}
	}
	if c.Match.DurationMinutes <= 0 {
		c.Match.DurationMinutes = 30
	}
	if c.Match.InitialBalance == "" {
		c.Match.InitialBalance = "10000"
	}
}
