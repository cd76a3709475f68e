// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env" env:"TRENCH_ENV"`
	MetricsAddr string `yaml:"metrics_addr" env:"TRENCH_METRICS_ADDR"`
	LogLevel    string `yaml:"log_level" env:"TRENCH_LOG_LEVEL"`
}

// Market tunes the simulated price path and the session clock.
type Market struct {
	InitialPrice     float64 `yaml:"initial_price"`
	BaseVolatility   float64 `yaml:"base_volatility" env:"TRENCH_BASE_VOLATILITY"`
	SpikeThreshold   float64 `yaml:"spike_threshold"`
	SpikeRange       float64 `yaml:"spike_range"`
	MinPrice         float64 `yaml:"min_price"`
	HistorySize      int     `yaml:"history_size"`
	TickIntervalMs   int     `yaml:"tick_interval_ms" env:"TRENCH_TICK_INTERVAL_MS"`
	RedrawIntervalMs int     `yaml:"redraw_interval_ms"`
	Seed             int64   `yaml:"seed" env:"TRENCH_SEED"`
}

// Paper captures paper-trading account settings such as starting cash and the trade export path.
type Paper struct {
	StartingCash     float64 `yaml:"starting_cash" env:"TRENCH_STARTING_CASH"`
	DefaultBuyAmount float64 `yaml:"default_buy_amount"`
	TradesPath       string  `yaml:"trades_path" env:"TRENCH_TRADES_PATH"`
}

// Risk encodes guard-rails for how much size a single order may take on.
type Risk struct {
	MaxAmountPerTrade float64 `yaml:"max_amount_per_trade"`
}

// Leaderboard configures where player scores are kept.
type Leaderboard struct {
	Enabled      bool   `yaml:"enabled" env:"TRENCH_LEADERBOARD_ENABLED"`
	DSN          string `yaml:"dsn" env:"TRENCH_LEADERBOARD_DSN"`
	Username     string `yaml:"username" env:"TRENCH_USERNAME"`
	TopN         int    `yaml:"top_n"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs"`
}

// DexScreener configures the HTTP polling feed targeting Dexscreener pairs.
type DexScreener struct {
	BaseURL      string `yaml:"base_url"`
	DefaultChain string `yaml:"default_chain"`
}

// Ticker configures the decorative real-world price ticker.
type Ticker struct {
	Enabled        bool        `yaml:"enabled" env:"TRENCH_TICKER_ENABLED"`
	Provider       string      `yaml:"provider" env:"TRENCH_TICKER_PROVIDER"`
	Symbols        []string    `yaml:"symbols" env:"TRENCH_TICKER_SYMBOLS" envSeparator:","`
	PollIntervalMs int         `yaml:"poll_interval_ms"`
	RequestsPerSec float64     `yaml:"requests_per_sec"`
	DexScreener    DexScreener `yaml:"dexscreener"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App         App         `yaml:"app"`
	Market      Market      `yaml:"market"`
	Paper       Paper       `yaml:"paper"`
	Risk        Risk        `yaml:"risk"`
	Leaderboard Leaderboard `yaml:"leaderboard"`
	Ticker      Ticker      `yaml:"ticker"`
}

// Default returns the reference configuration: 200 cash, price 100, 500 ms ticks, 200 candle window.
func Default() *Config {
	cfg := &Config{}
	setPresets(cfg)
	setDefaults(cfg)
	return cfg
}

// Load reads a YAML file from disk, then applies a .env file and TRENCH_*
// environment overrides, then fills defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var config Config
	setPresets(&config)
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	setDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects values the session cannot run with.
func (c *Config) Validate() error {
	if c.Paper.StartingCash < 0 {
		return errors.New("paper.starting_cash must not be negative")
	}
	if c.Market.InitialPrice < c.Market.MinPrice {
		return fmt.Errorf("market.initial_price %.2f below min_price %.2f", c.Market.InitialPrice, c.Market.MinPrice)
	}
	if c.Market.SpikeThreshold >= 1 {
		return errors.New("market.spike_threshold must be below 1")
	}
	if c.Risk.MaxAmountPerTrade < 0 {
		return errors.New("risk.max_amount_per_trade must not be negative")
	}
	return nil
}

// TickInterval returns the candle cadence.
func (m Market) TickInterval() time.Duration {
	return time.Duration(m.TickIntervalMs) * time.Millisecond
}

// RedrawInterval returns the render cadence; zero disables periodic redraws.
func (m Market) RedrawInterval() time.Duration {
	return time.Duration(m.RedrawIntervalMs) * time.Millisecond
}

// PollInterval returns the ticker polling cadence for HTTP providers.
func (t Ticker) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMs) * time.Millisecond
}

// CacheTTL returns how long leaderboard reads are cached.
func (l Leaderboard) CacheTTL() time.Duration {
	return time.Duration(l.CacheTTLSecs) * time.Second
}

// setPresets fills fields where zero is a meaningful setting. It runs before
// decoding so only keys absent from the file and environment keep the preset.
func setPresets(cfg *Config) {
	cfg.Market.SpikeRange = 2
}

// setDefaults replaces zero values the session cannot run with.
func setDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "trench-simulator"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.Market.InitialPrice == 0 {
		cfg.Market.InitialPrice = 100
	}
	if cfg.Market.BaseVolatility == 0 {
		cfg.Market.BaseVolatility = 8
	}
	if cfg.Market.SpikeThreshold == 0 {
		cfg.Market.SpikeThreshold = 0.9
	}
	if cfg.Market.MinPrice == 0 {
		cfg.Market.MinPrice = 1
	}
	if cfg.Market.HistorySize == 0 {
		cfg.Market.HistorySize = 200
	}
	if cfg.Market.TickIntervalMs == 0 {
		cfg.Market.TickIntervalMs = 500
	}
	if cfg.Paper.StartingCash == 0 {
		cfg.Paper.StartingCash = 200
	}
	if cfg.Paper.DefaultBuyAmount == 0 {
		cfg.Paper.DefaultBuyAmount = 50
	}
	if cfg.Leaderboard.DSN == "" {
		cfg.Leaderboard.DSN = "data/leaderboard.db"
	}
	if cfg.Leaderboard.TopN == 0 {
		cfg.Leaderboard.TopN = 10
	}
	if cfg.Leaderboard.CacheTTLSecs == 0 {
		cfg.Leaderboard.CacheTTLSecs = 30
	}
	if cfg.Ticker.Provider == "" {
		cfg.Ticker.Provider = "stub"
	}
	if cfg.Ticker.PollIntervalMs == 0 {
		cfg.Ticker.PollIntervalMs = 2000
	}
	if cfg.Ticker.RequestsPerSec == 0 {
		cfg.Ticker.RequestsPerSec = 2
	}
	if cfg.Ticker.DexScreener.BaseURL == "" {
		cfg.Ticker.DexScreener.BaseURL = "https://api.dexscreener.com"
	}
}
