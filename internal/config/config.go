// Package config loads corepipe configuration from YAML, the environment and
// command-line flags, and validates it before any component is built.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/corepipe/internal/analysis"
	"github.com/sawpanic/corepipe/internal/cache"
	"github.com/sawpanic/corepipe/internal/mode"
	"github.com/sawpanic/corepipe/internal/risk"
	"github.com/sawpanic/corepipe/internal/slots"
)

// DefaultPath is read when no --config flag is given and the file exists
const DefaultPath = "config/corepipe.yaml"

// Environment overrides
const (
	EnvMode        = "COREPIPE_MODE"
	EnvRedisAddr   = "COREPIPE_REDIS_ADDR"
	EnvDatabaseURL = "COREPIPE_DATABASE_URL"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete corepipe configuration
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Mode      ModeConfig      `yaml:"mode"`
	Slots     SlotsConfig     `yaml:"slots"`
	Universe  []string        `yaml:"universe"`
	Rules     RulesConfig     `yaml:"rules"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Provider  ProviderConfig  `yaml:"provider"`
	Cache     CacheConfig     `yaml:"cache"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Risk      RiskConfig      `yaml:"risk"`
	Server    ServerConfig    `yaml:"server"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

// ModeConfig selects the safety gate
type ModeConfig struct {
	Mode                     string `yaml:"mode"`
	RequireConfirmFirstEnter bool   `yaml:"require_confirm_first_enter"`
}

// SlotsConfig bounds the allocator
type SlotsConfig struct {
	MaxSlots       int     `yaml:"max_slots"`
	DedupeBySymbol bool    `yaml:"dedupe_by_symbol"`
	PositionValue  float64 `yaml:"position_value"` // notional of a recorded PAPER entry
}

// RulesConfig holds action rule thresholds
type RulesConfig struct {
	MinEnterScore       float64 `yaml:"min_enter_score"`
	BreakevenTriggerPct float64 `yaml:"breakeven_trigger_pct"`
	Placeholder         bool    `yaml:"placeholder"`
}

// AnalysisConfig selects indicator periods
type AnalysisConfig struct {
	SMAPeriods   []int `yaml:"sma_periods"`
	RSIPeriod    int   `yaml:"rsi_period"`
	MovePeriod   int   `yaml:"move_period"`
	LookbackDays int   `yaml:"lookback_days"`
	MinRangeBars int   `yaml:"min_range_bars"`
	Concurrency  int   `yaml:"concurrency"`
}

// CacheConfig selects the cycle cache backend
type CacheConfig struct {
	Backend string            `yaml:"backend"` // memory or redis
	Redis   cache.RedisConfig `yaml:"redis"`
}

// PortfolioConfig selects the trade book source
type PortfolioConfig struct {
	Source         string `yaml:"source"` // file, legacy or postgres
	Path           string `yaml:"path"`
	DatabaseURL    string `yaml:"database_url"`
	QueryTimeoutMS int    `yaml:"query_timeout_ms"`
}

// RiskConfig holds risk model thresholds and the history window
type RiskConfig struct {
	risk.Options `yaml:",inline"`
	HistoryDays  int `yaml:"history_days"`
}

// ServerConfig configures the read-only HTTP API
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
}

// ScheduleConfig configures the cron-driven daily cycle
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// Default returns a READONLY configuration with in-memory cache and a file book
func Default() Config {
	ac := analysis.DefaultConfig()
	return Config{
		LogLevel: "info",
		Mode: ModeConfig{
			Mode:                     string(mode.ReadOnly),
			RequireConfirmFirstEnter: true,
		},
		Slots: SlotsConfig{MaxSlots: slots.DefaultMaxSlots, PositionValue: 10000},
		Rules: RulesConfig{MinEnterScore: 70, BreakevenTriggerPct: 8},
		Analysis: AnalysisConfig{
			SMAPeriods:   ac.SMAPeriods,
			RSIPeriod:    ac.RSIPeriod,
			MovePeriod:   ac.MovePeriod,
			LookbackDays: int(ac.Lookback / (24 * time.Hour)),
			MinRangeBars: ac.MinRangeBars,
			Concurrency:  4,
		},
		Provider: DefaultProviderConfig(),
		Cache:    CacheConfig{Backend: "memory", Redis: cache.RedisConfig{Addr: "localhost:6379"}},
		Portfolio: PortfolioConfig{
			Source:         "file",
			Path:           "data/core_book.yaml",
			QueryTimeoutMS: 5000,
		},
		Risk:     RiskConfig{Options: risk.DefaultOptions(), HistoryDays: 365},
		Server:   ServerConfig{Addr: ":8080", ReadTimeoutMS: 10000, WriteTimeoutMS: 30000},
		Schedule: ScheduleConfig{Cron: "30 17 * * 1-5", Timezone: "Europe/Oslo"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from the environment. A Redis address switches the
// cache to Redis and a database URL switches the book to PostgreSQL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvMode); ok && v != "" {
		c.Mode.Mode = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Cache.Backend = "redis"
		c.Cache.Redis.Addr = v
	}
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		c.Portfolio.Source = "postgres"
		c.Portfolio.DatabaseURL = v
	}
}

// Validate fails fast on configuration errors
func (c *Config) Validate() error {
	if _, err := c.Gate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := slots.Init(c.Slots.MaxSlots); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for i, s := range c.Universe {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: universe entry %d is empty", ErrInvalidConfig, i)
		}
	}
	if c.Rules.MinEnterScore < 0 || c.Rules.MinEnterScore > 100 {
		return fmt.Errorf("%w: rules.min_enter_score must be within [0,100], got %v", ErrInvalidConfig, c.Rules.MinEnterScore)
	}
	if c.Rules.BreakevenTriggerPct <= 0 {
		return fmt.Errorf("%w: rules.breakeven_trigger_pct must be positive", ErrInvalidConfig)
	}
	if err := c.validateAnalysis(); err != nil {
		return fmt.Errorf("%w: analysis: %v", ErrInvalidConfig, err)
	}
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("%w: provider: %v", ErrInvalidConfig, err)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("%w: cache.redis.addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: cache.backend must be memory or redis, got %q", ErrInvalidConfig, c.Cache.Backend)
	}

	if c.Slots.PositionValue < 0 {
		return fmt.Errorf("%w: slots.position_value must not be negative", ErrInvalidConfig)
	}

	switch c.Portfolio.Source {
	case "file", "legacy":
		if c.Portfolio.Path == "" {
			return fmt.Errorf("%w: portfolio.path is required for the %s source", ErrInvalidConfig, c.Portfolio.Source)
		}
	case "postgres":
		if c.Portfolio.DatabaseURL == "" {
			return fmt.Errorf("%w: portfolio.database_url is required for the postgres source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: portfolio.source must be file, legacy or postgres, got %q", ErrInvalidConfig, c.Portfolio.Source)
	}

	if c.Risk.Confidence <= 0 || c.Risk.Confidence >= 1 {
		return fmt.Errorf("%w: risk.confidence must be within (0,1)", ErrInvalidConfig)
	}
	if c.Risk.SectorMedium <= 0 || c.Risk.SectorHigh <= c.Risk.SectorMedium {
		return fmt.Errorf("%w: risk sector bands must satisfy 0 < medium < high", ErrInvalidConfig)
	}
	if c.Risk.TradingDays <= 0 || c.Risk.HistoryDays <= 0 {
		return fmt.Errorf("%w: risk.trading_days and risk.history_days must be positive", ErrInvalidConfig)
	}

	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("%w: schedule.cron: %v", ErrInvalidConfig, err)
		}
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("%w: schedule.timezone: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if len(a.SMAPeriods) == 0 {
		return errors.New("sma_periods cannot be empty")
	}
	for _, p := range a.SMAPeriods {
		if p <= 0 {
			return fmt.Errorf("sma period must be positive, got %d", p)
		}
	}
	if a.RSIPeriod <= 0 || a.MovePeriod <= 0 || a.LookbackDays <= 0 {
		return errors.New("rsi_period, move_period and lookback_days must be positive")
	}
	if a.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", a.Concurrency)
	}
	return nil
}

// Gate returns the parsed mode gate configuration
func (c *Config) Gate() (mode.Config, error) {
	m, err := mode.Parse(c.Mode.Mode)
	if err != nil {
		return mode.Config{}, err
	}
	return mode.Config{Mode: m, RequireConfirmFirstEnter: c.Mode.RequireConfirmFirstEnter}, nil
}

// AnalysisOptions converts to the analysis package configuration
func (c *Config) AnalysisOptions() analysis.Config {
	return analysis.Config{
		SMAPeriods:   append([]int(nil), c.Analysis.SMAPeriods...),
		RSIPeriod:    c.Analysis.RSIPeriod,
		MovePeriod:   c.Analysis.MovePeriod,
		Lookback:     time.Duration(c.Analysis.LookbackDays) * 24 * time.Hour,
		MinRangeBars: c.Analysis.MinRangeBars,
	}
}

// QueryTimeout is the per-query PostgreSQL timeout
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Portfolio.QueryTimeoutMS) * time.Millisecond
}
