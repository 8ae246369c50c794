package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/sawpanic/corepipe/internal/marketdata"
)

// ProviderConfig configures the market data provider
type ProviderConfig struct {
	Name      string        `yaml:"name"` // stooq
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	RPS       float64       `yaml:"rps"`   // Requests per second
	Burst     int           `yaml:"burst"` // Burst capacity
	TimeoutMS int           `yaml:"timeout_ms"`
	Retries   int           `yaml:"retries"`
	BackoffMS BackoffConfig `yaml:"backoff_ms"`
	Circuit   CircuitConfig `yaml:"circuit"`
}

// BackoffConfig is the retry backoff
type BackoffConfig struct {
	Base int `yaml:"base"` // Base backoff in milliseconds, doubled per retry
}

// CircuitConfig is the circuit breaker configuration
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold"` // Consecutive failures to open circuit
	OpenMS           int `yaml:"open_ms"`           // Time in open state before probing
}

// DefaultProviderConfig mirrors marketdata.DefaultStooqConfig
func DefaultProviderConfig() ProviderConfig {
	d := marketdata.DefaultStooqConfig()
	return ProviderConfig{
		Name:      "stooq",
		BaseURL:   d.BaseURL,
		UserAgent: d.UserAgent,
		RPS:       d.RPS,
		Burst:     d.Burst,
		TimeoutMS: int(d.RequestTimeout / time.Millisecond),
		Retries:   d.MaxRetries,
		BackoffMS: BackoffConfig{Base: int(d.BackoffBase / time.Millisecond)},
		Circuit: CircuitConfig{
			FailureThreshold: int(d.BreakerFailures),
			OpenMS:           int(d.BreakerTimeout / time.Millisecond),
		},
	}
}

// Validate ensures the provider configuration is usable
func (p *ProviderConfig) Validate() error {
	if p.Name != "stooq" {
		return fmt.Errorf("unsupported provider %q", p.Name)
	}
	if u, err := url.Parse(p.BaseURL); err != nil || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", p.BaseURL)
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %v", p.RPS)
	}
	if p.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", p.Burst)
	}
	if p.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", p.TimeoutMS)
	}
	if p.Retries < 0 {
		return fmt.Errorf("retries cannot be negative, got %d", p.Retries)
	}
	if p.BackoffMS.Base <= 0 {
		return fmt.Errorf("backoff_ms.base must be positive, got %d", p.BackoffMS.Base)
	}
	if p.Circuit.FailureThreshold <= 0 {
		return fmt.Errorf("circuit.failure_threshold must be positive, got %d", p.Circuit.FailureThreshold)
	}
	if p.Circuit.OpenMS <= 0 {
		return fmt.Errorf("circuit.open_ms must be positive, got %d", p.Circuit.OpenMS)
	}
	return nil
}

// Stooq converts to the provider's runtime configuration
func (p *ProviderConfig) Stooq() marketdata.StooqConfig {
	return marketdata.StooqConfig{
		BaseURL:         p.BaseURL,
		UserAgent:       p.UserAgent,
		RequestTimeout:  time.Duration(p.TimeoutMS) * time.Millisecond,
		RPS:             p.RPS,
		Burst:           p.Burst,
		MaxRetries:      p.Retries,
		BackoffBase:     time.Duration(p.BackoffMS.Base) * time.Millisecond,
		BreakerFailures: uint32(p.Circuit.FailureThreshold),
		BreakerTimeout:  time.Duration(p.Circuit.OpenMS) * time.Millisecond,
	}
}
