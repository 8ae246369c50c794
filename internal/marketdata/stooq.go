package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// StooqConfig configures the Stooq CSV provider
type StooqConfig struct {
	BaseURL         string
	UserAgent       string
	RequestTimeout  time.Duration
	RPS             float64
	Burst           int
	MaxRetries      int
	BackoffBase     time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultStooqConfig returns conservative defaults for the public endpoint
func DefaultStooqConfig() StooqConfig {
	return StooqConfig{
		BaseURL:         "https://stooq.com/q/d/l/",
		UserAgent:       "corepipe/1.0",
		RequestTimeout:  15 * time.Second,
		RPS:             2,
		Burst:           2,
		MaxRetries:      2,
		BackoffBase:     500 * time.Millisecond,
		BreakerFailures: 5,
		BreakerTimeout:  60 * time.Second,
	}
}

// Stooq fetches daily bars from the Stooq CSV download endpoint
type Stooq struct {
	config  StooqConfig
	client  *http.Client
	limiter *HostLimiter
	breaker *gobreaker.CircuitBreaker
	host    string
}

// NewStooq creates the provider. The breaker opens after BreakerFailures
// consecutive failed fetches and retries once BreakerTimeout has passed.
func NewStooq(config StooqConfig) (*Stooq, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("stooq base url %q: invalid", config.BaseURL)
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = 5
	}

	s := &Stooq{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		limiter: NewHostLimiter(config.RPS, config.Burst),
		host:    u.Host,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stooq",
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})
	return s, nil
}

// Name implements Provider
func (s *Stooq) Name() string { return "stooq" }

// BreakerState reports the circuit breaker state
func (s *Stooq) BreakerState() string {
	return s.breaker.State().String()
}

// StooqSymbol maps a listing symbol to Stooq's notation (NHY.OL -> nhy.no)
func StooqSymbol(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, ".ol") {
		s = strings.TrimSuffix(s, ".ol") + ".no"
	}
	return s
}

// DailyBars implements Provider
func (s *Stooq) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx, symbol, from, to)
	})
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Symbol: symbol, Err: err}
	}
	return result.([]Bar), nil
}

func (s *Stooq) fetch(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	q := url.Values{}
	q.Set("s", StooqSymbol(symbol))
	q.Set("d1", from.Format("20060102"))
	q.Set("d2", to.Format("20060102"))
	q.Set("i", "d")
	endpoint := s.config.BaseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.config.BackoffBase * time.Duration(1<<uint(attempt-1))
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("symbol", symbol).
				Msg("Retrying Stooq request")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := s.limiter.Wait(ctx, s.host); err != nil {
			return nil, err
		}

		body, status, err := s.get(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("stooq HTTP %d", status)
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("stooq HTTP %d", status)
		}
		return ParseStooqCSV(body)
	}
	return nil, lastErr
}

func (s *Stooq) get(ctx context.Context, endpoint string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(data), resp.StatusCode, nil
}

var errNoHeader = errors.New("missing CSV header")

// ParseStooqCSV parses a Date,Open,High,Low,Close[,Volume] download. A body
// without data rows (Stooq answers "No data") is an empty result. Rows with
// blank price fields are skipped, malformed numbers are errors.
func ParseStooqCSV(body string) ([]Bar, error) {
	body = strings.TrimSpace(body)
	if body == "" || !strings.Contains(body, "\n") {
		return []Bar{}, nil
	}

	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stooq csv: %w", err)
	}
	if len(rows) == 0 || !strings.EqualFold(rows[0][0], "date") {
		return nil, errNoHeader
	}

	bars := make([]Bar, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 5 || row[0] == "" || row[1] == "" || row[2] == "" || row[3] == "" || row[4] == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, row[0]); err != nil {
			return nil, fmt.Errorf("row %d: date %q: %w", i+1, row[0], err)
		}
		var vals [4]float64
		for j := 0; j < 4; j++ {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %d: %w", i+1, j+1, err)
			}
			vals[j] = v
		}
		bar := Bar{Date: row[0], Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}
		if len(row) > 5 && row[5] != "" {
			if v, err := strconv.ParseFloat(row[5], 64); err == nil {
				bar.Volume = &v
			}
		}
		bars = append(bars, bar)
	}
	SortBars(bars)
	return bars, nil
}
