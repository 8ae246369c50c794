// Package analysis derives scoring inputs from daily market data.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/corepipe/internal/marketdata"
	"github.com/sawpanic/corepipe/internal/scoring"
)

// Provider produces the analytical snapshot for one symbol on one date
type Provider interface {
	CandidateInput(ctx context.Context, symbol string, asOf time.Time) (scoring.CandidateInput, error)
}

// Config selects indicator periods
type Config struct {
	SMAPeriods   []int
	RSIPeriod    int
	MovePeriod   int
	Lookback     time.Duration
	MinRangeBars int
}

// DefaultConfig covers the periods the profile scorers read
func DefaultConfig() Config {
	return Config{
		SMAPeriods:   []int{20, 50, 200},
		RSIPeriod:    14,
		MovePeriod:   20,
		Lookback:     400 * 24 * time.Hour,
		MinRangeBars: 200,
	}
}

// BarsProvider computes indicators from a market data provider
type BarsProvider struct {
	config Config
	bars   marketdata.Provider
}

// NewBarsProvider creates an analysis provider over bars
func NewBarsProvider(bars marketdata.Provider, config Config) *BarsProvider {
	return &BarsProvider{config: config, bars: bars}
}

// CandidateInput implements Provider. Provider failures are returned as-is.
// Short histories leave the affected fields unset so scoring can reject them
// with a reason.
func (p *BarsProvider) CandidateInput(ctx context.Context, symbol string, asOf time.Time) (scoring.CandidateInput, error) {
	bars, err := p.bars.DailyBars(ctx, symbol, asOf.Add(-p.config.Lookback), asOf)
	if err != nil {
		return scoring.CandidateInput{}, fmt.Errorf("candidate input %s: %w", symbol, err)
	}
	in := FromBars(symbol, asOf, bars, p.config)
	log.Debug().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Float64("close", in.Close).
		Msg("Derived candidate input")
	return in, nil
}

// FromBars builds a CandidateInput from ascending bars dated on or before asOf
func FromBars(symbol string, asOf time.Time, bars []marketdata.Bar, config Config) scoring.CandidateInput {
	cutoff := asOf.Format(marketdata.DateLayout)
	n := len(bars)
	for n > 0 && bars[n-1].Date > cutoff {
		n--
	}
	bars = bars[:n]

	in := scoring.CandidateInput{Symbol: symbol, AsOf: asOf}
	if len(bars) == 0 {
		return in
	}
	closes := marketdata.Closes(bars)
	in.Close = closes[len(closes)-1]

	for _, period := range config.SMAPeriods {
		if v, err := SMA(closes, period); err == nil {
			if in.SMA == nil {
				in.SMA = make(map[int]float64, len(config.SMAPeriods))
			}
			in.SMA[period] = v
		}
	}
	if v, err := RSI(closes, config.RSIPeriod); err == nil {
		in.RSI = &v
	}
	if v, err := AvgDailyMove(closes, config.MovePeriod); err == nil {
		in.AvgDailyMove = &v
	}
	if len(bars) >= config.MinRangeBars {
		if low, high, err := Range52w(bars); err == nil {
			in.Range52w = &scoring.Range{Low: low, High: high}
		}
	}
	return in
}
