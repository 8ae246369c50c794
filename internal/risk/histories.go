package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/corepipe/internal/marketdata"
	"github.com/sawpanic/corepipe/internal/portfolio"
)

// LoadHistories fetches bars for every symbol concurrently. Any provider
// failure aborts the load so the report is never built from a partial snapshot.
func LoadHistories(ctx context.Context, bars marketdata.Provider, symbols []string, from, to time.Time, concurrency int) (map[string][]marketdata.Bar, error) {
	out := make(map[string][]marketdata.Bar, len(symbols))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		sym := sym
		g.Go(func() error {
			b, err := bars.DailyBars(ctx, sym, from, to)
			if err != nil {
				return err
			}
			mu.Lock()
			out[sym] = b
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Assess loads the open book, fetches histories for its symbols and the
// benchmark over [asOf-lookback, asOf] and computes the report.
func Assess(ctx context.Context, book portfolio.Source, bars marketdata.Provider, opts Options, asOf time.Time, lookback time.Duration, concurrency int) (Report, error) {
	trades, err := book.Trades(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load trade book: %w", err)
	}
	if len(trades) == 0 {
		return Empty(opts), nil
	}

	symbols := portfolio.Symbols(trades)
	if opts.Benchmark != "" {
		symbols = append(symbols, opts.Benchmark)
	}
	histories, err := LoadHistories(ctx, bars, symbols, asOf.Add(-lookback), asOf, concurrency)
	if err != nil {
		return Report{}, fmt.Errorf("load histories: %w", err)
	}

	report := Compute(trades, histories, opts)
	log.Info().
		Int("holdings", report.Holdings).
		Float64("total_value", report.TotalValue).
		Float64("var_pct", report.VaR1DayPct).
		Str("level", string(report.Level)).
		Msg("Risk report computed")
	return report, nil
}
