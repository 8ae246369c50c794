// Package marketdata supplies ascending daily bars for a symbol.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the bar date format
const DateLayout = "2006-01-02"

// ErrProvider marks transport and parse failures. An empty result is not an error.
var ErrProvider = errors.New("market data provider failure")

// Bar is one daily OHLC bar. Volume is optional.
type Bar struct {
	Date   string   `json:"date"` // YYYY-MM-DD
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// Provider returns bars between from and to inclusive, oldest first
type Provider interface {
	Name() string
	DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
}

// ProviderError wraps a collaborator failure with the provider and symbol
type ProviderError struct {
	Provider string
	Symbol   string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Symbol, e.Err)
}

// Unwrap exposes both the cause and ErrProvider to errors.Is
func (e *ProviderError) Unwrap() []error {
	return []error{ErrProvider, e.Err}
}

// Closes extracts closing prices in bar order
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SortBars orders bars oldest first
func SortBars(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
}

// Static serves fixed bars per symbol. Unknown symbols return an empty result.
type Static struct {
	Bars map[string][]Bar
}

// Name implements Provider
func (s *Static) Name() string { return "static" }

// DailyBars implements Provider
func (s *Static) DailyBars(_ context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	lo, hi := from.Format(DateLayout), to.Format(DateLayout)
	var out []Bar
	for _, b := range s.Bars[symbol] {
		if b.Date >= lo && b.Date <= hi {
			out = append(out, b)
		}
	}
	SortBars(out)
	return out, nil
}
