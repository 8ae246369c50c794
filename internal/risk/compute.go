package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/corepipe/internal/marketdata"
	"github.com/sawpanic/corepipe/internal/portfolio"
)

// minVolatility treats numerically flat return series as zero volatility
const minVolatility = 1e-12

type position struct {
	symbol   string
	sector   string
	quantity float64
	invested float64
	price    float64
	value    float64
	beta     float64
	closes   map[string]float64
}

// Compute builds the risk report for trades using histories keyed by symbol.
// Holdings without history are valued at their average entry price and
// contribute a constant value to the equity curve. An empty book yields
// Empty(opts).
func Compute(trades []portfolio.Trade, histories map[string][]marketdata.Bar, opts Options) Report {
	if len(trades) == 0 {
		return Empty(opts)
	}

	positions := aggregate(trades, histories, opts)
	r := Empty(opts)
	r.Holdings = len(positions)
	for _, p := range positions {
		r.TotalInvested += p.invested
		r.TotalValue += p.value
	}
	r.UnrealizedPnL = r.TotalValue - r.TotalInvested
	if r.TotalInvested > 0 {
		r.UnrealizedPnLPct = r.UnrealizedPnL / r.TotalInvested * 100
	}

	bench := closeSeries(histories[opts.Benchmark])
	for _, p := range positions {
		p.beta = holdingBeta(p.closes, bench, opts.MarketDailyVol)
		if r.TotalValue > 0 {
			r.Beta += p.value / r.TotalValue * p.beta
		}
	}

	returns := portfolioReturns(positions)
	curve := equityCurve(positions)
	r.MaxDrawdown = maxDrawdown(curve)
	r.VaR1DayPct = historicalVaR(returns, opts.Confidence) * 100
	r.VaR1Day = r.VaR1DayPct / 100 * r.TotalValue
	r.Sharpe, r.SharpeDefined = sharpe(returns, opts)

	r.Sectors = sectorWeights(positions, r.TotalValue, opts)
	r.TopHoldings = topHoldings(positions, r.TotalValue, opts.TopN)
	r.CorrelatedPairs = correlatedPairs(positions, opts)

	assess(&r, positions, opts)
	return r
}

func aggregate(trades []portfolio.Trade, histories map[string][]marketdata.Bar, opts Options) []*position {
	bySymbol := make(map[string]*position)
	var ordered []*position
	for _, t := range trades {
		p, ok := bySymbol[t.Symbol]
		if !ok {
			p = &position{symbol: t.Symbol, closes: closeSeries(histories[t.Symbol])}
			bySymbol[t.Symbol] = p
			ordered = append(ordered, p)
		}
		p.quantity += t.Quantity
		p.invested += t.EntryPrice * t.Quantity
		if p.sector == "" {
			p.sector = t.Sector
		}
	}

	for _, p := range ordered {
		if p.sector == "" {
			p.sector = opts.UnknownSector
		}
		p.price = lastClose(histories[p.symbol])
		if p.price <= 0 && p.quantity > 0 {
			p.price = p.invested / p.quantity
		}
		p.value = p.price * p.quantity
	}
	return ordered
}

func lastClose(bars []marketdata.Bar) float64 {
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Close > 0 {
			return bars[i].Close
		}
	}
	return 0
}

func closeSeries(bars []marketdata.Bar) map[string]float64 {
	out := make(map[string]float64, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			out[b.Date] = b.Close
		}
	}
	return out
}

func commonDates(series ...map[string]float64) []string {
	if len(series) == 0 {
		return nil
	}
	var dates []string
	for d := range series[0] {
		shared := true
		for _, s := range series[1:] {
			if _, ok := s[d]; !ok {
				shared = false
				break
			}
		}
		if shared {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	return dates
}

// alignedReturns returns simple returns of a and b over their shared dates
func alignedReturns(a, b map[string]float64) (ra, rb []float64) {
	dates := commonDates(a, b)
	for i := 1; i < len(dates); i++ {
		prev, cur := dates[i-1], dates[i]
		ra = append(ra, a[cur]/a[prev]-1)
		rb = append(rb, b[cur]/b[prev]-1)
	}
	return ra, rb
}

// holdingBeta is cov/var against the benchmark. Without two aligned
// benchmark returns it falls back to the holding's volatility relative to
// marketVol, and to 1 when that is unknown too.
func holdingBeta(closes, bench map[string]float64, marketVol float64) float64 {
	if len(bench) > 0 {
		ra, rb := alignedReturns(closes, bench)
		if len(rb) >= 2 {
			v := stat.Variance(rb, nil)
			if v < minVolatility*minVolatility {
				return 1
			}
			return stat.Covariance(ra, rb, nil) / v
		}
	}
	own, _ := alignedReturns(closes, closes)
	if len(own) < 2 || marketVol <= 0 {
		return 1
	}
	return stat.StdDev(own, nil) / marketVol
}

func equityCurve(positions []*position) []float64 {
	var series []map[string]float64
	constant := 0.0
	for _, p := range positions {
		if len(p.closes) > 0 {
			series = append(series, p.closes)
		} else {
			constant += p.value
		}
	}
	if len(series) == 0 {
		return nil
	}

	dates := commonDates(series...)
	curve := make([]float64, 0, len(dates))
	for _, d := range dates {
		e := constant
		for _, p := range positions {
			if len(p.closes) > 0 {
				e += p.quantity * p.closes[d]
			}
		}
		curve = append(curve, e)
	}
	return curve
}

func portfolioReturns(positions []*position) []float64 {
	curve := equityCurve(positions)
	var out []float64
	for i := 1; i < len(curve); i++ {
		if curve[i-1] > 0 {
			out = append(out, curve[i]/curve[i-1]-1)
		}
	}
	return out
}

// maxDrawdown is the largest peak-to-trough decline in percent of the peak
func maxDrawdown(curve []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, e := range curve {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (peak - e) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

// historicalVaR is the one-day loss fraction at the confidence level
func historicalVaR(returns []float64, confidence float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	q := stat.Quantile(1-confidence, stat.Empirical, sorted, nil)
	if q >= 0 {
		return 0
	}
	return -q
}

func sharpe(returns []float64, opts Options) (float64, bool) {
	if len(returns) < 2 {
		return 0, false
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std < minVolatility || math.IsNaN(std) {
		return 0, false
	}
	days := float64(opts.TradingDays)
	excess := mean - opts.RiskFreeAnnual/days
	return excess / std * math.Sqrt(days), true
}

func band(weight float64, opts Options) Band {
	switch {
	case weight > opts.SectorHigh:
		return BandHigh
	case weight > opts.SectorMedium:
		return BandMedium
	default:
		return BandLow
	}
}

func sectorWeights(positions []*position, total float64, opts Options) []SectorWeight {
	values := make(map[string]float64)
	var order []string
	for _, p := range positions {
		if _, ok := values[p.sector]; !ok {
			order = append(order, p.sector)
		}
		values[p.sector] += p.value
	}

	out := make([]SectorWeight, 0, len(order))
	for _, s := range order {
		w := 0.0
		if total > 0 {
			w = values[s] / total
		}
		out = append(out, SectorWeight{Sector: s, Weight: w, Value: values[s], Risk: band(w, opts)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

func topHoldings(positions []*position, total float64, n int) []HoldingWeight {
	out := make([]HoldingWeight, 0, len(positions))
	for _, p := range positions {
		w := 0.0
		if total > 0 {
			w = p.value / total
		}
		out = append(out, HoldingWeight{Symbol: p.symbol, Weight: w, Value: p.value, Beta: p.beta})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func correlatedPairs(positions []*position, opts Options) []Pair {
	out := []Pair{}
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			ra, rb := alignedReturns(positions[i].closes, positions[j].closes)
			if len(ra) < 3 {
				continue
			}
			c := stat.Correlation(ra, rb, nil)
			if math.IsNaN(c) || c <= opts.CorrelationThreshold {
				continue
			}
			out = append(out, Pair{A: positions[i].symbol, B: positions[j].symbol, Correlation: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Correlation > out[j].Correlation })
	if opts.MaxPairs > 0 && len(out) > opts.MaxPairs {
		out = out[:opts.MaxPairs]
	}
	return out
}

// assess scores threshold breaches into the overall level and text
func assess(r *Report, positions []*position, opts Options) {
	score := 0

	switch {
	case r.Beta > 1.3:
		score += 2
		r.Warnings = append(r.Warnings, fmt.Sprintf("High portfolio beta (%.2f), more volatile than the benchmark", r.Beta))
	case r.Beta > 1.1:
		score++
	}

	switch {
	case r.VaR1DayPct > 3:
		score += 2
		r.Warnings = append(r.Warnings, fmt.Sprintf("One-day VaR at %.0f%% is %.1f%% of portfolio value", opts.Confidence*100, r.VaR1DayPct))
	case r.VaR1DayPct > 2:
		score++
	}

	var high []string
	for _, s := range r.Sectors {
		if s.Risk == BandHigh {
			high = append(high, s.Sector)
		}
	}
	if len(high) > 0 {
		score += 2
		r.Warnings = append(r.Warnings, "High concentration in "+strings.Join(high, ", "))
		r.Suggestions = append(r.Suggestions, "Consider diversifying into other sectors")
	}

	var large []string
	for _, h := range r.TopHoldings {
		if h.Weight > opts.LargePosition {
			large = append(large, fmt.Sprintf("%s (%.1f%%)", h.Symbol, h.Weight*100))
		}
	}
	if len(large) > 0 {
		r.Warnings = append(r.Warnings, "Large single positions: "+strings.Join(large, ", "))
	}
	if len(large) > 2 {
		score++
	}

	if len(r.CorrelatedPairs) > 0 {
		score++
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d highly correlated pairs", len(r.CorrelatedPairs)))
		r.Suggestions = append(r.Suggestions, "Diversify across sectors to reduce correlated risk")
	}

	if len(positions) < opts.MinDiversification {
		r.Suggestions = append(r.Suggestions, "Consider more positions for better diversification")
	}
	if r.SharpeDefined && r.Sharpe < 0.5 && r.UnrealizedPnL > 0 {
		r.Suggestions = append(r.Suggestions, "Returns do not fully compensate for the risk taken")
	}

	r.Score = score
	switch {
	case score >= 5:
		r.Level = LevelVeryHigh
	case score >= 3:
		r.Level = LevelHigh
	case score >= 1:
		r.Level = LevelMedium
	default:
		r.Level = LevelLow
	}
}
