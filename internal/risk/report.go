// Package risk quantifies exposure of the core trade book: value, beta,
// one-day VaR, drawdown, Sharpe, sector concentration and correlation.
//
// Conventions:
//   - returns are daily simple returns of closes aligned on common dates
//   - VaR is historical simulation at Options.Confidence over one day
//   - Sharpe is mean daily excess return over daily volatility, times sqrt(252);
//     with zero volatility it is 0 and SharpeDefined is false
//   - beta is cov(holding, benchmark) / var(benchmark), 1.0 without a benchmark
package risk

// Level is the ordinal overall risk classification
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very_high"
)

// Band is a sector concentration bucket
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// SectorWeight is one sector's share of current value
type SectorWeight struct {
	Sector string  `json:"sector"`
	Weight float64 `json:"weight"` // fraction of total value
	Value  float64 `json:"value"`
	Risk   Band    `json:"risk"`
}

// HoldingWeight is one symbol's share of current value
type HoldingWeight struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"` // fraction of total value
	Value  float64 `json:"value"`
	Beta   float64 `json:"beta"`
}

// Pair is two holdings whose daily returns move together
type Pair struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Correlation float64 `json:"correlation"`
}

// Report is derived from one trade book and price snapshot
type Report struct {
	Holdings         int             `json:"holdings"`
	TotalValue       float64         `json:"total_value"`
	TotalInvested    float64         `json:"total_invested"`
	UnrealizedPnL    float64         `json:"unrealized_pnl"`
	UnrealizedPnLPct float64         `json:"unrealized_pnl_pct"`
	Beta             float64         `json:"beta"`
	VaR1Day          float64         `json:"var_1d"`
	VaR1DayPct       float64         `json:"var_1d_pct"`
	VaRConfidence    float64         `json:"var_confidence"`
	MaxDrawdown      float64         `json:"max_drawdown"` // percent of peak equity
	Sharpe           float64         `json:"sharpe"`
	SharpeDefined    bool            `json:"sharpe_defined"`
	Sectors          []SectorWeight  `json:"sectors"`
	TopHoldings      []HoldingWeight `json:"top_holdings"`
	CorrelatedPairs  []Pair          `json:"correlated_pairs"`
	Level            Level           `json:"level"`
	Score            int             `json:"score"`
	Warnings         []string        `json:"warnings"`
	Suggestions      []string        `json:"suggestions"`
}

// Options holds the fixed thresholds of the risk model
type Options struct {
	Confidence           float64 `yaml:"confidence"`
	RiskFreeAnnual       float64 `yaml:"risk_free_annual"`
	TradingDays          int     `yaml:"trading_days"`
	TopN                 int     `yaml:"top_n"`
	CorrelationThreshold float64 `yaml:"correlation_threshold"`
	MaxPairs             int     `yaml:"max_pairs"`
	SectorHigh           float64 `yaml:"sector_high"` // weights are fractions
	SectorMedium         float64 `yaml:"sector_medium"`
	LargePosition        float64 `yaml:"large_position"`
	MinDiversification   int     `yaml:"min_diversification"`
	UnknownSector        string  `yaml:"unknown_sector"`
	Benchmark            string  `yaml:"benchmark"` // key into the histories map
	// MarketDailyVol is the market's daily return stdev. Without benchmark
	// history a holding's beta is its own daily stdev over this.
	MarketDailyVol float64 `yaml:"market_daily_vol"`
}

// DefaultOptions returns the documented conventions
func DefaultOptions() Options {
	return Options{
		Confidence:           0.95,
		RiskFreeAnnual:       0.04,
		TradingDays:          252,
		TopN:                 5,
		CorrelationThreshold: 0.7,
		MaxPairs:             5,
		SectorHigh:           0.40,
		SectorMedium:         0.25,
		LargePosition:        0.20,
		MinDiversification:   5,
		UnknownSector:        "Unknown",
		MarketDailyVol:       0.015,
	}
}

// Empty is the zeroed report for an empty book
func Empty(opts Options) Report {
	return Report{
		VaRConfidence:   opts.Confidence,
		Sectors:         []SectorWeight{},
		TopHoldings:     []HoldingWeight{},
		CorrelatedPairs: []Pair{},
		Level:           LevelLow,
		Warnings:        []string{},
		Suggestions:     []string{},
	}
}
