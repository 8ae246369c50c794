package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultMaxRiskPct is the share of the portfolio risked on one position
var DefaultMaxRiskPct = decimal.NewFromInt(2)

var hundred = decimal.NewFromInt(100)

// SizingParams describes a planned entry
type SizingParams struct {
	Symbol         string
	Price          decimal.Decimal
	Stop           decimal.Decimal
	Target         decimal.Decimal
	PortfolioValue decimal.Decimal
	MaxRiskPct     decimal.Decimal // zero means DefaultMaxRiskPct
}

// Sizing is the recommended position for a planned entry
type Sizing struct {
	Symbol        string          `json:"symbol"`
	Shares        int64           `json:"shares"`
	Value         decimal.Decimal `json:"value"`
	MaxLoss       decimal.Decimal `json:"max_loss"`
	PotentialGain decimal.Decimal `json:"potential_gain"`
	RiskReward    decimal.Decimal `json:"risk_reward"`
	StopRiskPct   decimal.Decimal `json:"stop_risk_pct"` // distance to stop in percent of price
	PositionPct   decimal.Decimal `json:"position_pct"`
}

// ErrInvalidSizing is returned for non-positive prices or portfolio value
var ErrInvalidSizing = errors.New("invalid sizing parameters")

// PositionSize risks at most MaxRiskPct of the portfolio between price and
// stop. A stop at or above the price yields zero shares.
func PositionSize(p SizingParams) (Sizing, error) {
	if !p.Price.IsPositive() || !p.PortfolioValue.IsPositive() {
		return Sizing{}, fmt.Errorf("%w: price and portfolio value must be positive", ErrInvalidSizing)
	}
	maxRisk := p.MaxRiskPct
	if maxRisk.IsZero() {
		maxRisk = DefaultMaxRiskPct
	}

	riskPerShare := p.Price.Sub(p.Stop)
	out := Sizing{
		Symbol:      p.Symbol,
		StopRiskPct: riskPerShare.Div(p.Price).Mul(hundred),
		RiskReward:  decimal.Zero,
	}
	if !riskPerShare.IsPositive() {
		return out, nil
	}

	budget := p.PortfolioValue.Mul(maxRisk).Div(hundred)
	shares := budget.Div(riskPerShare).Floor()
	gainPerShare := p.Target.Sub(p.Price)

	out.Shares = shares.IntPart()
	out.Value = shares.Mul(p.Price)
	out.MaxLoss = shares.Mul(riskPerShare)
	out.PotentialGain = shares.Mul(gainPerShare)
	out.RiskReward = gainPerShare.Div(riskPerShare)
	out.PositionPct = out.Value.Div(p.PortfolioValue).Mul(hundred)
	return out, nil
}
