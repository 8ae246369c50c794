package scoring

// TrendScorer admits symbols trading above both the 50 and 200 period SMA.
type TrendScorer struct {
	RSIFloor   float64 // bonus when RSI above
	RSICeiling float64 // bonus when RSI below
	MoveFloor  float64 // bonus when average daily move (%) above
}

// NewTrendScorer returns a TREND scorer with default soft-score bonuses
func NewTrendScorer() TrendScorer {
	return TrendScorer{RSIFloor: 55, RSICeiling: 70, MoveFloor: 1.5}
}

// Score implements Scorer
func (t TrendScorer) Score(in CandidateInput) Verdict {
	if in.Close <= 0 {
		return reject(in.Symbol, ReasonMissingClose)
	}
	sma50, ok50 := in.SMA[50]
	sma200, ok200 := in.SMA[200]
	if !ok50 || !ok200 || sma50 <= 0 || sma200 <= 0 {
		return reject(in.Symbol, ReasonMissingSMA)
	}
	if in.Close <= sma50 || in.Close <= sma200 {
		return reject(in.Symbol, ReasonBelowSMA)
	}

	score := 50.0
	if in.RSI != nil && *in.RSI > t.RSIFloor {
		score += 10
	}
	if in.RSI != nil && *in.RSI < t.RSICeiling {
		score += 10
	}
	if in.AvgDailyMove != nil && *in.AvgDailyMove > t.MoveFloor {
		score += 10
	}

	return Verdict{
		Symbol:   in.Symbol,
		Profile:  ProfileTrend,
		HardPass: true,
		Score:    clampScore(score),
		Reasons:  []string{ReasonAboveSMA50, ReasonAboveSMA200},
	}
}

// AsymScorer admits symbols sitting in the lower part of their 52-week range,
// where downside is bounded relative to upside.
type AsymScorer struct {
	MaxRangePosition float64 // 0..1, position within the 52w range
	RSIFloor         float64
	RSICeiling       float64
	MoveFloor        float64
}

// NewAsymScorer returns an ASYM scorer with default thresholds
func NewAsymScorer() AsymScorer {
	return AsymScorer{MaxRangePosition: 0.35, RSIFloor: 45, RSICeiling: 65, MoveFloor: 1.5}
}

// Score implements Scorer
func (a AsymScorer) Score(in CandidateInput) Verdict {
	if in.Close <= 0 {
		return reject(in.Symbol, ReasonMissingClose)
	}
	if in.Range52w == nil {
		return reject(in.Symbol, ReasonMissing52w)
	}
	low, high := in.Range52w.Low, in.Range52w.High
	if low <= 0 || high <= 0 || high <= low {
		return reject(in.Symbol, ReasonBad52w)
	}

	pos := (in.Close - low) / (high - low)
	if pos > a.MaxRangePosition {
		return reject(in.Symbol, ReasonNotAsymZone)
	}

	score := 50.0
	if in.RSI != nil && *in.RSI > a.RSIFloor {
		score += 10
	}
	if in.RSI != nil && *in.RSI < a.RSICeiling {
		score += 10
	}
	if in.AvgDailyMove != nil && *in.AvgDailyMove > a.MoveFloor {
		score += 10
	}

	return Verdict{
		Symbol:   in.Symbol,
		Profile:  ProfileAsym,
		HardPass: true,
		Score:    clampScore(score),
		Reasons:  []string{ReasonNear52wLow},
	}
}
