package scoring

import "time"

// Profile is the suitability class a candidate was scored into
type Profile string

const (
	ProfileTrend Profile = "TREND"
	ProfileAsym  Profile = "ASYM"
	ProfileNone  Profile = "NONE" // rejected
)

// Rejection and acceptance reason codes
const (
	ReasonMissingClose = "MISSING_CLOSE"
	ReasonMissingSMA   = "MISSING_SMA"
	ReasonMissing52w   = "MISSING_52W"
	ReasonBad52w       = "BAD_52W"
	ReasonBelowSMA     = "BELOW_SMA"
	ReasonNotAsymZone  = "NOT_ASYM_ZONE"
	ReasonAboveSMA50   = "ABOVE_SMA50"
	ReasonAboveSMA200  = "ABOVE_SMA200"
	ReasonNear52wLow   = "NEAR_52W_LOW"
)

// Range is a low/high price band
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// CandidateInput is the analytical snapshot for one symbol on one date
type CandidateInput struct {
	Symbol       string          `json:"symbol"`
	AsOf         time.Time       `json:"as_of"`
	Close        float64         `json:"close"`
	SMA          map[int]float64 `json:"sma,omitempty"`            // period -> value
	RSI          *float64        `json:"rsi,omitempty"`            // 14-period momentum index
	AvgDailyMove *float64        `json:"avg_daily_move,omitempty"` // percent
	Range52w     *Range          `json:"range_52w,omitempty"`
}

// Verdict is the eligibility outcome for one candidate
type Verdict struct {
	Symbol   string   `json:"symbol"`
	Profile  Profile  `json:"profile"`
	HardPass bool     `json:"hard_pass"` // every mandatory filter cleared, independent of score
	Score    *float64 `json:"score,omitempty"`
	Reasons  []string `json:"reasons"`
}

// Eligible reports whether the verdict may be admitted to a slot.
func (v Verdict) Eligible() bool {
	return v.HardPass && v.Profile != ProfileNone
}

// ScoreOr returns the score or def when absent
func (v Verdict) ScoreOr(def float64) float64 {
	if v.Score == nil {
		return def
	}
	return *v.Score
}

// Scorer turns a CandidateInput into a Verdict. Implementations must be
// deterministic: identical input yields an identical verdict.
type Scorer interface {
	Score(in CandidateInput) Verdict
}

// ScoreAll scores inputs preserving order
func ScoreAll(s Scorer, inputs []CandidateInput) []Verdict {
	out := make([]Verdict, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, s.Score(in))
	}
	return out
}

func reject(symbol, reason string) Verdict {
	return Verdict{Symbol: symbol, Profile: ProfileNone, HardPass: false, Reasons: []string{reason}}
}

func clampScore(v float64) *float64 {
	if v > 100 {
		v = 100
	}
	if v < 0 {
		v = 0
	}
	return &v
}
