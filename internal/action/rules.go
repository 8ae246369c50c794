package action

import "fmt"

// Reason codes emitted by the built-in rules
const (
	ReasonStopBreached  = "STOP_BREACHED"
	ReasonProfileLost   = "PROFILE_LOST"
	ReasonBreakeven     = "MOVE_TO_BREAKEVEN"
	defaultEnterScore   = 70.0
	defaultBreakevenPct = 8.0
)

// StopBreach exits a held position whose last close is at or below its stop.
type StopBreach struct{}

func (StopBreach) Name() string { return "stop_breach" }
func (StopBreach) Class() Class { return ClassExit }

func (StopBreach) Evaluate(in Input) (Decision, bool) {
	h := in.Holding
	if h == nil || h.Stop == nil || h.LastClose <= 0 {
		return Decision{}, false
	}
	if h.LastClose > *h.Stop {
		return Decision{}, false
	}
	return Decision{
		Action:   Exit,
		Priority: High,
		Reasons: []string{
			ReasonStopBreached,
			fmt.Sprintf("close %.2f <= stop %.2f", h.LastClose, *h.Stop),
		},
		Params: map[string]any{"trade_id": h.TradeID, "stop": *h.Stop},
	}, true
}

// ProfileLost exits a held position that no longer clears the hard filters.
type ProfileLost struct{}

func (ProfileLost) Name() string { return "profile_lost" }
func (ProfileLost) Class() Class { return ClassExit }

func (ProfileLost) Evaluate(in Input) (Decision, bool) {
	if !in.Held() || in.Verdict.Eligible() {
		return Decision{}, false
	}
	reasons := append([]string{ReasonProfileLost}, in.Verdict.Reasons...)
	return Decision{
		Action:   Exit,
		Priority: Med,
		Reasons:  reasons,
		Params:   map[string]any{"trade_id": in.Holding.TradeID},
	}, true
}

// BreakevenStop raises the stop to the entry price once the position has
// gained TriggerPct percent and the stop still sits below entry.
type BreakevenStop struct {
	TriggerPct float64
}

// NewBreakevenStop returns the rule with the default 8% trigger
func NewBreakevenStop() BreakevenStop {
	return BreakevenStop{TriggerPct: defaultBreakevenPct}
}

func (BreakevenStop) Name() string { return "breakeven_stop" }
func (BreakevenStop) Class() Class { return ClassMoveStop }

func (b BreakevenStop) Evaluate(in Input) (Decision, bool) {
	h := in.Holding
	if h == nil || h.Entry <= 0 || h.LastClose <= 0 {
		return Decision{}, false
	}
	gainPct := (h.LastClose/h.Entry - 1) * 100
	if gainPct < b.TriggerPct {
		return Decision{}, false
	}
	if h.Stop != nil && *h.Stop >= h.Entry {
		return Decision{}, false
	}
	return Decision{
		Action:   MoveStop,
		Priority: Med,
		Reasons:  []string{ReasonBreakeven, fmt.Sprintf("gain %.1f%%", gainPct)},
		Params:   map[string]any{"trade_id": h.TradeID, "new_stop": h.Entry},
	}, true
}

// ScoreThreshold enters an unheld, hard-passing candidate whose score is at
// least MinScore.
type ScoreThreshold struct {
	MinScore float64
}

// NewScoreThreshold returns the rule with the default threshold of 70
func NewScoreThreshold() ScoreThreshold {
	return ScoreThreshold{MinScore: defaultEnterScore}
}

func (ScoreThreshold) Name() string { return "score_threshold" }
func (ScoreThreshold) Class() Class { return ClassEnter }

func (s ScoreThreshold) Evaluate(in Input) (Decision, bool) {
	v := in.Verdict
	if in.Held() || !v.Eligible() || v.Score == nil || *v.Score < s.MinScore {
		return Decision{}, false
	}
	reasons := append(append([]string(nil), v.Reasons...), fmt.Sprintf("SCORE_GE_%.0f", s.MinScore))
	return Decision{
		Action:   Enter,
		Priority: Med,
		Reasons:  reasons,
		Params:   verdictParams(v),
	}, true
}
