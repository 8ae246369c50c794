package action

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/corepipe/internal/scoring"
)

// Class is the precedence group of a rule. Lower values are evaluated first.
type Class int

const (
	ClassExit Class = iota
	ClassMoveStop
	ClassEnter
)

func (c Class) String() string {
	switch c {
	case ClassExit:
		return "exit"
	case ClassMoveStop:
		return "move_stop"
	case ClassEnter:
		return "enter"
	default:
		return "unknown"
	}
}

// Rule is one independent decision evaluator
type Rule interface {
	Name() string
	Class() Class
	Evaluate(in Input) (Decision, bool)
}

const (
	ReasonNoRuleMatched  = "NO_RULE_MATCHED"
	ReasonNoReason       = "NO_REASON"
	ReasonNotImplemented = "NOT_IMPLEMENTED"
)

// Engine evaluates rules per symbol in class order (EXIT, MOVE_STOP, ENTER)
// with first-match semantics. Registration order breaks ties within a class.
// Symbols matching no rule are held.
type Engine struct {
	rules      []Rule
	enterScore *float64 // first ScoreThreshold's minimum, if registered
}

// NewEngine registers rules; they are stably ordered by class
func NewEngine(rules ...Rule) *Engine {
	ordered := append([]Rule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Class() < ordered[j].Class()
	})
	e := &Engine{rules: ordered}
	for _, r := range ordered {
		if st, ok := r.(ScoreThreshold); ok {
			score := st.MinScore
			e.enterScore = &score
			break
		}
	}
	return e
}

// DefaultEngine wires the built-in rule set with default thresholds
func DefaultEngine() *Engine {
	return NewEngine(
		StopBreach{},
		ProfileLost{},
		NewBreakevenStop(),
		NewScoreThreshold(),
	)
}

// Placeholder holds every symbol with an explicit NOT_IMPLEMENTED reason.
func Placeholder() *Engine {
	return NewEngine(placeholderRule{})
}

// Rules returns the evaluation order
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Decide maps verdicts to decisions one-to-one, preserving order. No
// position is considered open.
func (e *Engine) Decide(verdicts []scoring.Verdict) []Decision {
	return e.DecideWithHoldings(verdicts, nil)
}

// DecideWithHoldings is Decide with the current open positions by symbol.
func (e *Engine) DecideWithHoldings(verdicts []scoring.Verdict, holdings map[string]Holding) []Decision {
	out := make([]Decision, 0, len(verdicts))
	for _, v := range verdicts {
		in := Input{Verdict: v}
		if h, ok := holdings[v.Symbol]; ok {
			h := h
			in.Holding = &h
		}
		out = append(out, e.evaluate(in))
	}
	return out
}

func (e *Engine) evaluate(in Input) Decision {
	for _, r := range e.rules {
		d, ok := r.Evaluate(in)
		if !ok {
			continue
		}
		d.Symbol = in.Verdict.Symbol
		if len(d.Reasons) == 0 {
			d.Reasons = []string{ReasonNoReason}
		}
		log.Debug().
			Str("symbol", d.Symbol).
			Str("rule", r.Name()).
			Str("action", string(d.Action)).
			Msg("rule matched")
		return d
	}
	return e.defaultHold(in)
}

// defaultHold keeps the verdict reasons. An unheld candidate that clears the
// filters but misses the entry score is tagged SCORE_LT_<min>.
func (e *Engine) defaultHold(in Input) Decision {
	v := in.Verdict
	reasons := append([]string(nil), v.Reasons...)
	if e.enterScore != nil && !in.Held() && v.Eligible() && v.ScoreOr(0) < *e.enterScore {
		reasons = append(reasons, fmt.Sprintf("SCORE_LT_%.0f", *e.enterScore))
	}
	if len(reasons) == 0 {
		reasons = []string{ReasonNoRuleMatched}
	}
	return Decision{
		Symbol:   v.Symbol,
		Action:   Hold,
		Priority: Low,
		Reasons:  reasons,
		Params:   verdictParams(v),
	}
}

func verdictParams(v scoring.Verdict) map[string]any {
	p := map[string]any{"profile": string(v.Profile)}
	if v.Score != nil {
		p["score"] = *v.Score
	}
	return p
}

type placeholderRule struct{}

func (placeholderRule) Name() string { return "placeholder_hold" }

// The placeholder is registered alone, so its class is irrelevant.
func (placeholderRule) Class() Class { return ClassExit }

func (placeholderRule) Evaluate(in Input) (Decision, bool) {
	return Decision{
		Action:   Hold,
		Priority: Low,
		Reasons:  []string{ReasonNotImplemented},
	}, true
}
