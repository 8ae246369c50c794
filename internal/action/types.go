package action

import "github.com/sawpanic/corepipe/internal/scoring"

// Action is the discrete decision for one symbol
type Action string

const (
	Enter    Action = "ENTER"
	Hold     Action = "HOLD"
	MoveStop Action = "MOVE_STOP"
	Exit     Action = "EXIT"
)

// Priority ranks decisions for the operator
type Priority string

const (
	High Priority = "HIGH"
	Med  Priority = "MED"
	Low  Priority = "LOW"
)

// Decision is the action chosen for one verdict
type Decision struct {
	Symbol   string         `json:"symbol"`
	Action   Action         `json:"action"`
	Priority Priority       `json:"priority"`
	Reasons  []string       `json:"reasons"` // at least one
	Params   map[string]any `json:"params,omitempty"`
}

// Holding is the open position a rule may inspect
type Holding struct {
	TradeID   string   `json:"trade_id"`
	Entry     float64  `json:"entry"`
	Stop      *float64 `json:"stop,omitempty"`
	LastClose float64  `json:"last_close"`
}

// Input is what a rule evaluates for one symbol
type Input struct {
	Verdict scoring.Verdict
	Holding *Holding // nil when no position is open
}

// Held reports whether a position is open for the symbol
func (in Input) Held() bool { return in.Holding != nil }
