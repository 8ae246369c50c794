// Package slots is the capacity-bounded allocator of open positions. Every
// operation returns a new State; callers sharing one allocator serialize
// their writes.
package slots

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/corepipe/internal/scoring"
)

const (
	MinSlots        = 3
	MaxSlots        = 5
	DefaultMaxSlots = 5

	// TradeIDPrefix is prepended to the symbol of every allocator-created slot
	TradeIDPrefix = "CORE-"

	dateLayout = "2006-01-02"
)

// ErrInvalidMaxSlots is returned by Init for capacities outside [3,5]
var ErrInvalidMaxSlots = errors.New("max slots out of range")

// Slot is one open position counted against capacity
type Slot struct {
	TradeID  string `json:"trade_id" yaml:"trade_id"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	OpenedOn string `json:"opened_on" yaml:"opened_on"` // YYYY-MM-DD
}

// State is an immutable allocator snapshot
type State struct {
	MaxSlots int    `json:"max_slots" yaml:"max_slots"`
	Active   []Slot `json:"active" yaml:"active"`
}

// Init returns an empty state with the given capacity
func Init(maxSlots int) (State, error) {
	if maxSlots < MinSlots || maxSlots > MaxSlots {
		return State{}, fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidMaxSlots, maxSlots, MinSlots, MaxSlots)
	}
	return State{MaxSlots: maxSlots, Active: []Slot{}}, nil
}

// OpenCount is the remaining capacity
func OpenCount(s State) int {
	return s.MaxSlots - len(s.Active)
}

// AddSlot appends a slot. A full state is returned unchanged.
func AddSlot(s State, slot Slot) State {
	if len(s.Active) >= s.MaxSlots {
		return s
	}
	active := make([]Slot, len(s.Active), len(s.Active)+1)
	copy(active, s.Active)
	return State{MaxSlots: s.MaxSlots, Active: append(active, slot)}
}

// RemoveSlot closes the first slot with tradeID. The second return value
// reports whether a slot was removed.
func RemoveSlot(s State, tradeID string) (State, bool) {
	for i, slot := range s.Active {
		if slot.TradeID != tradeID {
			continue
		}
		active := make([]Slot, 0, len(s.Active)-1)
		active = append(active, s.Active[:i]...)
		active = append(active, s.Active[i+1:]...)
		return State{MaxSlots: s.MaxSlots, Active: active}, true
	}
	return s, false
}

// ApplyVerdicts admits eligible verdicts dated today.
func ApplyVerdicts(s State, verdicts []scoring.Verdict) State {
	return ApplyVerdictsOn(s, verdicts, time.Now())
}

// ApplyVerdictsOn walks verdicts in input order, skipping NONE profiles and
// hard-pass failures, and stops as soon as no capacity remains; later
// verdicts are not inspected. Admitted verdicts become slots opened on the
// date part of on.
func ApplyVerdictsOn(s State, verdicts []scoring.Verdict, on time.Time) State {
	next := State{MaxSlots: s.MaxSlots, Active: append([]Slot(nil), s.Active...)}
	openedOn := on.Format(dateLayout)

	for i, v := range verdicts {
		if OpenCount(next) <= 0 {
			log.Debug().
				Int("remaining", len(verdicts)-i).
				Int("max_slots", next.MaxSlots).
				Msg("slot capacity exhausted")
			break
		}
		if !v.Eligible() {
			continue
		}
		slot := Slot{
			TradeID:  TradeIDPrefix + v.Symbol,
			Symbol:   v.Symbol,
			OpenedOn: openedOn,
		}
		if has(next, slot.TradeID) {
			log.Warn().Str("trade_id", slot.TradeID).Msg("duplicate symbol admitted, trade id collides")
		}
		next = AddSlot(next, slot)
	}
	return next
}

// DedupeBySymbol keeps the first verdict per symbol. Callers opt in before
// ApplyVerdicts when colliding trade ids are unwanted.
func DedupeBySymbol(verdicts []scoring.Verdict) []scoring.Verdict {
	seen := make(map[string]bool, len(verdicts))
	out := make([]scoring.Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		if seen[v.Symbol] {
			continue
		}
		seen[v.Symbol] = true
		out = append(out, v)
	}
	return out
}

// Symbols returns the symbols of active slots in order
func Symbols(s State) []string {
	out := make([]string, 0, len(s.Active))
	for _, slot := range s.Active {
		out = append(out, slot.Symbol)
	}
	return out
}

func has(s State, tradeID string) bool {
	for _, slot := range s.Active {
		if slot.TradeID == tradeID {
			return true
		}
	}
	return false
}
