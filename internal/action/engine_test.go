package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/corepipe/internal/scoring"
)

func score(v float64) *float64 { return &v }

func eligible(sym string, s float64) scoring.Verdict {
	return scoring.Verdict{Symbol: sym, Profile: scoring.ProfileTrend, HardPass: true, Score: score(s), Reasons: []string{"ABOVE_SMA50"}}
}

func rejected(sym string) scoring.Verdict {
	return scoring.Verdict{Symbol: sym, Profile: scoring.ProfileNone, Reasons: []string{"MISSING_SMA"}}
}

func TestDecide_SameLengthAndOrder(t *testing.T) {
	verdicts := []scoring.Verdict{eligible("C", 80), rejected("A"), eligible("B", 60)}
	decisions := DefaultEngine().Decide(verdicts)

	require.Len(t, decisions, 3)
	for i, v := range verdicts {
		assert.Equal(t, v.Symbol, decisions[i].Symbol)
		assert.NotEmpty(t, decisions[i].Reasons)
	}
	assert.Equal(t, Enter, decisions[0].Action)
	assert.Equal(t, Med, decisions[0].Priority)
	assert.Contains(t, decisions[0].Reasons, "SCORE_GE_70")
	assert.Equal(t, Hold, decisions[1].Action)
	assert.Equal(t, []string{"MISSING_SMA"}, decisions[1].Reasons)
	assert.Equal(t, Hold, decisions[2].Action)
	assert.Equal(t, Low, decisions[2].Priority)
	assert.Equal(t, []string{"ABOVE_SMA50", "SCORE_LT_70"}, decisions[2].Reasons)
}

func TestDecide_BelowEntryScoreIsTagged(t *testing.T) {
	v := eligible("ORK.OL", 69)

	d := DefaultEngine().Decide([]scoring.Verdict{v})
	assert.Equal(t, Hold, d[0].Action)
	assert.Equal(t, []string{"ABOVE_SMA50", "SCORE_LT_70"}, d[0].Reasons)

	d = NewEngine(ScoreThreshold{MinScore: 75}).Decide([]scoring.Verdict{eligible("ORK.OL", 72)})
	assert.Contains(t, d[0].Reasons, "SCORE_LT_75")

	// held positions and failed filters are not entry candidates
	holdings := map[string]Holding{"ORK.OL": {TradeID: "T-1", Entry: 80, LastClose: 81}}
	d = DefaultEngine().DecideWithHoldings([]scoring.Verdict{v}, holdings)
	assert.NotContains(t, d[0].Reasons, "SCORE_LT_70")

	d = DefaultEngine().Decide([]scoring.Verdict{rejected("ORK.OL")})
	assert.Equal(t, []string{"MISSING_SMA"}, d[0].Reasons)

	// without a score rule there is no threshold to miss
	d = NewEngine(StopBreach{}).Decide([]scoring.Verdict{v})
	assert.Equal(t, []string{"ABOVE_SMA50"}, d[0].Reasons)
}

func TestDecide_ExitBeatsMoveStop(t *testing.T) {
	// Gain is above the breakeven trigger but the stop is breached as well;
	// EXIT rules are evaluated first.
	stop := 130.0
	holdings := map[string]Holding{
		"EQNR.OL": {TradeID: "CORE-EQNR.OL", Entry: 100, Stop: &stop, LastClose: 125},
	}
	d := DefaultEngine().DecideWithHoldings([]scoring.Verdict{eligible("EQNR.OL", 80)}, holdings)

	require.Len(t, d, 1)
	assert.Equal(t, Exit, d[0].Action)
	assert.Equal(t, High, d[0].Priority)
	assert.Equal(t, ReasonStopBreached, d[0].Reasons[0])
}

func TestDecide_MoveStopBeforeEnter(t *testing.T) {
	stop := 90.0
	holdings := map[string]Holding{"NHY.OL": {TradeID: "CORE-NHY.OL", Entry: 100, Stop: &stop, LastClose: 112}}
	d := DefaultEngine().DecideWithHoldings([]scoring.Verdict{eligible("NHY.OL", 90)}, holdings)

	assert.Equal(t, MoveStop, d[0].Action)
	assert.Equal(t, 100.0, d[0].Params["new_stop"])
}

func TestDecide_HeldAndStillEligibleIsHeld(t *testing.T) {
	stop := 95.0
	holdings := map[string]Holding{"X": {TradeID: "CORE-X", Entry: 100, Stop: &stop, LastClose: 101}}
	d := DefaultEngine().DecideWithHoldings([]scoring.Verdict{eligible("X", 90)}, holdings)
	assert.Equal(t, Hold, d[0].Action)
}

func TestDecide_HeldAndLostProfileExits(t *testing.T) {
	holdings := map[string]Holding{"X": {TradeID: "CORE-X", Entry: 100, LastClose: 99}}
	d := DefaultEngine().DecideWithHoldings([]scoring.Verdict{rejected("X")}, holdings)

	assert.Equal(t, Exit, d[0].Action)
	assert.Equal(t, Med, d[0].Priority)
	assert.Equal(t, []string{ReasonProfileLost, "MISSING_SMA"}, d[0].Reasons)
}

type namedRule struct {
	name  string
	class Class
}

func (r namedRule) Name() string { return r.name }
func (r namedRule) Class() Class { return r.class }
func (r namedRule) Evaluate(Input) (Decision, bool) {
	return Decision{Action: Hold, Priority: Low, Reasons: []string{r.name}}, true
}

func TestNewEngine_OrdersByClassThenDeclaration(t *testing.T) {
	e := NewEngine(
		namedRule{"enter-a", ClassEnter},
		namedRule{"exit-a", ClassExit},
		namedRule{"move-a", ClassMoveStop},
		namedRule{"exit-b", ClassExit},
	)

	var names []string
	for _, r := range e.Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"exit-a", "exit-b", "move-a", "enter-a"}, names)

	d := e.Decide([]scoring.Verdict{eligible("X", 99)})
	assert.Equal(t, []string{"exit-a"}, d[0].Reasons)
}

type silentRule struct{}

func (silentRule) Name() string { return "silent" }
func (silentRule) Class() Class { return ClassEnter }
func (silentRule) Evaluate(Input) (Decision, bool) {
	return Decision{Action: Enter, Priority: Med}, true
}

func TestDecide_EveryDecisionHasAReason(t *testing.T) {
	d := NewEngine(silentRule{}).Decide([]scoring.Verdict{eligible("X", 99)})
	assert.Equal(t, []string{ReasonNoReason}, d[0].Reasons)

	d = NewEngine().Decide([]scoring.Verdict{{Symbol: "Y", Profile: scoring.ProfileNone}})
	assert.Equal(t, []string{ReasonNoRuleMatched}, d[0].Reasons)
}

func TestPlaceholder_HoldsEverything(t *testing.T) {
	d := Placeholder().Decide([]scoring.Verdict{eligible("A", 100), rejected("B")})
	require.Len(t, d, 2)
	for _, dec := range d {
		assert.Equal(t, Hold, dec.Action)
		assert.Equal(t, []string{ReasonNotImplemented}, dec.Reasons)
	}
}
