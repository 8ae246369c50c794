package action

import (
	"testing"

	"github.com/sawpanic/corepipe/internal/scoring"
)

func TestStopBreach(t *testing.T) {
	stop := 95.0
	cases := []struct {
		name  string
		in    Input
		match bool
	}{
		{"not held", Input{Verdict: eligible("X", 90)}, false},
		{"no stop", Input{Holding: &Holding{Entry: 100, LastClose: 50}}, false},
		{"above stop", Input{Holding: &Holding{Entry: 100, Stop: &stop, LastClose: 96}}, false},
		{"at stop", Input{Holding: &Holding{Entry: 100, Stop: &stop, LastClose: 95}}, true},
		{"below stop", Input{Holding: &Holding{Entry: 100, Stop: &stop, LastClose: 80}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := StopBreach{}.Evaluate(tc.in)
			if ok != tc.match {
				t.Errorf("expected match=%v, got %v", tc.match, ok)
			}
		})
	}
}

func TestBreakevenStop(t *testing.T) {
	rule := NewBreakevenStop()
	below := 90.0
	atEntry := 100.0

	if _, ok := rule.Evaluate(Input{Holding: &Holding{Entry: 100, Stop: &below, LastClose: 105}}); ok {
		t.Error("5% gain must not trigger the 8% rule")
	}
	if _, ok := rule.Evaluate(Input{Holding: &Holding{Entry: 100, Stop: &atEntry, LastClose: 120}}); ok {
		t.Error("stop already at entry must not be moved again")
	}
	d, ok := rule.Evaluate(Input{Holding: &Holding{TradeID: "T1", Entry: 100, LastClose: 108}})
	if !ok {
		t.Fatal("expected rule to match without a stop")
	}
	if d.Action != MoveStop || d.Params["trade_id"] != "T1" {
		t.Errorf("unexpected decision %+v", d)
	}
}

func TestScoreThreshold(t *testing.T) {
	rule := ScoreThreshold{MinScore: 75}

	if _, ok := rule.Evaluate(Input{Verdict: eligible("X", 74.9)}); ok {
		t.Error("score below threshold must not enter")
	}
	if _, ok := rule.Evaluate(Input{Verdict: eligible("X", 80), Holding: &Holding{}}); ok {
		t.Error("held symbol must not enter again")
	}
	v := eligible("X", 80)
	v.HardPass = false
	if _, ok := rule.Evaluate(Input{Verdict: v}); ok {
		t.Error("hard-pass false must not enter regardless of score")
	}
	if _, ok := rule.Evaluate(Input{Verdict: scoring.Verdict{Symbol: "X", Profile: scoring.ProfileTrend, HardPass: true}}); ok {
		t.Error("missing score must not enter")
	}
	d, ok := rule.Evaluate(Input{Verdict: eligible("X", 75)})
	if !ok || d.Reasons[len(d.Reasons)-1] != "SCORE_GE_75" {
		t.Errorf("expected SCORE_GE_75, got %+v", d)
	}
}
