package scoring

// Composite evaluates profile scorers in order; the first hard-passing
// profile wins. When none pass, the verdict is NONE carrying every
// rejection reason in scorer order.
type Composite struct {
	scorers []Scorer
}

// NewComposite builds a composite from scorers in priority order
func NewComposite(scorers ...Scorer) *Composite {
	return &Composite{scorers: scorers}
}

// Default returns TREND then ASYM
func Default() *Composite {
	return NewComposite(NewTrendScorer(), NewAsymScorer())
}

// Score implements Scorer
func (c *Composite) Score(in CandidateInput) Verdict {
	var reasons []string
	seen := make(map[string]bool)

	for _, s := range c.scorers {
		v := s.Score(in)
		if v.Eligible() {
			return v
		}
		for _, r := range v.Reasons {
			if !seen[r] {
				seen[r] = true
				reasons = append(reasons, r)
			}
		}
	}

	if len(reasons) == 0 {
		reasons = []string{"NO_PROFILE"}
	}
	return Verdict{Symbol: in.Symbol, Profile: ProfileNone, HardPass: false, Reasons: reasons}
}
