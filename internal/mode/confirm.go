package mode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/corepipe/internal/scoring"
)

// History reports whether a symbol has ever had a position
type History interface {
	HasPosition(ctx context.Context, symbol string) (bool, error)
}

// Confirmer is the external approval for a first ENTER
type Confirmer interface {
	Confirmed(ctx context.Context, symbol string) (bool, error)
}

// HistoryFunc adapts a function to History
type HistoryFunc func(ctx context.Context, symbol string) (bool, error)

func (f HistoryFunc) HasPosition(ctx context.Context, symbol string) (bool, error) {
	return f(ctx, symbol)
}

// ConfirmerFunc adapts a function to Confirmer
type ConfirmerFunc func(ctx context.Context, symbol string) (bool, error)

func (f ConfirmerFunc) Confirmed(ctx context.Context, symbol string) (bool, error) {
	return f(ctx, symbol)
}

// FirstEnterGate sits between the action engine and slot admission. When
// RequireConfirmFirstEnter is set, an eligible verdict for a symbol with no
// position history is held back until the Confirmer approves it.
type FirstEnterGate struct {
	cfg       Config
	history   History
	confirmer Confirmer
}

// NewFirstEnterGate builds the gate; a nil confirmer approves nothing.
func NewFirstEnterGate(cfg Config, history History, confirmer Confirmer) *FirstEnterGate {
	return &FirstEnterGate{cfg: cfg, history: history, confirmer: confirmer}
}

// Filter splits verdicts into those that may proceed to admission (input
// order preserved) and the symbols pending confirmation. Ineligible
// verdicts pass through untouched; the allocator skips them anyway.
func (g *FirstEnterGate) Filter(ctx context.Context, verdicts []scoring.Verdict) ([]scoring.Verdict, []string, error) {
	if !g.cfg.RequireConfirmFirstEnter {
		return verdicts, nil, nil
	}

	allowed := make([]scoring.Verdict, 0, len(verdicts))
	var pending []string
	for _, v := range verdicts {
		if !v.Eligible() {
			allowed = append(allowed, v)
			continue
		}
		first, err := g.isFirstEnter(ctx, v.Symbol)
		if err != nil {
			return nil, nil, err
		}
		if !first {
			allowed = append(allowed, v)
			continue
		}
		ok, err := g.confirmed(ctx, v.Symbol)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			allowed = append(allowed, v)
			continue
		}
		log.Info().Str("symbol", v.Symbol).Msg("first ENTER pending confirmation")
		pending = append(pending, v.Symbol)
	}
	return allowed, pending, nil
}

func (g *FirstEnterGate) isFirstEnter(ctx context.Context, symbol string) (bool, error) {
	if g.history == nil {
		return true, nil
	}
	held, err := g.history.HasPosition(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("position history for %s: %w", symbol, err)
	}
	return !held, nil
}

func (g *FirstEnterGate) confirmed(ctx context.Context, symbol string) (bool, error) {
	if g.confirmer == nil {
		return false, nil
	}
	ok, err := g.confirmer.Confirmed(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("confirmation for %s: %w", symbol, err)
	}
	return ok, nil
}
