// Package pipeline runs one core decision cycle: fetch candidate inputs,
// score, decide, allocate slots behind the mode gate and render the brief.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/corepipe/internal/action"
	"github.com/sawpanic/corepipe/internal/analysis"
	"github.com/sawpanic/corepipe/internal/brief"
	"github.com/sawpanic/corepipe/internal/cache"
	"github.com/sawpanic/corepipe/internal/metrics"
	"github.com/sawpanic/corepipe/internal/mode"
	"github.com/sawpanic/corepipe/internal/portfolio"
	"github.com/sawpanic/corepipe/internal/scoring"
	"github.com/sawpanic/corepipe/internal/slots"
)

// EngineVersion is the cache key version. Bump it whenever scoring or
// indicator semantics change; cached snapshots are never invalidated otherwise.
const EngineVersion = "v1"

const cacheName = "cycle"

// Config wires the runner's collaborators
type Config struct {
	Inputs         analysis.Provider // required
	Scorer         scoring.Scorer    // default scoring.Default()
	Engine         *action.Engine    // default action.DefaultEngine()
	Mode           mode.Config
	History        mode.History
	Confirmer      mode.Confirmer
	Cache          cache.Cache      // default in-memory
	Book           portfolio.Source // optional open positions
	Ledger         portfolio.Ledger // optional; records applied ENTER and EXIT
	PositionValue  float64          // notional per recorded trade; <= 0 records one share
	Metrics        *metrics.Registry
	Concurrency    int
	DedupeBySymbol bool
}

// Runner executes decision cycles. It holds no allocator state; callers own
// slots.State and must serialize cycles that share it.
type Runner struct {
	inputs      analysis.Provider
	scorer      scoring.Scorer
	engine      *action.Engine
	mode        mode.Config
	gate        *mode.FirstEnterGate
	snapshots   *cache.Typed[Snapshot]
	book        portfolio.Source
	ledger      portfolio.Ledger
	notional    float64
	metrics     *metrics.Registry
	concurrency int
	dedupe      bool
}

// Snapshot is the cached, state-independent part of a cycle
type Snapshot struct {
	Inputs   []scoring.CandidateInput `json:"inputs"`
	Verdicts []scoring.Verdict        `json:"verdicts"`
}

// Result is the complete outcome of one cycle
type Result struct {
	CycleID       string            `json:"cycle_id"`
	AsOf          string            `json:"as_of"`
	CacheKey      string            `json:"cache_key"`
	Cached        bool              `json:"cached"`
	Mode          mode.Mode         `json:"mode"`
	Verdicts      []scoring.Verdict `json:"verdicts"`
	Decisions     []action.Decision `json:"decisions"`
	Slots         slots.State       `json:"slots"`
	Admitted      []slots.Slot      `json:"admitted"`
	Closed        []string          `json:"closed"`
	Applied       bool              `json:"applied"`
	BlockedReason string            `json:"blocked_reason,omitempty"`
	Pending       []string          `json:"pending,omitempty"`
	Brief         string            `json:"brief"`
	Duration      time.Duration     `json:"duration"`
}

// NewRunner validates the configuration and fills defaults
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Inputs == nil {
		return nil, errors.New("pipeline: analysis provider is required")
	}
	if err := cfg.Mode.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.Scorer == nil {
		cfg.Scorer = scoring.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = action.DefaultEngine()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Runner{
		inputs:      cfg.Inputs,
		scorer:      cfg.Scorer,
		engine:      cfg.Engine,
		mode:        cfg.Mode,
		gate:        mode.NewFirstEnterGate(cfg.Mode, cfg.History, cfg.Confirmer),
		snapshots:   cache.NewTyped[Snapshot](cfg.Cache),
		book:        cfg.Book,
		ledger:      cfg.Ledger,
		notional:    cfg.PositionValue,
		metrics:     cfg.Metrics,
		concurrency: cfg.Concurrency,
		dedupe:      cfg.DedupeBySymbol,
	}, nil
}

// NormalizeUniverse trims, upper-cases and de-duplicates symbols keeping
// first occurrence order.
func NormalizeUniverse(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Run executes one cycle over universe as of asOf starting from state.
// Any provider failure aborts the cycle before a decision is produced.
func (r *Runner) Run(ctx context.Context, state slots.State, universe []string, asOf time.Time) (Result, error) {
	start := time.Now()
	universe = NormalizeUniverse(universe)
	date := asOf.Format("2006-01-02")

	key, err := cache.MakeKey(date, EngineVersion, cache.Fingerprint(universe))
	if err != nil {
		return Result{}, fmt.Errorf("cycle cache key: %w", err)
	}

	res := Result{
		CycleID:  uuid.New().String(),
		AsOf:     date,
		CacheKey: key,
		Mode:     r.mode.Mode,
		Closed:   []string{},
		Admitted: []slots.Slot{},
	}
	logger := log.With().Str("cycle_id", res.CycleID).Str("as_of", date).Logger()

	snap, cached, err := r.snapshot(ctx, key, universe, asOf)
	if err != nil {
		r.recordCycle(metrics.ResultError)
		logger.Error().Err(err).Msg("Decision cycle aborted")
		return Result{}, err
	}
	res.Cached = cached
	res.Verdicts = snap.Verdicts

	holdings, err := r.holdings(ctx, state, snap.Inputs)
	if err != nil {
		r.recordCycle(metrics.ResultError)
		return Result{}, err
	}

	timer := r.startStep(metrics.StepDecide)
	res.Decisions = r.engine.DecideWithHoldings(snap.Verdicts, holdings)
	timer.stop(metrics.ResultSuccess)

	res.Slots = state
	if mode.CanApply(r.mode) {
		if err := r.apply(ctx, &res, state, snap, holdings, asOf); err != nil {
			r.recordCycle(metrics.ResultError)
			return Result{}, err
		}
	} else {
		res.BlockedReason = mode.BlockedReason(r.mode)
		logger.Info().Str("mode", string(r.mode.Mode)).Msg("Decisions not applied")
	}

	timer = r.startStep(metrics.StepBrief)
	res.Brief = brief.Render(date, res.Decisions)
	timer.stop(metrics.ResultSuccess)

	res.Duration = time.Since(start)
	r.publish(res)

	logger.Info().
		Int("symbols", len(universe)).
		Bool("cached", res.Cached).
		Bool("applied", res.Applied).
		Int("admitted", len(res.Admitted)).
		Int("open_slots", slots.OpenCount(res.Slots)).
		Dur("duration", res.Duration).
		Msg("Decision cycle completed")
	return res, nil
}

// snapshot returns cached inputs and verdicts or computes and stores them.
// Cached verdicts are re-ordered to the requested universe order.
func (r *Runner) snapshot(ctx context.Context, key string, universe []string, asOf time.Time) (Snapshot, bool, error) {
	snap, ok, err := r.snapshots.Get(ctx, key)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("cycle cache get: %w", err)
	}
	if ok && len(snap.Verdicts) == len(universe) {
		r.cacheHit(true)
		return reorder(snap, universe), true, nil
	}
	r.cacheHit(false)

	timer := r.startStep(metrics.StepFetch)
	inputs, err := r.fetch(ctx, universe, asOf)
	if err != nil {
		timer.stop(metrics.ResultError)
		return Snapshot{}, false, err
	}
	timer.stop(metrics.ResultSuccess)

	timer = r.startStep(metrics.StepScore)
	snap = Snapshot{Inputs: inputs, Verdicts: scoring.ScoreAll(r.scorer, inputs)}
	timer.stop(metrics.ResultSuccess)

	if err := r.snapshots.Set(ctx, key, snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("cycle cache set: %w", err)
	}
	return snap, false, nil
}

// fetch materializes every candidate input concurrently. Results keep
// universe order and nothing downstream starts until all are present.
func (r *Runner) fetch(ctx context.Context, universe []string, asOf time.Time) ([]scoring.CandidateInput, error) {
	inputs := make([]scoring.CandidateInput, len(universe))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, sym := range universe {
		i, sym := i, sym
		g.Go(func() error {
			in, err := r.inputs.CandidateInput(gctx, sym, asOf)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", sym, err)
			}
			in.Symbol = sym
			inputs[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

func reorder(snap Snapshot, universe []string) Snapshot {
	verdicts := make(map[string]scoring.Verdict, len(snap.Verdicts))
	for _, v := range snap.Verdicts {
		verdicts[v.Symbol] = v
	}
	inputs := make(map[string]scoring.CandidateInput, len(snap.Inputs))
	for _, in := range snap.Inputs {
		inputs[in.Symbol] = in
	}
	out := Snapshot{
		Inputs:   make([]scoring.CandidateInput, 0, len(universe)),
		Verdicts: make([]scoring.Verdict, 0, len(universe)),
	}
	for _, s := range universe {
		out.Verdicts = append(out.Verdicts, verdicts[s])
		if in, ok := inputs[s]; ok {
			out.Inputs = append(out.Inputs, in)
		}
	}
	return out
}

// holdings merges the trade book with active slots; book entries win
func (r *Runner) holdings(ctx context.Context, state slots.State, inputs []scoring.CandidateInput) (map[string]action.Holding, error) {
	closes := make(map[string]float64, len(inputs))
	for _, in := range inputs {
		closes[in.Symbol] = in.Close
	}

	out := make(map[string]action.Holding)
	for _, s := range state.Active {
		out[s.Symbol] = action.Holding{TradeID: s.TradeID, LastClose: closes[s.Symbol]}
	}
	if r.book == nil {
		return out, nil
	}

	trades, err := r.book.Trades(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trade book: %w", err)
	}
	fromBook := make(map[string]bool, len(trades))
	for _, t := range trades {
		if fromBook[t.Symbol] {
			continue
		}
		fromBook[t.Symbol] = true
		out[t.Symbol] = action.Holding{
			TradeID:   t.ID,
			Entry:     t.EntryPrice,
			Stop:      t.Stop,
			LastClose: closes[t.Symbol],
		}
	}
	return out, nil
}

// apply closes exited slots, then admits ENTER verdicts past the
// first-ENTER gate in decision order. With a ledger the applied exits and
// admissions are written to the trade book.
func (r *Runner) apply(ctx context.Context, res *Result, state slots.State, snap Snapshot, holdings map[string]action.Holding, asOf time.Time) error {
	verdicts := snap.Verdicts
	timer := r.startStep(metrics.StepGate)
	next := state
	for _, d := range res.Decisions {
		if d.Action != action.Exit {
			continue
		}
		next = closeSymbol(next, d.Symbol, &res.Closed)
	}

	enter := make([]scoring.Verdict, 0, len(verdicts))
	for i, d := range res.Decisions {
		if d.Action == action.Enter {
			enter = append(enter, verdicts[i])
		}
	}
	if r.dedupe {
		enter = slots.DedupeBySymbol(enter)
	}

	allowed, pending, err := r.gate.Filter(ctx, enter)
	if err != nil {
		timer.stop(metrics.ResultError)
		return fmt.Errorf("first enter gate: %w", err)
	}
	timer.stop(metrics.ResultSuccess)
	res.Pending = pending

	timer = r.startStep(metrics.StepAllocate)
	before := len(next.Active)
	next = slots.ApplyVerdictsOn(next, allowed, asOf)
	res.Admitted = append(res.Admitted, next.Active[before:]...)
	timer.stop(metrics.ResultSuccess)

	if r.ledger != nil {
		if err := r.record(ctx, res, snap.Inputs, holdings, asOf); err != nil {
			return fmt.Errorf("record trades: %w", err)
		}
	}

	res.Slots = next
	res.Applied = true
	return nil
}

// record closes the book trade behind every EXIT and opens one per admitted
// slot. Re-running a cycle is a no-op: closed trades report false and
// duplicate inserts are skipped.
func (r *Runner) record(ctx context.Context, res *Result, inputs []scoring.CandidateInput, holdings map[string]action.Holding, asOf time.Time) error {
	for _, d := range res.Decisions {
		if d.Action != action.Exit {
			continue
		}
		h, ok := holdings[d.Symbol]
		if !ok {
			continue
		}
		closed, err := r.ledger.Close(ctx, h.TradeID, asOf)
		if err != nil {
			return err
		}
		log.Debug().Str("trade_id", h.TradeID).Bool("closed", closed).Msg("Recorded exit")
	}

	closes := make(map[string]float64, len(inputs))
	for _, in := range inputs {
		closes[in.Symbol] = in.Close
	}
	for _, slot := range res.Admitted {
		price := closes[slot.Symbol]
		if price <= 0 {
			log.Warn().Str("symbol", slot.Symbol).Msg("No close for admitted slot, trade not recorded")
			continue
		}
		trade := portfolio.Trade{
			ID:         slot.TradeID + "-" + asOf.Format("20060102"),
			Symbol:     slot.Symbol,
			EntryPrice: price,
			Quantity:   r.quantity(price),
			OpenedOn:   slot.OpenedOn,
		}
		err := r.ledger.Insert(ctx, trade)
		if errors.Is(err, portfolio.ErrDuplicateTrade) {
			log.Debug().Str("trade_id", trade.ID).Msg("Trade already recorded")
			continue
		}
		if err != nil {
			return err
		}
		log.Info().Str("trade_id", trade.ID).Float64("entry", price).Float64("quantity", trade.Quantity).Msg("Recorded entry")
	}
	return nil
}

func (r *Runner) quantity(price float64) float64 {
	if r.notional <= 0 {
		return 1
	}
	return math.Max(1, math.Floor(r.notional/price))
}

// closeSymbol removes every slot held in symbol, appending their trade ids
func closeSymbol(s slots.State, symbol string, closed *[]string) slots.State {
	for _, slot := range append([]slots.Slot(nil), s.Active...) {
		if slot.Symbol != symbol {
			continue
		}
		var removed bool
		if s, removed = slots.RemoveSlot(s, slot.TradeID); removed {
			*closed = append(*closed, slot.TradeID)
		}
	}
	return s
}

type stepTimer struct {
	t *metrics.StepTimer
}

func (r *Runner) startStep(step metrics.Step) stepTimer {
	if r.metrics == nil {
		return stepTimer{}
	}
	return stepTimer{t: r.metrics.StartStep(step)}
}

func (s stepTimer) stop(result metrics.Result) {
	if s.t != nil {
		s.t.Stop(result)
	}
}

func (r *Runner) cacheHit(hit bool) {
	if r.metrics == nil {
		return
	}
	if hit {
		r.metrics.RecordCacheHit(cacheName)
	} else {
		r.metrics.RecordCacheMiss(cacheName)
	}
}

func (r *Runner) recordCycle(result metrics.Result) {
	if r.metrics != nil {
		r.metrics.RecordCycle(result)
	}
}

func (r *Runner) publish(res Result) {
	if r.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if res.Cached {
		result = metrics.ResultCached
	}
	r.metrics.RecordCycle(result)
	for _, d := range res.Decisions {
		r.metrics.RecordDecision(string(d.Action))
	}
	r.metrics.SetSlots(len(res.Slots.Active), slots.OpenCount(res.Slots))
}
