package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/corepipe/internal/action"
	"github.com/sawpanic/corepipe/internal/analysis"
	"github.com/sawpanic/corepipe/internal/cache"
	"github.com/sawpanic/corepipe/internal/config"
	"github.com/sawpanic/corepipe/internal/marketdata"
	"github.com/sawpanic/corepipe/internal/metrics"
	"github.com/sawpanic/corepipe/internal/mode"
	"github.com/sawpanic/corepipe/internal/pipeline"
	"github.com/sawpanic/corepipe/internal/portfolio"
	"github.com/sawpanic/corepipe/internal/risk"
)

// app owns every long-lived collaborator built from configuration
type app struct {
	cfg     *config.Config
	metrics *metrics.Registry
	bars    marketdata.Provider
	book    portfolio.Book
	ledger  portfolio.Ledger // nil for read-only books
	cache   cache.Cache
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.NewRegistry()}

	stooq, err := marketdata.NewStooq(cfg.Provider.Stooq())
	if err != nil {
		return nil, err
	}
	a.bars = marketdata.Instrument(stooq, a.metrics)

	switch cfg.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.Cache.Redis)
		if err != nil {
			return nil, err
		}
		a.cache = r
		a.closers = append(a.closers, r.Close)
	default:
		a.cache = cache.NewMemory()
	}

	switch cfg.Portfolio.Source {
	case "postgres":
		db, err := portfolio.OpenPostgres(ctx, cfg.Portfolio.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		repo := portfolio.NewPostgresRepo(db, cfg.QueryTimeout())
		a.book, a.ledger = repo, repo
		a.closers = append(a.closers, db.Close)
	case "legacy":
		a.book = portfolio.NewLegacySource(cfg.Portfolio.Path)
	default:
		if _, err := os.Stat(cfg.Portfolio.Path); errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("path", cfg.Portfolio.Path).Msg("Trade book not found, starting empty")
		}
		book := portfolio.NewFileSource(cfg.Portfolio.Path)
		a.book, a.ledger = book, book
	}
	return a, nil
}

// engine builds the action rule set from configuration
func (a *app) engine() *action.Engine {
	if a.cfg.Rules.Placeholder {
		return action.Placeholder()
	}
	return action.NewEngine(
		action.StopBreach{},
		action.ProfileLost{},
		action.BreakevenStop{TriggerPct: a.cfg.Rules.BreakevenTriggerPct},
		action.ScoreThreshold{MinScore: a.cfg.Rules.MinEnterScore},
	)
}

// runner wires a pipeline; confirmer may be nil
func (a *app) runner(confirmer mode.Confirmer) (*pipeline.Runner, error) {
	gate, err := a.cfg.Gate()
	if err != nil {
		return nil, err
	}
	cfg := pipeline.Config{
		Inputs:         analysis.NewBarsProvider(a.bars, a.cfg.AnalysisOptions()),
		Engine:         a.engine(),
		Mode:           gate,
		History:        a.book,
		Confirmer:      confirmer,
		Cache:          a.cache,
		Book:           a.book,
		Ledger:         a.ledger,
		PositionValue:  a.cfg.Slots.PositionValue,
		Metrics:        a.metrics,
		Concurrency:    a.cfg.Analysis.Concurrency,
		DedupeBySymbol: a.cfg.Slots.DedupeBySymbol,
	}
	return pipeline.NewRunner(cfg)
}

// assess computes the risk report of the configured book as of asOf
func (a *app) assess(ctx context.Context, asOf time.Time) (risk.Report, error) {
	timer := a.metrics.StartStep(metrics.StepRisk)
	lookback := time.Duration(a.cfg.Risk.HistoryDays) * 24 * time.Hour
	report, err := risk.Assess(ctx, a.book, a.bars, a.cfg.Risk.Options, asOf, lookback, a.cfg.Analysis.Concurrency)
	if err != nil {
		timer.Stop(metrics.ResultError)
		return risk.Report{}, err
	}
	timer.Stop(metrics.ResultSuccess)
	a.metrics.RecordRisk(report.TotalValue, report.VaR1DayPct, report.Score)
	return report, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
