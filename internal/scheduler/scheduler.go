// Package scheduler triggers the daily decision cycle on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/corepipe/internal/pipeline"
)

// Cycler runs one decision cycle; *pipeline.Service satisfies it
type Cycler interface {
	RunCycle(ctx context.Context, asOf time.Time) (pipeline.Result, error)
}

// Config is a standard five-field cron spec evaluated in Timezone
type Config struct {
	Cron     string
	Timezone string
}

// Status represents scheduler status
type Status struct {
	Running   bool      `json:"running"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastCycle string    `json:"last_cycle,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
}

// Scheduler manages the cycle job
type Scheduler struct {
	cron   *cron.Cron
	entry  cron.EntryID
	cycles Cycler
	ctx    context.Context
	loc    *time.Location
	now    func() time.Time

	mu      sync.Mutex
	running bool
	status  Status
}

// New registers the cycle job. Overlapping runs are skipped.
func New(ctx context.Context, cfg Config, cycles Cycler) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	logger := cronLogger{l: log.With().Str("component", "scheduler").Logger()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		cycles: cycles,
		ctx:    ctx,
		loc:    loc,
		now:    time.Now,
	}
	id, err := s.cron.AddFunc(cfg.Cron, s.RunNow)
	if err != nil {
		return nil, fmt.Errorf("register cycle job %q: %w", cfg.Cron, err)
	}
	s.entry = id
	return s, nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.cron.Start()
	log.Info().Time("next_run", s.Next()).Msg("Scheduler started")
}

// Stop stops scheduling and returns a context done when the running job ends
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	log.Info().Msg("Scheduler stopped")
	return s.cron.Stop()
}

// Next is the next scheduled run, zero before Start
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunNow executes one cycle as of the current time in the schedule zone
func (s *Scheduler) RunNow() {
	asOf := s.now().In(s.loc)
	res, err := s.cycles.RunCycle(s.ctx, asOf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Runs++
	s.status.LastRun = asOf
	if err != nil {
		s.status.LastError = err.Error()
		log.Error().Err(err).Time("as_of", asOf).Msg("Scheduled cycle failed")
		return
	}
	s.status.LastError = ""
	s.status.LastCycle = res.CycleID
}

// Status returns a snapshot of the scheduler state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := s.status
	st.Running = s.running
	s.mu.Unlock()
	st.NextRun = s.Next()
	return st
}

// cronLogger routes cron's internal logging through zerolog
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
