package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sawpanic/corepipe/internal/slots"
)

// ErrNoCycle is returned by Last before any cycle has completed
var ErrNoCycle = errors.New("no decision cycle has completed")

// Service serializes cycles over one allocator state and keeps the latest
// result for readers such as the HTTP surface.
type Service struct {
	runner   *Runner
	universe []string

	mu    sync.Mutex
	state slots.State
	last  *Result
}

// NewService starts from state and runs every cycle over universe
func NewService(runner *Runner, state slots.State, universe []string) *Service {
	return &Service{
		runner:   runner,
		universe: NormalizeUniverse(universe),
		state:    state,
	}
}

// RunCycle executes one cycle and commits its slot state. A failed cycle
// leaves the previous state and result untouched.
func (s *Service) RunCycle(ctx context.Context, asOf time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.runner.Run(ctx, s.state, s.universe, asOf)
	if err != nil {
		return Result{}, err
	}
	s.state = res.Slots
	s.last = &res
	return res, nil
}

// Last returns the most recent successful result
func (s *Service) Last() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Result{}, ErrNoCycle
	}
	return *s.last, nil
}

// State returns the current allocator state
func (s *Service) State() slots.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Universe returns the normalized symbol list
func (s *Service) Universe() []string {
	return append([]string(nil), s.universe...)
}
