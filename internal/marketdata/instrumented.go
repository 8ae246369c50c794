package marketdata

import (
	"context"
	"time"
)

// Observer receives one observation per provider call
type Observer interface {
	ObserveProvider(provider string, err error, elapsed time.Duration)
}

type instrumented struct {
	next Provider
	obs  Observer
}

// Instrument reports every DailyBars call on p to obs
func Instrument(p Provider, obs Observer) Provider {
	if obs == nil {
		return p
	}
	return &instrumented{next: p, obs: obs}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error) {
	start := time.Now()
	bars, err := i.next.DailyBars(ctx, symbol, from, to)
	i.obs.ObserveProvider(i.next.Name(), err, time.Since(start))
	return bars, err
}
