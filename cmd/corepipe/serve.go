package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/corepipe/internal/httpapi"
	"github.com/sawpanic/corepipe/internal/pipeline"
	"github.com/sawpanic/corepipe/internal/risk"
	"github.com/sawpanic/corepipe/internal/scheduler"
	"github.com/sawpanic/corepipe/internal/slots"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		statePath  string
		runOnStart bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API and run the scheduled cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := a.runner(nil)
			if err != nil {
				return err
			}
			state, err := loadState(statePath, c.cfg.Slots.MaxSlots)
			if err != nil {
				return err
			}
			svc := pipeline.NewService(runner, state, c.cfg.Universe)
			cycles := persistingCycler{svc: svc, path: statePath}

			var sched *scheduler.Scheduler
			if c.cfg.Schedule.Enabled {
				if len(svc.Universe()) == 0 {
					return fmt.Errorf("schedule enabled with an empty universe")
				}
				sched, err = scheduler.New(ctx, scheduler.Config{Cron: c.cfg.Schedule.Cron, Timezone: c.cfg.Schedule.Timezone}, cycles)
				if err != nil {
					return err
				}
				sched.Start()
				defer func() { <-sched.Stop().Done() }()
				if runOnStart {
					go sched.RunNow()
				}
			}

			srv := httpapi.NewServer(httpConfig(c), httpapi.Deps{
				Cycles:  svc,
				Risk:    func(ctx context.Context) (risk.Report, error) { return a.assess(ctx, time.Now()) },
				Metrics: a.metrics.Handler(),
				Version: version,
			})
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "YAML slot state file persisted after every applied cycle")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run one cycle immediately when the schedule is enabled")
	return cmd
}

func httpConfig(c *cli) httpapi.Config {
	cfg := httpapi.DefaultConfig()
	cfg.Addr = c.cfg.Server.Addr
	if c.cfg.Server.ReadTimeoutMS > 0 {
		cfg.ReadTimeout = time.Duration(c.cfg.Server.ReadTimeoutMS) * time.Millisecond
	}
	if c.cfg.Server.WriteTimeoutMS > 0 {
		cfg.WriteTimeout = time.Duration(c.cfg.Server.WriteTimeoutMS) * time.Millisecond
		cfg.RequestTimeout = cfg.WriteTimeout
	}
	return cfg
}

// persistingCycler saves slot state after every applied scheduled cycle
type persistingCycler struct {
	svc  *pipeline.Service
	path string
}

func (p persistingCycler) RunCycle(ctx context.Context, asOf time.Time) (pipeline.Result, error) {
	res, err := p.svc.RunCycle(ctx, asOf)
	if err != nil || p.path == "" || !res.Applied {
		return res, err
	}
	if err := slots.SaveFile(p.path, res.Slots); err != nil {
		log.Error().Err(err).Str("path", p.path).Msg("Slot state not saved")
	}
	return res, nil
}
