package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/corepipe/internal/mode"
	"github.com/sawpanic/corepipe/internal/pipeline"
	"github.com/sawpanic/corepipe/internal/slots"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		asOf      string
		statePath string
		confirm   []string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one decision cycle and print the brief",
		Example: `  corepipe run --symbols EQNR.OL,NHY.OL --as-of 2026-10-16
  corepipe run --mode PAPER --state data/slots.yaml --confirm EQNR.OL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(c.cfg.Universe) == 0 {
				return fmt.Errorf("empty universe: set universe in config or pass --symbols")
			}
			at, err := parseAsOf(asOf)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := a.runner(confirmSet(confirm))
			if err != nil {
				return err
			}
			state, err := loadState(statePath, c.cfg.Slots.MaxSlots)
			if err != nil {
				return err
			}

			res, err := runner.Run(ctx, state, c.cfg.Universe, at)
			if err != nil {
				return err
			}
			if statePath != "" && res.Applied {
				if err := slots.SaveFile(statePath, res.Slots); err != nil {
					return err
				}
				log.Info().Str("path", statePath).Int("active", len(res.Slots.Active)).Msg("Slot state saved")
			}
			return printResult(res, asJSON)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&statePath, "state", "", "YAML slot state file read before and written after an applied cycle")
	cmd.Flags().StringSliceVar(&confirm, "confirm", nil, "symbols whose first ENTER is confirmed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full cycle result as JSON")
	return cmd
}

func loadState(path string, maxSlots int) (slots.State, error) {
	if path == "" {
		return slots.Init(maxSlots)
	}
	return slots.LoadFile(path, maxSlots)
}

// confirmSet approves first ENTERs for the listed symbols
func confirmSet(symbols []string) mode.Confirmer {
	if len(symbols) == 0 {
		return nil
	}
	set := make(map[string]bool, len(symbols))
	for _, s := range pipeline.NormalizeUniverse(symbols) {
		set[s] = true
	}
	return mode.ConfirmerFunc(func(_ context.Context, symbol string) (bool, error) {
		return set[strings.ToUpper(symbol)], nil
	})
}

func printResult(res pipeline.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Print(res.Brief)
	if !res.Applied {
		fmt.Printf("\nNot applied: %s\n", res.BlockedReason)
		return nil
	}
	for _, s := range res.Admitted {
		fmt.Printf("\nAdmitted %s (%s)", s.Symbol, s.TradeID)
	}
	for _, id := range res.Closed {
		fmt.Printf("\nClosed %s", id)
	}
	if len(res.Pending) > 0 {
		fmt.Printf("\nPending confirmation: %s", strings.Join(res.Pending, ", "))
	}
	fmt.Printf("\nOpen slots: %d/%d\n", slots.OpenCount(res.Slots), res.Slots.MaxSlots)
	return nil
}
