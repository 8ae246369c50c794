package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sawpanic/corepipe/internal/risk"
)

func newRiskCmd(c *cli) *cobra.Command {
	var (
		asOf   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Compute the risk report for the configured trade book",
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.assess(cmd.Context(), at)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return writeRisk(os.Stdout, report)
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func writeRisk(w io.Writer, r risk.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Holdings\t%d\n", r.Holdings)
	fmt.Fprintf(tw, "Value\t%.2f\n", r.TotalValue)
	fmt.Fprintf(tw, "Unrealized P&L\t%.2f (%.2f%%)\n", r.UnrealizedPnL, r.UnrealizedPnLPct)
	fmt.Fprintf(tw, "Beta\t%.2f\n", r.Beta)
	fmt.Fprintf(tw, "VaR 1d (%.0f%%)\t%.2f (%.2f%%)\n", r.VaRConfidence*100, r.VaR1Day, r.VaR1DayPct)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", r.MaxDrawdown)
	if r.SharpeDefined {
		fmt.Fprintf(tw, "Sharpe\t%.2f\n", r.Sharpe)
	} else {
		fmt.Fprintf(tw, "Sharpe\tn/a\n")
	}
	fmt.Fprintf(tw, "Risk level\t%s (score %d)\n", r.Level, r.Score)

	if len(r.Sectors) > 0 {
		fmt.Fprintln(tw, "\nSector\tWeight\tRisk")
		for _, s := range r.Sectors {
			fmt.Fprintf(tw, "%s\t%.1f%%\t%s\n", s.Sector, s.Weight*100, s.Risk)
		}
	}
	if len(r.TopHoldings) > 0 {
		fmt.Fprintln(tw, "\nSymbol\tWeight\tBeta")
		for _, h := range r.TopHoldings {
			fmt.Fprintf(tw, "%s\t%.1f%%\t%.2f\n", h.Symbol, h.Weight*100, h.Beta)
		}
	}
	for _, p := range r.CorrelatedPairs {
		fmt.Fprintf(tw, "Correlated\t%s / %s\t%.2f\n", p.A, p.B, p.Correlation)
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(tw, "Warning\t%s\n", msg)
	}
	for _, msg := range r.Suggestions {
		fmt.Fprintf(tw, "Suggestion\t%s\n", msg)
	}
	return tw.Flush()
}
