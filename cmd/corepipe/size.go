package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sawpanic/corepipe/internal/risk"
)

func newSizeCmd(c *cli) *cobra.Command {
	var (
		price, stop, target, capital, maxRisk string
		asJSON                                bool
	)
	cmd := &cobra.Command{
		Use:     "size SYMBOL",
		Short:   "Size a planned entry so the stop risks a fixed share of capital",
		Example: "  corepipe size EQNR.OL --price 250 --stop 235 --target 290 --capital 500000",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := risk.SizingParams{Symbol: strings.ToUpper(args[0])}
			for _, f := range []struct {
				name string
				raw  string
				dst  *decimal.Decimal
			}{
				{"price", price, &p.Price},
				{"stop", stop, &p.Stop},
				{"target", target, &p.Target},
				{"capital", capital, &p.PortfolioValue},
				{"max-risk-pct", maxRisk, &p.MaxRiskPct},
			} {
				if f.raw == "" {
					continue
				}
				v, err := decimal.NewFromString(f.raw)
				if err != nil {
					return fmt.Errorf("--%s: %w", f.name, err)
				}
				*f.dst = v
			}

			s, err := risk.PositionSize(p)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(s)
			}
			fmt.Printf("%s: buy %d shares (%s, %s%% of capital)\n", s.Symbol, s.Shares, s.Value.StringFixed(2), s.PositionPct.StringFixed(1))
			fmt.Printf("  max loss %s, stop distance %s%%\n", s.MaxLoss.StringFixed(2), s.StopRiskPct.StringFixed(2))
			if !p.Target.IsZero() {
				fmt.Printf("  potential gain %s, reward/risk %s\n", s.PotentialGain.StringFixed(2), s.RiskReward.StringFixed(2))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "planned entry price")
	cmd.Flags().StringVar(&stop, "stop", "", "initial stop price")
	cmd.Flags().StringVar(&target, "target", "", "price target (optional)")
	cmd.Flags().StringVar(&capital, "capital", "", "portfolio value")
	cmd.Flags().StringVar(&maxRisk, "max-risk-pct", "", "percent of capital risked (default 2)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("stop")
	_ = cmd.MarkFlagRequired("capital")
	return cmd
}
