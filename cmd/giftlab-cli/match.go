package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newMatchCmd creates the match subcommand.
func (c *cli) newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <user-a> <user-b>",
		Short: "Score the compatibility of two matchmaking users",
		Long: `Match compares the personality traits of two users and lists the
interests they share. Identical profiles score 100.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			res, err := engine.Compatibility(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("match failed: %w", err)
			}
			if res == nil {
				return fmt.Errorf("user %s or %s not found", args[0], args[1])
			}

			ui := c.ui(cmd)
			if c.outputJSON {
				return ui.JSON(res)
			}
			ui.Section(res.UserA.UserID + " and " + res.UserB.UserID)
			ui.KeyValue("Compatibility", fmt.Sprintf("%.1f%%", res.Score))
			if len(res.Overlap) > 0 {
				ui.KeyValue("Shared interests", strings.Join(res.Overlap, ", "))
			} else {
				ui.Info("No shared interests")
			}
			return nil
		},
	}
	return cmd
}

// newAnalyticsCmd creates the analytics subcommand.
func (c *cli) newAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show row counts and gift averages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			overview, err := engine.AnalyticsOverview(ctx)
			if err != nil {
				return fmt.Errorf("analytics failed: %w", err)
			}

			ui := c.ui(cmd)
			if c.outputJSON {
				return ui.JSON(overview)
			}
			rows := make([][]string, 0, len(overview.Tables))
			for _, t := range overview.Tables {
				rows = append(rows, []string{t.Table, fmt.Sprintf("%d", t.Rows)})
			}
			ui.Table([]string{"Table", "Rows"}, rows)
			ui.KeyValue("Average rating", formatRating(overview.AvgRating))
			ui.KeyValue("Average discount", formatPercent(overview.AvgDiscount))
			ui.KeyValue("Average price", formatPrice(overview.AvgPrice))
			return nil
		},
	}
}

func formatPercent(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *p)
}
