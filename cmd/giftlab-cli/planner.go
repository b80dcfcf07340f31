package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cupid-chocolate/giftlab/internal/planner"
	"github.com/cupid-chocolate/giftlab/internal/storage"
)

func addConciergeFlags(cmd *cobra.Command, req *planner.ConciergeRequest) {
	cmd.Flags().Float64Var(&req.Budget, "budget", 0, "maximum unit price (required)")
	cmd.Flags().StringVar(&req.Persona, "persona", "romantic", "recipient persona")
	cmd.Flags().StringVar(&req.DeliverySpeed, "delivery", "express", "delivery speed")
	_ = cmd.MarkFlagRequired("budget")
}

func validateBudget(budget float64) error {
	if budget <= 0 {
		return fmt.Errorf("--budget must be positive")
	}
	return nil
}

func conciergeRows(rows []storage.ConciergeRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.ProductName,
			r.ProductCategory,
			formatPrice(r.UnitPrice),
			formatRating(r.Rating),
			r.Delivery,
		})
	}
	return out
}

var conciergeHeaders = []string{"Product", "Category", "Price", "Rating", "Delivery"}

// newConciergeCmd creates the concierge subcommand.
func (c *cli) newConciergeCmd() *cobra.Command {
	var (
		req   planner.ConciergeRequest
		limit int
	)

	cmd := &cobra.Command{
		Use:   "concierge",
		Short: "Find gifts within a budget",
		Long: `Concierge lists gifts within budget that match the persona and delivery
speed, best rated first. When nothing matches exactly it widens to any gift
within budget.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateBudget(req.Budget); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			rows, err := engine.Concierge(ctx, req, limit)
			if err != nil {
				return fmt.Errorf("concierge failed: %w", err)
			}

			ui := c.ui(cmd)
			if c.outputJSON {
				return ui.JSON(map[string]interface{}{"request": req, "recommendations": rows})
			}
			if len(rows) == 0 {
				ui.Warning("No gifts within $%.2f", req.Budget)
				return nil
			}
			ui.Table(conciergeHeaders, conciergeRows(rows))
			return nil
		},
	}

	addConciergeFlags(cmd, &req)
	cmd.Flags().IntVar(&limit, "limit", planner.DefaultConciergeLimit, "maximum gifts")
	return cmd
}

// newPlanCmd creates the plan subcommand.
func (c *cli) newPlanCmd() *cobra.Command {
	var req planner.PlanRequest

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a Valentine experience plan",
		Long: `Plan picks the top gifts within budget, checks supply chain risk for the
best one and delivery reliability for the region, and summarizes the plan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateBudget(req.Budget); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			ui := c.ui(cmd)
			var spin *Spinner
			if engine.RemoteGeneration() {
				spin = ui.StartSpinner("Planning")
			}
			plan, err := engine.ExperiencePlan(ctx, req)
			spin.Stop()
			if err != nil {
				return fmt.Errorf("plan failed: %w", err)
			}

			if c.outputJSON {
				return ui.JSON(plan)
			}

			ui.Section("Experience plan")
			if len(plan.Recommendations) > 0 {
				ui.Table(conciergeHeaders, conciergeRows(plan.Recommendations))
			} else {
				ui.Warning("No gifts within $%.2f", req.Budget)
			}
			if plan.RiskScore != nil {
				ui.KeyValue("Supply risk for "+plan.TopGift, fmt.Sprintf("%.2f", *plan.RiskScore))
			}
			if r := plan.Delivery.Routing; r != nil {
				ui.KeyValue("Routing "+r.Region, fmt.Sprintf("p95 %.0fms, failure %.1f%%", r.P95LatencyMs, r.FailureRate*100))
			}
			if s := plan.Delivery.SuccessRate; s != nil {
				ui.KeyValue("Delivery success", fmt.Sprintf("%.1f%%", *s*100))
			}
			ui.Newline()
			for i, step := range plan.Steps {
				ui.Info("%d. %s: %s", i+1, step.Title, step.Detail)
			}
			ui.Newline()
			ui.Text(plan.Summary.Text)
			return nil
		},
	}

	addConciergeFlags(cmd, &req.ConciergeRequest)
	cmd.Flags().StringVar(&req.Region, "region", "", "delivery region, e.g. us-east")
	return cmd
}

// newAlertsCmd creates the alerts subcommand.
func (c *cli) newAlertsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List the riskiest products in the supply chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			alerts, err := engine.SupplyChainAlerts(ctx, limit)
			if err != nil {
				return fmt.Errorf("alerts failed: %w", err)
			}

			ui := c.ui(cmd)
			if c.outputJSON {
				return ui.JSON(map[string]interface{}{"alerts": alerts})
			}
			if len(alerts) == 0 {
				ui.Success("No supply chain data")
				return nil
			}
			rows := make([][]string, 0, len(alerts))
			for _, a := range alerts {
				rows = append(rows, []string{
					a.ProductName,
					fmt.Sprintf("%.2f", a.Risk),
					fmt.Sprintf("%.0f", a.LeadTimeDays),
					fmt.Sprintf("%.0f", a.StockLevel),
					a.DelayReason,
				})
			}
			ui.Table([]string{"Product", "Risk", "Lead days", "Stock", "Delay"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", planner.DefaultAlertLimit, "maximum alerts")
	return cmd
}

// newQuoteCmd creates the quote subcommand.
func (c *cli) newQuoteCmd() *cobra.Command {
	var (
		quantity int
		tier     string
	)

	cmd := &cobra.Command{
		Use:   "quote <product-id>",
		Short: "Price an order with the loyalty discount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			quote, err := engine.Quote(ctx, args[0], quantity, tier)
			if err != nil {
				return fmt.Errorf("quote failed: %w", err)
			}
			if quote == nil {
				return fmt.Errorf("product %s not found", args[0])
			}

			ui := c.ui(cmd)
			if c.outputJSON {
				return ui.JSON(quote)
			}
			ui.Section("Quote for " + quote.Product.ProductName)
			ui.KeyValue("Unit price", formatPrice(quote.Product.UnitPrice))
			ui.KeyValue("Quantity", quote.Quantity)
			ui.KeyValue("Subtotal", fmt.Sprintf("$%.2f", quote.Subtotal))
			ui.KeyValue("Discount", fmt.Sprintf("%.0f%%", quote.Discount*100))
			ui.KeyValue("Total", fmt.Sprintf("$%.2f", quote.Total))
			return nil
		},
	}

	cmd.Flags().IntVar(&quantity, "quantity", 1, "units to order")
	cmd.Flags().StringVar(&tier, "tier", "", "loyalty tier: Bronze, Silver, Gold or Platinum")
	return cmd
}
