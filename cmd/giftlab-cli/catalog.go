package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cupid-chocolate/giftlab/internal/recommend"
	"github.com/cupid-chocolate/giftlab/internal/storage"
	"github.com/cupid-chocolate/giftlab/pkg/storefront"
)

// newLoadCmd creates the load subcommand.
func (c *cli) newLoadCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Import the CSV datasets into the database",
		Long: `Load creates the schema and imports each configured dataset from the
data directory. Tables that already hold rows are skipped unless --force
is given. The search index is rebuilt on the next query.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			ui := c.ui(cmd)
			sizer := engine.NewLoader()
			sizes := make(map[string]int64)
			order := make([]string, 0, len(storage.Tables))
			for _, t := range storage.Tables {
				sizes[t.Name] = sizer.DatasetSize(t.Name)
				order = append(order, t.Name)
			}
			bars := ui.NewLoadBars(sizes, order)

			c.logger.Info().
				Str("data_dir", c.cfg.Loader.DataDir).
				Bool("force", force).
				Msg("Loading datasets")

			start := time.Now()
			results, err := engine.Load(ctx, storage.WithForce(force), storage.WithProgress(bars.Update))
			bars.Finish()
			if err != nil {
				return fmt.Errorf("load failed: %w", err)
			}

			if c.outputJSON {
				return ui.JSON(map[string]interface{}{
					"tables":   results,
					"duration": time.Since(start).String(),
				})
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := fmt.Sprintf("%d rows", r.Rows)
				if r.Skipped {
					status = "skipped (has data)"
				}
				rows = append(rows, []string{r.Table, status})
			}
			ui.Table([]string{"Table", "Result"}, rows)
			ui.Success("Loaded %d tables in %s", len(results), FormatDuration(time.Since(start)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace rows in tables that already hold data")
	return cmd
}

// newSearchCmd creates the search subcommand.
func (c *cli) newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the product catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			query := strings.Join(args, " ")
			hits, err := engine.Search(ctx, query, limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			ui := c.ui(cmd)
			if c.outputJSON {
				return ui.JSON(map[string]interface{}{"query": query, "results": hits})
			}
			if len(hits) == 0 {
				ui.Warning("No products match %q", query)
				return nil
			}

			rows := make([][]string, 0, len(hits))
			for _, h := range hits {
				rows = append(rows, []string{
					h.Record.ProductID,
					h.Record.ProductName,
					h.Record.Category,
					formatPrice(h.Record.UnitPrice),
					formatRating(h.Record.AvgRating),
					fmt.Sprintf("%.3f", h.Score),
				})
			}
			ui.Table([]string{"ID", "Product", "Category", "Price", "Rating", "Score"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default from config)")
	return cmd
}

// batchSummary is the outcome of recommend --all.
type batchSummary struct {
	RunID     string                        `json:"runId"`
	Customers int                           `json:"customers"`
	Tiers     map[recommend.Tier]int        `json:"tiers"`
	Results   []*storefront.RecommendResult `json:"results"`
	Failed    map[string]string             `json:"failed,omitempty"`
	Duration  string                        `json:"duration"`
}

// newRecommendCmd creates the recommend subcommand.
func (c *cli) newRecommendCmd() *cobra.Command {
	var (
		limit        int
		all          bool
		maxCustomers int
	)

	cmd := &cobra.Command{
		Use:   "recommend [customer-id]",
		Short: "Recommend gifts for one customer or all customers",
		Long: `Recommend runs the tier chain (personal history, similar customers,
persona, global) for a customer, scores the candidates and explains each
pick. Use --all to run a batch over the customer table.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			if all {
				return c.recommendAll(ctx, cmd, engine, limit, maxCustomers)
			}

			res, err := engine.Recommend(ctx, args[0], limit)
			if err != nil {
				return fmt.Errorf("recommend failed: %w", err)
			}

			ui := c.ui(cmd)
			if c.outputJSON {
				return ui.JSON(res)
			}
			printRecommendation(ui, res)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "recommendations per customer (default from config)")
	cmd.Flags().BoolVar(&all, "all", false, "recommend for every customer")
	cmd.Flags().IntVar(&maxCustomers, "max-customers", storefront.DefaultListLimit, "customers to process with --all")
	return cmd
}

func (c *cli) recommendAll(ctx context.Context, cmd *cobra.Command, engine *storefront.Engine, limit, maxCustomers int) error {
	customers, err := engine.Customers(ctx, maxCustomers)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}

	summary := batchSummary{
		RunID:     uuid.NewString(),
		Customers: len(customers),
		Tiers:     make(map[recommend.Tier]int),
		Results:   make([]*storefront.RecommendResult, 0, len(customers)),
		Failed:    make(map[string]string),
	}
	logger := c.logger.WithOperation("recommend_batch")
	logger.Info().Str("run_id", summary.RunID).Int("customers", len(customers)).Msg("Starting batch")

	ui := c.ui(cmd)
	bar := ui.NewBatchBar(len(customers), "Recommending")
	start := time.Now()
	for _, cust := range customers {
		res, err := engine.Recommend(ctx, cust.CustomerID, limit)
		bar.Add()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn().Err(err).Str("run_id", summary.RunID).Str("customer_id", cust.CustomerID).Msg("Recommendation failed")
			summary.Failed[cust.CustomerID] = err.Error()
			continue
		}
		summary.Tiers[res.Tier]++
		summary.Results = append(summary.Results, res)
	}
	bar.Finish()
	summary.Duration = time.Since(start).String()

	logger.Info().
		Str("run_id", summary.RunID).
		Int("succeeded", len(summary.Results)).
		Int("failed", len(summary.Failed)).
		Msg("Batch finished")

	if c.outputJSON {
		return ui.JSON(summary)
	}

	ui.Section("Batch " + summary.RunID)
	ui.KeyValue("Customers", summary.Customers)
	for _, tier := range []recommend.Tier{recommend.TierPersonal, recommend.TierCohort, recommend.TierPersona, recommend.TierGlobal, recommend.TierNone} {
		if n := summary.Tiers[tier]; n > 0 {
			ui.KeyValue(string(tier), n)
		}
	}
	if len(summary.Failed) > 0 {
		ui.Warning("%d customers failed", len(summary.Failed))
	}
	ui.Success("Batch finished in %s", FormatDuration(time.Since(start)))
	return nil
}

func printRecommendation(ui *UI, res *storefront.RecommendResult) {
	ui.Section("Gifts for " + res.CustomerID)
	ui.KeyValue("Tier", res.Tier)
	ui.KeyValue("Explanations", res.ExplanationSource)
	if res.ExplanationError != "" {
		ui.Warning("Explanations fell back: %s", res.ExplanationError)
	}
	if len(res.Recommendations) == 0 {
		ui.Warning("No recommendations available")
		return
	}

	rows := make([][]string, 0, len(res.Recommendations))
	for i, r := range res.Recommendations {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			r.ProductName,
			r.ProductCategory,
			formatPrice(r.UnitPrice),
			fmt.Sprintf("%.2f", r.AIRating),
			r.Why,
		})
	}
	ui.Table([]string{"#", "Product", "Category", "Price", "Score", "Why"}, rows)
}
