// Package main provides the giftlab CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cupid-chocolate/giftlab/internal/config"
	"github.com/cupid-chocolate/giftlab/internal/observability"
	"github.com/cupid-chocolate/giftlab/internal/storage"
	"github.com/cupid-chocolate/giftlab/pkg/storefront"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "0.1.0"

// cli holds the global flags and what PersistentPreRunE derives from them.
type cli struct {
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *observability.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "giftlab-cli",
		Short: "Giftlab CLI for loading data, searching and planning gifts",
		Long: `Giftlab CLI works against the storefront database directly.

Use this tool to:
- Create the schema and import the CSV datasets
- Search products and recommend gifts for customers
- Write love letters and ask the sales assistant
- Plan gift experiences, quote orders and review supply chain risk

All commands support --json for automation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg

			level := cfg.Observability.LogLevel
			if c.verbose {
				level = "debug"
			}
			logFormat := "console"
			if c.outputJSON {
				logFormat = "json"
			}
			c.logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      logFormat,
				ServiceName: "giftlab-cli",
				Output:      cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path (default: uses env vars)")
	root.PersistentFlags().BoolVar(&c.outputJSON, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		c.newMigrateCmd(),
		c.newLoadCmd(),
		c.newSearchCmd(),
		c.newRecommendCmd(),
		c.newLetterCmd(),
		c.newChatCmd(),
		c.newPlanCmd(),
		c.newConciergeCmd(),
		c.newAlertsCmd(),
		c.newQuoteCmd(),
		c.newMatchCmd(),
		c.newAnalyticsCmd(),
		c.newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *cli) ui(cmd *cobra.Command) *UI {
	return NewUI(cmd.OutOrStdout(), cmd.ErrOrStderr(), c.outputJSON, c.noColor)
}

// openEngine starts a storefront engine without the file watcher; CLI
// commands are short-lived.
func (c *cli) openEngine(ctx context.Context) (*storefront.Engine, error) {
	cfg := *c.cfg
	cfg.Search.WatchDatabase = false
	engine, err := storefront.New(ctx, &cfg, storefront.WithLogger(c.logger))
	if err != nil {
		return nil, fmt.Errorf("open storefront: %w", err)
	}
	return engine, nil
}

// newMigrateCmd creates the migrate subcommand.
func (c *cli) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the storefront schema",
		Long: `Create every storefront table and index if missing. Safe to run
repeatedly against SQLite or Postgres.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := storage.Open(c.cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			c.logger.Info().
				Str("driver", c.cfg.Database.Driver).
				Int("tables", len(storage.Tables)).
				Msg("Running migrations")

			if err := storage.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			ui := c.ui(cmd)
			if c.outputJSON {
				return ui.JSON(map[string]interface{}{
					"driver": c.cfg.Database.Driver,
					"tables": len(storage.Tables),
				})
			}
			ui.Success("Schema ready on %s (%d tables)", c.cfg.Database.Driver, len(storage.Tables))
			return nil
		},
	}
}

// newVersionCmd creates the version subcommand.
func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip config loading so version works anywhere.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.outputJSON {
				return c.ui(cmd).JSON(map[string]string{
					"version": Version,
					"go":      runtime.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "giftlab-cli v%s\n", Version)
			return nil
		},
	}
}
