package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// newLetterCmd creates the letter subcommand.
func (c *cli) newLetterCmd() *cobra.Command {
	var tone string

	cmd := &cobra.Command{
		Use:   "letter <customer-id>",
		Short: "Write a love letter from a customer's gift history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
				spin = ui.StartSpinner("Writing letter")
			}
			letter, err := engine.LoveLetter(ctx, args[0], tone)
			spin.Stop()
			if err != nil {
				return fmt.Errorf("letter failed: %w", err)
			}

			if c.outputJSON {
				return ui.JSON(letter)
			}
			if letter.Customer == nil {
				ui.Warning("No profile for %s", args[0])
			}
			ui.Section("Love letter")
			ui.Text(letter.Letter.Text)
			ui.Newline()
			ui.KeyValue("Source", letter.Letter.Source)
			ui.KeyValue("Gifts referenced", len(letter.Events))
			return nil
		},
	}

	cmd.Flags().StringVar(&tone, "tone", "", "tone of the letter, e.g. playful or romantic")
	return cmd
}

// newChatCmd creates the chat subcommand.
func (c *cli) newChatCmd() *cobra.Command {
	var filter storage.SalesFilter

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask the sales assistant a question",
		Long: `Chat answers a question from the sales aggregates. Filters narrow the
figures the assistant sees.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			engine, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			question := strings.Join(args, " ")
			ui := c.ui(cmd)
			var spin *Spinner
			if engine.RemoteGeneration() {
				spin = ui.StartSpinner("Thinking")
			}
			answer, err := engine.SalesChat(ctx, question, filter)
			spin.Stop()
			if err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}

			if c.outputJSON {
				return ui.JSON(map[string]interface{}{
					"question": question,
					"filter":   filter,
					"answer":   answer,
				})
			}
			ui.Text(answer.Text)
			if answer.Err != "" {
				ui.Warning("Remote generation failed: %s", answer.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Category, "category", "", "only sales in this product category")
	cmd.Flags().StringVar(&filter.Channel, "channel", "", "only sales through this channel")
	cmd.Flags().StringVar(&filter.Country, "country", "", "only sales to this country code")
	cmd.Flags().StringVar(&filter.Month, "month", "", "only sales in this month (YYYY-MM)")
	return cmd
}
