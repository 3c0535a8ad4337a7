package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lensgate/lensgate/internal/config"
	"github.com/lensgate/lensgate/internal/output"
	"github.com/lensgate/lensgate/internal/store"
)

var (
	historyOutput      string
	historyLimit       int
	historyExhaustions bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent dispatch outcomes from the audit store",
	Long: `List recent dispatch outcomes from the audit store.

With --exhaustions, list persisted credential exhaustion marks instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(historyOutput)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		var rendered string
		if historyExhaustions {
			records, err := db.ListExhaustions(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			rendered, err = output.FormatExhaustions(format, records)
			if err != nil {
				return err
			}
		} else {
			records, err := db.ListOutcomes(cmd.Context(), historyLimit)
			if err != nil {
				return err
			}
			rendered, err = output.FormatHistory(format, records)
			if err != nil {
				return err
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

// openStore opens the configured audit store and applies migrations.
func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of entries to list")
	historyCmd.Flags().BoolVar(&historyExhaustions, "exhaustions", false, "List credential exhaustion marks instead of outcomes")
}
