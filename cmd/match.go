package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fullmind/leamatch/internal/ingest"
	"github.com/fullmind/leamatch/internal/match"
	"github.com/fullmind/leamatch/internal/registry"
)

var matchCmd = &cobra.Command{
	Use:   "match <workbook>",
	Short: "Match a deduping workbook against the district registry",
	Long: `Reads a CSV or XLSX workbook of district names, resolves each row to an
NCES LEAID, applies the curated override table, and writes the review CSV.

By default the run and its results are saved to the store so the report
server can serve them later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("match"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		log := zap.L().With(zap.String("command", "match"))

		districts, err := store.Districts(ctx)
		if err != nil {
			return eris.Wrap(err, "match: load districts")
		}
		if len(districts) == 0 {
			return eris.New("match: registry is empty; run `leamatch registry load` first")
		}
		log.Info("registry loaded", zap.Int("districts", len(districts)))

		overrides, err := loadOverrideTable(ctx, cmd, store)
		if err != nil {
			return err
		}

		records, err := ingest.ReadWorkbook(ctx, args[0])
		if err != nil {
			return err
		}
		log.Info("workbook read", zap.String("path", args[0]), zap.Int("rows", len(records)))

		resolver := match.NewResolver(match.NewIndex(districts), cfg.Match.MinOverlapTokens)
		outputs, stats := match.NewPipeline(resolver, overrides).Run(records)

		if err := writeReport(cmd, outputs); err != nil {
			return err
		}

		noSave, _ := cmd.Flags().GetBool("no-save")
		if !noSave {
			if err := saveRun(ctx, store, filepath.Base(args[0]), outputs, stats); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%d rows: %d matched, %d unmatched, %d overridden, %d skipped, %d dupes\n",
			stats.Total, stats.Matched, stats.Unmatched, stats.Overridden, stats.Skipped, stats.Dupes)
		return nil
	},
}

func init() {
	matchCmd.Flags().String("output", "", "report CSV path (default: stdout)")
	matchCmd.Flags().String("overrides", "", "override file (.yaml or .csv) to use instead of the stored table")
	matchCmd.Flags().Bool("no-save", false, "do not persist the run to the store")
	rootCmd.AddCommand(matchCmd)
}

// loadOverrideTable prefers an explicit file over the stored table.
func loadOverrideTable(ctx context.Context, cmd *cobra.Command, store registry.Store) (*match.OverrideTable, error) {
	if path, _ := cmd.Flags().GetString("overrides"); path != "" {
		overrides, err := ingest.LoadOverrides(ctx, path)
		if err != nil {
			return nil, err
		}
		return match.NewOverrideTable(overrides), nil
	}

	rows, err := store.Overrides(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "match: load stored overrides")
	}
	return match.NewOverrideTable(ingest.OverridesFromRows(rows)), nil
}

func writeReport(cmd *cobra.Command, outputs []match.Output) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return ingest.WriteReport(cmd.OutOrStdout(), outputs)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "match: create report file")
	}
	defer f.Close() //nolint:errcheck
	return ingest.WriteReport(f, outputs)
}

func saveRun(ctx context.Context, store registry.Store, source string, outputs []match.Output, stats *match.Stats) error {
	run, err := store.CreateRun(ctx, source)
	if err != nil {
		return eris.Wrap(err, "match: create run")
	}

	if _, err := store.SaveResults(ctx, run.ID, ingest.ResultRows(outputs)); err != nil {
		// Mark the run failed so the server never presents partial data
		// as a finished run.
		_ = store.CompleteRun(ctx, run.ID, registry.RunStatusFailed, nil)
		return eris.Wrap(err, "match: save results")
	}

	if err := store.CompleteRun(ctx, run.ID, registry.RunStatusComplete, ingest.RunSummary(stats)); err != nil {
		return eris.Wrap(err, "match: complete run")
	}

	zap.L().Info("run saved",
		zap.String("command", "match"),
		zap.String("run_id", run.ID),
		zap.Int("results", len(outputs)),
	)
	return nil
}
