package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fullmind/leamatch/internal/ingest"
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Manage the curated override table",
}

var overridesLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Replace the stored override table from a curated file",
	Long: `Validates and loads a curated override file (.yaml or .csv) and replaces
the stored table wholesale. The file is the source of truth; partial
loads are never applied.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("match"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		overrides, err := ingest.LoadOverrides(ctx, args[0])
		if err != nil {
			return err
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "overrides: migrate")
		}

		n, err := store.ReplaceOverrides(ctx, ingest.OverrideRows(overrides))
		if err != nil {
			return eris.Wrap(err, "overrides: replace")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d overrides from %s\n", n, args[0])
		return nil
	},
}

var overridesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the stored override table",
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		rows, err := store.Overrides(ctx)
		if err != nil {
			return eris.Wrap(err, "overrides: list")
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No overrides stored")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-40s %-5s %-8s %-18s %s\n", "Name", "State", "LEAID", "Outcome", "Confidence")
		for _, r := range rows {
			fmt.Fprintf(w, "%-40s %-5s %-8s %-18s %s\n", r.NameKey, r.StateKey, r.LEAID, r.Outcome, r.Confidence)
		}
		return nil
	},
}

func init() {
	overridesCmd.AddCommand(overridesLoadCmd)
	overridesCmd.AddCommand(overridesListCmd)
	rootCmd.AddCommand(overridesCmd)
}
