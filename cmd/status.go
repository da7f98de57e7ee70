package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fullmind/leamatch/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry coverage and recent runs",
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

		cov, err := store.Coverage(ctx)
		if err != nil {
			return eris.Wrap(err, "status: coverage")
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Districts:  %d (%d with CRM accounts)\n", cov.Districts, cov.WithAccount)
		fmt.Fprintf(w, "Overrides:  %d\n", cov.Overrides)
		fmt.Fprintf(w, "Runs:       %d\n", cov.Runs)

		if verbose, _ := cmd.Flags().GetBool("by-state"); verbose && len(cov.DistrictsByState) > 0 {
			states := make([]string, 0, len(cov.DistrictsByState))
			for s := range cov.DistrictsByState {
				states = append(states, s)
			}
			sort.Strings(states)
			fmt.Fprintln(w)
			for _, s := range states {
				fmt.Fprintf(w, "  %-5s %d\n", s, cov.DistrictsByState[s])
			}
		}

		runs, err := store.ListRuns(ctx, registry.RunFilter{Limit: 5})
		if err != nil {
			return eris.Wrap(err, "status: list runs")
		}
		if len(runs) > 0 {
			fmt.Fprintln(w, "\nRecent runs:")
			for _, r := range runs {
				line := fmt.Sprintf("  %s  %-8s %-30s %s", r.ID, r.Status, r.Source, r.CreatedAt.Format("2006-01-02 15:04"))
				if r.Summary != nil {
					line += fmt.Sprintf("  %d/%d matched", r.Summary.Matched, r.Summary.Total)
				}
				fmt.Fprintln(w, line)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("by-state", false, "break down district counts by state")
	rootCmd.AddCommand(statusCmd)
}
