package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Search the registry by name",
	Long: `Case-insensitive search over district names and CRM account names.
Useful when curating overrides: find the LEAID to pin a name to.`,
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

		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		districts, err := store.SearchDistricts(ctx, strings.ToUpper(state), args[0], limit)
		if err != nil {
			return eris.Wrap(err, "lookup: search districts")
		}
		if len(districts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No districts found")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-8s %-5s %-50s %s\n", "LEAID", "State", "Name", "Account Name")
		for _, d := range districts {
			fmt.Fprintf(w, "%-8s %-5s %-50s %s\n", d.LEAID, d.StateAbbrev, d.Name, d.AccountName)
		}
		return nil
	},
}

func init() {
	lookupCmd.Flags().String("state", "", "restrict to one state abbreviation")
	lookupCmd.Flags().Int("limit", 20, "maximum results")
	rootCmd.AddCommand(lookupCmd)
}
