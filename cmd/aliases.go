package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	crmpkg "github.com/fullmind/leamatch/pkg/crm"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Sync CRM account names onto the registry",
}

var aliasesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull Salesforce account names keyed by NCES id",
	Long: `Queries Salesforce for district Accounts carrying an NCES id and writes
their names into the registry alias columns. The matcher scores these
aliases alongside the official directory names, so spellings the org
actually uses ("Alief ISD") resolve exactly.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("crm"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		client, err := initCRM()
		if err != nil {
			return err
		}

		state, _ := cmd.Flags().GetString("state")
		accounts, err := crmpkg.FetchDistrictAccounts(ctx, client, state)
		if err != nil {
			return err
		}

		aliases := crmpkg.DistrictAliases(accounts)
		if len(aliases) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No accounts with NCES ids found")
			return nil
		}

		n, err := store.UpdateAccountNames(ctx, aliases)
		if err != nil {
			return eris.Wrap(err, "aliases: update account names")
		}

		zap.L().Info("alias sync complete",
			zap.String("command", "aliases sync"),
			zap.Int("accounts", len(accounts)),
			zap.Int64("updated", n),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %d of %d aliases (unmatched LEAIDs are not in the registry)\n", n, len(aliases))
		return nil
	},
}

func init() {
	aliasesSyncCmd.Flags().String("state", "", "restrict to one billing state")
	aliasesCmd.AddCommand(aliasesSyncCmd)
	rootCmd.AddCommand(aliasesCmd)
}
