package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fullmind/leamatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leamatch",
	Short: "District entity resolution against the NCES LEAID registry",
	Long:  "Matches free-text school district names from revenue workbooks to canonical NCES LEAID identifiers, with confidence tiers, ranked alternates, and a curated override layer.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
