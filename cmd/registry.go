package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fullmind/leamatch/internal/edudata"
	"github.com/fullmind/leamatch/internal/fetcher"
	"github.com/fullmind/leamatch/internal/ingest"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the district registry",
}

var registryLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the LEA directory from the Education Data API",
	Long: `Fetches the CCD school district directory from the Urban Institute
Education Data API and upserts it into the districts table. CRM alias
columns are preserved across reloads.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "registry: migrate")
		}

		if csvPath, _ := cmd.Flags().GetString("csv"); csvPath != "" {
			districts, err := ingest.ReadDistrictCSV(ctx, csvPath)
			if err != nil {
				return err
			}
			n, err := store.UpsertDistricts(ctx, districts)
			if err != nil {
				return eris.Wrap(err, "registry: upsert districts")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d districts from %s\n", n, csvPath)
			return nil
		}

		var states []string
		if statesStr, _ := cmd.Flags().GetString("states"); statesStr != "" {
			states = toUpper(splitAndTrim(statesStr))
		}
		year, _ := cmd.Flags().GetInt("year")
		if year == 0 {
			year = cfg.Edudata.DirectoryYear
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			RateLimiters: map[string]*rate.Limiter{
				"educationdata.urban.org": rate.NewLimiter(rate.Limit(cfg.Edudata.RatePerSec), 5),
			},
		})
		client := edudata.NewClient(f, edudata.Options{
			BaseURL:        cfg.Edudata.BaseURL,
			DirectoryYear:  year,
			MaxConcurrency: cfg.Edudata.MaxConcurrency,
		})

		districts, err := client.Districts(ctx, states)
		if err != nil {
			return eris.Wrap(err, "registry: fetch directory")
		}

		n, err := store.UpsertDistricts(ctx, districts)
		if err != nil {
			return eris.Wrap(err, "registry: upsert districts")
		}

		zap.L().Info("registry load complete",
			zap.String("command", "registry load"),
			zap.Int("year", year),
			zap.Int64("districts", n),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d districts (directory year %d)\n", n, year)
		return nil
	},
}

func init() {
	registryLoadCmd.Flags().String("states", "", "comma-separated state abbreviations (default: all 50 + DC)")
	registryLoadCmd.Flags().Int("year", 0, "CCD directory year (default: from config)")
	registryLoadCmd.Flags().String("csv", "", "load from a local NCES directory CSV instead of the API")
	registryCmd.AddCommand(registryLoadCmd)
	rootCmd.AddCommand(registryCmd)
}
