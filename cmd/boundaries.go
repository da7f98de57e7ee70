package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fullmind/leamatch/internal/fetcher"
	"github.com/fullmind/leamatch/internal/geo"
)

var boundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Manage district boundary geometries",
}

var boundariesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load NCES EDGE school district boundaries into PostGIS",
	Long: `Downloads the EDGE composite school district shapefile for a school year
and replaces the district_boundaries table. Requires the postgres store
driver and the PostGIS extension.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("boundaries"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := boundariesPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if showStatus, _ := cmd.Flags().GetBool("status"); showStatus {
			return printBoundaryStatus(ctx, pool, cmd)
		}

		schoolYear, _ := cmd.Flags().GetString("school-year")

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
		n, err := geo.Load(ctx, pool, f, geo.LoadOptions{
			BaseURL:    cfg.Boundaries.BaseURL,
			SchoolYear: schoolYear,
			TempDir:    cfg.Boundaries.TempDir,
		})
		if err != nil {
			return eris.Wrap(err, "boundaries: load")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d district boundaries (SY%s)\n", n, schoolYear)
		return nil
	},
}

var boundariesLocateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Find the district containing a point",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("boundaries"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := boundariesPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		lon, _ := cmd.Flags().GetFloat64("lon")
		lat, _ := cmd.Flags().GetFloat64("lat")

		b, err := geo.DistrictAt(ctx, pool, lon, lat)
		if err != nil {
			return err
		}
		if b == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No district boundary contains (%f, %f)\n", lon, lat)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (state FIPS %s, SY %s)\n", b.LEAID, b.Name, b.StateFIPS, b.SchoolYear)
		return nil
	},
}

func printBoundaryStatus(ctx context.Context, pool *pgxpool.Pool, cmd *cobra.Command) error {
	status, err := geo.LoadStatus(ctx, pool)
	if err != nil {
		return eris.Wrap(err, "boundaries: get status")
	}

	w := cmd.OutOrStdout()
	if len(status) == 0 {
		fmt.Fprintln(w, "No boundaries loaded yet")
		return nil
	}

	fmt.Fprintf(w, "%-12s %10s %12s %s\n", "School Year", "Rows", "Duration", "Loaded At")
	fmt.Fprintln(w, strings.Repeat("-", 56))
	for _, s := range status {
		fmt.Fprintf(w, "%-12s %10d %10dms %s\n",
			s.SchoolYear, s.RowCount, s.DurationMs, s.LoadedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func init() {
	boundariesLoadCmd.Flags().String("school-year", "2223", "school year as four digits, e.g. 2223")
	boundariesLoadCmd.Flags().Bool("status", false, "show boundary load history")
	boundariesLocateCmd.Flags().Float64("lon", 0, "longitude")
	boundariesLocateCmd.Flags().Float64("lat", 0, "latitude")
	_ = boundariesLocateCmd.MarkFlagRequired("lon")
	_ = boundariesLocateCmd.MarkFlagRequired("lat")
	boundariesCmd.AddCommand(boundariesLoadCmd)
	boundariesCmd.AddCommand(boundariesLocateCmd)
	rootCmd.AddCommand(boundariesCmd)
}
