package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lumen/internal/enrich"
)

func newGeocacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geocache",
		Short: "Inspect or clear the reverse-geocode cache",
	}
	cmd.AddCommand(newGeocacheStatsCommand(ctx))
	cmd.AddCommand(newGeocacheClearCommand(ctx))
	return cmd
}

func newGeocacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached geocode entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache, err := enrich.OpenGeoCache(cfg.Paths.GeocodeCache, cfg.Geocode.GridMeters)
			if err != nil {
				return err
			}
			defer cache.Close()

			count, err := cache.Count()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"},
				[][]string{
					{"Cache path", cfg.Paths.GeocodeCache},
					{"Grid size (m)", fmt.Sprintf("%.0f", cfg.Geocode.GridMeters)},
					{"Cached places", fmt.Sprintf("%d", count)},
				},
			))
			return nil
		},
	}
}

func newGeocacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached geocode entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cache, err := enrich.OpenGeoCache(cfg.Paths.GeocodeCache, cfg.Geocode.GridMeters)
			if err != nil {
				return err
			}
			defer cache.Close()

			removed, err := cache.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached place(s)\n", removed)
			return nil
		},
	}
}
