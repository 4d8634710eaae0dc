package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/config"
)

func newRootCmd() *cobra.Command {
	var (
		envFile string
		driver  string
		a       *app
	)

	root := &cobra.Command{
		Use:   "africa-map-tracker",
		Short: "Kiosk dashboard mapping registrations across African countries",
		Long: `africa-map-tracker serves a live map of where participants come from.

Visitors register a country (plus an optional name and message); the dashboard
shows totals, a colored map, the top countries and the latest registrations,
and refreshes itself on a fixed interval.

Configuration is read from AFRICAMAP_* environment variables, optionally
preloaded from a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if driver != "" {
				cfg.Store.Driver = strings.ToLower(strings.TrimSpace(driver))
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			a = newApp(cfg)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to preload (ignored when missing)")
	root.PersistentFlags().StringVar(&driver, "driver", "", "store driver override: memory, file, redis, postgres or sqlite")

	appFn := func() *app { return a }
	root.AddCommand(
		newServeCmd(appFn),
		newRegisterCmd(appFn),
		newStatsCmd(appFn),
		newSeedCmd(appFn),
	)
	return root
}
