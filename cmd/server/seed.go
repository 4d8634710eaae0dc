package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/service"
)

func newSeedCmd(appFn func() *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the store with sample data if it does not exist yet",
		Long: `seed writes the sample registrations when the store does not exist yet.
An existing store is left untouched, so running seed twice is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			if file != "" {
				a.cfg.Store.SeedFile = file
			}
			return a.withBackend(cmd.Context(), func(ctx context.Context, _ *backend, svc *service.Service) error {
				created, err := svc.EnsureDefault(ctx)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintln(cmd.OutOrStdout(), "store initialized with seed data")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "store already exists, nothing written")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file (overrides AFRICAMAP_SEED_FILE)")
	return cmd
}
