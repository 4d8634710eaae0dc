package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/service"
)

func newRegisterCmd(appFn func() *app) *cobra.Command {
	var country, name, message string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Append one registration to the store",
		Example: `  africa-map-tracker register --country Ghana --name Sarah
  africa-map-tracker register --country Kenya --message "Habari!"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			return a.withBackend(cmd.Context(), func(ctx context.Context, _ *backend, svc *service.Service) error {
				reg, err := svc.Register(ctx, country, name, message)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reg)
			})
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "country of origin")
	cmd.Flags().StringVar(&name, "name", "", "participant name (defaults to Anonymous)")
	cmd.Flags().StringVar(&message, "message", "", "optional message")
	_ = cmd.MarkFlagRequired("country")
	return cmd
}
