package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/dashboard/view"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/service"
)

func newStatsCmd(appFn func() *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print totals, top countries and recent registrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			loc, err := a.cfg.Dashboard.Location()
			if err != nil {
				return err
			}
			return a.withBackend(cmd.Context(), func(ctx context.Context, _ *backend, svc *service.Service) error {
				snap, err := svc.Snapshot(ctx)
				if err != nil {
					return err
				}
				vm := view.Build(snap.Summary, a.catalog, snap.GeneratedAt, loc, a.cfg.Dashboard.RefreshInterval)
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(vm)
				}
				printStats(cmd.OutOrStdout(), vm)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard view model as JSON")
	return cmd
}

func printStats(w io.Writer, vm view.ViewModel) {
	fmt.Fprintf(w, "Participants: %d\n", vm.Total)
	fmt.Fprintf(w, "Countries:    %d\n", vm.UniqueCountries)
	fmt.Fprintf(w, "Updated:      %s\n\n", vm.LastUpdate)

	fmt.Fprintln(w, "Top countries")
	if vm.EmptyTop() {
		fmt.Fprintf(w, "  %s\n", view.EmptyTopMessage)
	}
	for _, e := range vm.Top {
		fmt.Fprintf(w, "  %2d. %-30s %d\n", e.Rank, e.Label(), e.Count)
	}

	fmt.Fprintln(w, "\nRecent registrations")
	if vm.EmptyRecent() {
		fmt.Fprintf(w, "  %s\n", view.EmptyRecentMessage)
	}
	for _, e := range vm.Recent {
		fmt.Fprintf(w, "  %s  %-20s %s\n", e.Time, e.Name, e.Country)
	}
}
