package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/jengzang/civic-map/internal/logging"
	"github.com/jengzang/civic-map/internal/models"
	"github.com/spf13/cobra"
)

// refreshed builds the app and loads the current report list, falling
// back to the cached snapshot when the upstream is unavailable.
func refreshed(ctx context.Context) (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	if err := a.reports.Refresh(ctx); err != nil {
		if len(a.reports.Current()) == 0 {
			a.Close()
			return nil, err
		}
		a.log.Warn("using cached reports", logging.Err(err))
	}
	return a, nil
}

func addReportsCmd(root *cobra.Command) {
	var (
		filter     models.ReportFilter
		categories bool
	)
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List current reports, or per-category counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := refreshed(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if categories {
				counts, err := a.reports.Categories(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "CATEGORY\tCOUNT")
				for _, c := range counts {
					fmt.Fprintf(w, "%s\t%d\n", c.Category, c.Count)
				}
				return nil
			}

			reports, err := a.reports.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tCATEGORY\tUPVOTES\tLAT\tLNG\tDESCRIPTION")
			for _, r := range reports {
				lat, lng := "-", "-"
				if r.HasLocation() {
					lat, lng = fmt.Sprintf("%.5f", r.Location.Lat), fmt.Sprintf("%.5f", r.Location.Lng)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", r.ID, r.Category, r.UpvoteCount, lat, lng, r.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Category, "category", "", "only reports in this category")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum reports to list (0 = all)")
	cmd.Flags().BoolVar(&categories, "categories", false, "print per-category counts instead")
	root.AddCommand(cmd)
}

func addHeatCmd(root *cobra.Command) {
	var filter models.ReportFilter
	cmd := &cobra.Command{
		Use:   "heat",
		Short: "Print the heat overlay points and summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := refreshed(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			heat, err := a.reports.Heat(cmd.Context(), filter)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(heat)
		},
	}
	cmd.Flags().StringVar(&filter.Category, "category", "", "only reports in this category")
	root.AddCommand(cmd)
}
