package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cargoplan/app"
	"github.com/kilianp07/cargoplan/core/history"
)

var historyOpts struct {
	flight string
	status string
	since  time.Duration
	limit  int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded optimization runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			q := history.Query{FlightID: historyOpts.flight, Status: historyOpts.status, Limit: historyOpts.limit}
			if historyOpts.since > 0 {
				q.Start = time.Now().Add(-historyOpts.since)
			}
			recs, err := svc.History.Query(ctx, q)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tTIME\tTRIGGER\tSTATUS\tOBJECTIVE\tFLIGHTS\tCHANGES")
			for _, r := range recs {
				changes := "initial"
				if !r.Changes.Initial {
					changes = fmt.Sprint(len(r.Changes.Lines))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f\t%d\t%s\n", r.RunID, r.Timestamp.Format(time.RFC3339),
					r.Trigger, r.Status, r.Objective, len(r.Schedule), changes)
			}
			return tw.Flush()
		})
	},
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyOpts.flight, "flight", "", "only runs scheduling this flight")
	f.StringVar(&historyOpts.status, "status", "", "only runs with this engine status")
	f.DurationVar(&historyOpts.since, "since", 0, "only runs newer than this duration")
	f.IntVar(&historyOpts.limit, "limit", 20, "maximum number of runs, newest kept")
	rootCmd.AddCommand(historyCmd)
}
