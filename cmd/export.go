package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cargoplan/app"
	"github.com/kilianp07/cargoplan/core/reopt"
	"github.com/kilianp07/cargoplan/pkg/export"
)

var exportOpts struct {
	format string
	out    string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current schedule as json, csv or html",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			out, err := svc.Controller.CurrentSchedule(ctx)
			if !reopt.Usable(out, err) {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if exportOpts.out != "" {
				f, err := os.Create(exportOpts.out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			res := out.Payload()
			switch exportOpts.format {
			case "json":
				return export.WriteJSON(w, res)
			case "csv":
				return export.WriteCSV(w, res.Schedule)
			case "html":
				return export.WriteHTML(w, res)
			default:
				return fmt.Errorf("unknown format %q", exportOpts.format)
			}
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOpts.format, "format", "f", "json", "json, csv or html")
	exportCmd.Flags().StringVarP(&exportOpts.out, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
