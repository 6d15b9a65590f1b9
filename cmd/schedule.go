package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cargoplan/app"
	"github.com/kilianp07/cargoplan/core/command"
	"github.com/kilianp07/cargoplan/core/reopt"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compute a schedule from the current data and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			out, err := svc.Controller.Recompute(ctx)
			if !reopt.Usable(out, err) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), command.FormatSchedule("Optimized schedule", out.Payload()))
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, command.ShowSchedule())
	},
}

var crewUnavailableCmd = &cobra.Command{
	Use:   "crew-unavailable CREW_ID",
	Short: "Take a crew member off duty and reoptimize",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dispatch(cmd, command.CrewUnavailable(args[0]))
	},
}

var crewAvailableCmd = &cobra.Command{
	Use:   "crew-available CREW_ID",
	Short: "Put a crew member back on duty and reoptimize",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			out, err := svc.Controller.SetCrewAvailability(ctx, args[0], true)
			return printOutcome(cmd, fmt.Sprintf("Marking crew %s as available", args[0]), out, err)
		})
	},
}

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance AIRCRAFT_ID HOURS",
	Short: "Set the hours until an aircraft's maintenance is due and reoptimize",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		hours, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid hours %q: %w", args[1], err)
		}
		return dispatch(cmd, command.MaintenanceAlert(args[0], hours))
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd, showCmd, crewUnavailableCmd, crewAvailableCmd, maintenanceCmd)
}

// dispatch runs c through the command dispatcher and prints the reply text.
func dispatch(cmd *cobra.Command, c command.Command) error {
	return withService(func(ctx context.Context, svc *app.Service) error {
		reply := svc.Dispatcher.Handle(ctx, c)
		fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
		if !reply.OK() {
			return reply.Err
		}
		return nil
	})
}

func printOutcome(cmd *cobra.Command, head string, out reopt.Outcome, err error) error {
	if !reopt.Usable(out, err) {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), command.FormatMutation(head, out.Payload()))
	return nil
}
