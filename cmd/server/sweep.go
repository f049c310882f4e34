package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/recipe-box/internal/server"
)

func newSweepCmd(envFile *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove uploaded images no recipe references",
		Long: `sweep lists the upload store and deletes committed images that no
recipe points at, plus staging leftovers from interrupted uploads. Objects
younger than SWEEP_GRACE are kept so uploads in progress are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*envFile)
			if err != nil {
				return err
			}

			report, err := server.Sweep(cmd.Context(), cfg, logger, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scanned:        %d\n", report.Scanned)
			fmt.Fprintf(out, "referenced:     %d\n", report.Referenced)
			fmt.Fprintf(out, "too new:        %d\n", report.TooNew)
			fmt.Fprintf(out, "orphans:        %d\n", report.Orphans)
			fmt.Fprintf(out, "stale staging:  %d\n", report.StaleStaging)
			if report.DryRun {
				fmt.Fprintln(out, "dry run: nothing was removed")
			} else {
				fmt.Fprintf(out, "removed:        %d\n", report.Removed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be removed without deleting anything")
	return cmd
}
