package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iasik/orchestrator/internal/report"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Inspect persisted reports"}
	cmd.AddCommand(newReportShowCmd())
	return cmd
}

func newReportShowCmd() *cobra.Command {
	var byProject bool
	cmd := &cobra.Command{
		Use:   "show <report-id-or-project-id>",
		Short: "Render a persisted report (the latest one, if --project is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			logger := newLogger()
			a, err := buildApp(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if byProject {
				r, findings, err := a.reports.Latest(ctx, id)
				if err != nil {
					return fmt.Errorf("load latest report for project %s: %w", id, err)
				}
				report.Render(os.Stdout, r, findings, report.DefaultStyles())
				return nil
			}

			r, findings, err := a.reports.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("load report %s: %w", id, err)
			}
			report.Render(os.Stdout, r, findings, report.DefaultStyles())
			return nil
		},
	}
	cmd.Flags().BoolVar(&byProject, "project", false, "treat the argument as a project ID and show its latest report")
	return cmd
}
