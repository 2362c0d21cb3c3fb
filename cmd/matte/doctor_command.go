package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"matte/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the environment is ready for processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0

			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			for _, result := range results {
				status := "ok"
				if !result.Passed {
					status = "FAIL"
					failed++
				}
				rows = append(rows, []string{result.Name, status, result.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if statuses := preflight.CheckSystemDeps(cmd.Context(), cfg); len(statuses) > 0 {
				depRows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					state := "ok"
					detail := status.Description
					if !status.Available {
						state = "missing"
						detail = status.Detail
						if status.Description != "" {
							detail = fmt.Sprintf("%s; %s", status.Detail, status.Description)
						}
						if !status.Optional {
							failed++
						}
					}
					depRows = append(depRows, []string{status.Name, state, detail})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Dependency", "Status", "Detail"},
					depRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
			}

			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
