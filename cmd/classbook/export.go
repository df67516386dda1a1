package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/infrastructure/spreadsheet"
)

func newExportCmd(a *app) *cobra.Command {
	var month, class, fees, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a month grid and the student list to an .xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := report.ParseFilter(class, fees)
			if err != nil {
				return err
			}
			view, err := a.svc.Grid(a.monthOrCurrent(month), filter)
			if err != nil {
				return err
			}

			if output == "" {
				output = "attendance-" + view.Month + ".xlsx"
			}
			file, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := spreadsheet.WriteMonth(file, view); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "wrote %s (%d students)\n", output, len(view.Rows))
			return nil
		},
	}
	monthFlag(cmd.Flags(), &month)
	filterFlags(cmd.Flags(), &class, &fees)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default attendance-YYYY-MM.xlsx)")
	return cmd
}
