package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/classbook/classbook/internal/domain/ledger"
	"github.com/classbook/classbook/internal/domain/report"
)

func newAttendanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attendance",
		Aliases: []string{"att"},
		Short:   "Mark and review attendance",
	}
	cmd.AddCommand(
		newAttendanceToggleCmd(a),
		newAttendanceTodayCmd(a),
		newAttendanceMarkAllCmd(a),
		newAttendanceClearCmd(a),
		newAttendanceGridCmd(a),
		newAttendanceSummaryCmd(a),
		newAttendanceMonthsCmd(a),
	)
	return cmd
}

// monthFlag binds --month; an empty value means the current month.
func monthFlag(f *pflag.FlagSet, month *string) {
	f.StringVarP(month, "month", "m", "", "month as YYYY-MM (default current month)")
}

// filterFlags binds --class and --fees.
func filterFlags(f *pflag.FlagSet, class, fees *string) {
	f.StringVar(class, "class", "", "only this class")
	f.StringVar(fees, "fees", "", "all, paid or unpaid")
}

func (a *app) monthOrCurrent(month string) string {
	if month == "" {
		return a.svc.CurrentMonth()
	}
	return month
}

func newAttendanceToggleCmd(a *app) *cobra.Command {
	var (
		month string
		day   int
	)
	cmd := &cobra.Command{
		Use:   "toggle ID",
		Short: "Cycle one day: unmarked, present, absent, unmarked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month = a.monthOrCurrent(month)
			if day == 0 {
				day = a.svc.Now().Day()
			}
			status, err := a.svc.ToggleDay(cmd.Context(), args[0], month, day)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s day %d: %s\n", month, day, status.Label())
			return nil
		},
	}
	monthFlag(cmd.Flags(), &month)
	cmd.Flags().IntVarP(&day, "day", "d", 0, "day of the month (default today)")
	return cmd
}

func newAttendanceTodayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "today ID [P|A]",
		Short: "Show or mark today's attendance; repeating a mark clears it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if len(args) == 1 {
				if _, err := a.svc.Student(id); err != nil {
					return err
				}
				fmt.Fprintln(a.out, a.svc.TodayStatus(id).Label())
				return nil
			}

			status, ok := ledger.ParseStatus(strings.TrimSpace(args[1]))
			if !ok {
				status = ledger.Status(args[1])
			}
			next, err := a.svc.ToggleToday(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, next.Label())
			return nil
		},
	}
}

func newAttendanceMarkAllCmd(a *app) *cobra.Command {
	var month, class, fees string
	cmd := &cobra.Command{
		Use:   "mark-all",
		Short: "Mark every day of a month present for the listed students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := report.ParseFilter(class, fees)
			if err != nil {
				return err
			}
			month = a.monthOrCurrent(month)
			n, err := a.svc.MarkAllPresent(cmd.Context(), month, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "marked %d students present for %s\n", n, month)
			return nil
		},
	}
	monthFlag(cmd.Flags(), &month)
	filterFlags(cmd.Flags(), &class, &fees)
	return cmd
}

func newAttendanceClearCmd(a *app) *cobra.Command {
	var month, class, fees string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove a month's marks for the listed students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := report.ParseFilter(class, fees)
			if err != nil {
				return err
			}
			month = a.monthOrCurrent(month)
			n, err := a.svc.ClearMonth(cmd.Context(), month, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "cleared %s for %d students\n", month, n)
			return nil
		},
	}
	monthFlag(cmd.Flags(), &month)
	filterFlags(cmd.Flags(), &class, &fees)
	return cmd
}

func newAttendanceGridCmd(a *app) *cobra.Command {
	var (
		month, class, fees string
		asJSON             bool
	)
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Show the month grid with per-student totals",
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
			if asJSON {
				return printJSON(a.out, view)
			}
			return printGrid(a.out, view)
		},
	}
	monthFlag(cmd.Flags(), &month)
	filterFlags(cmd.Flags(), &class, &fees)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newAttendanceSummaryCmd(a *app) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "summary ID",
		Short: "Show a student's present and absent days for a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month = a.monthOrCurrent(month)
			sum, err := a.svc.Summary(args[0], month)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: present %d, absent %d, attendance %d%%\n",
				month, sum.PresentCount, sum.AbsentCount, sum.AttendancePercentage)
			return nil
		},
	}
	monthFlag(cmd.Flags(), &month)
	return cmd
}

func newAttendanceMonthsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List the months offered for review, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := newTable(a.out)
			for _, m := range a.svc.Months() {
				fmt.Fprintf(tw, "%s\t%s\t%d days\n", m.Key, m.Label, m.Days)
			}
			return tw.Flush()
		},
	}
}
