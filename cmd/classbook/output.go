package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/classbook/classbook/internal/domain/ledger"
	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/domain/shared"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printStudents(w io.Writer, students []roster.Student) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tFATHER NAME\tPHONE\tCLASS\tFEES PAID")
	for _, s := range students {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.FatherName, s.Phone, s.ClassName, yesNo(s.FeesPaid))
	}
	return tw.Flush()
}

func printStudent(w io.Writer, s roster.Student) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%s\n", s.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", s.Name)
	fmt.Fprintf(tw, "Father name:\t%s\n", s.FatherName)
	fmt.Fprintf(tw, "Phone:\t%s\n", s.Phone)
	fmt.Fprintf(tw, "Class:\t%s\n", s.ClassName)
	fmt.Fprintf(tw, "Fees paid:\t%s\n", yesNo(s.FeesPaid))
	fmt.Fprintf(tw, "Added:\t%s\n", s.CreatedTime().Format("2006-01-02 15:04"))
	return tw.Flush()
}

// gridMark renders one cell of the month grid.
func gridMark(s ledger.Status) string {
	if s == ledger.Unmarked {
		return "."
	}
	return string(s)
}

func printGrid(w io.Writer, view report.MonthView) error {
	fmt.Fprintf(w, "%s (%d students)\n", view.Label, len(view.Rows))

	tw := newTable(w)
	var header strings.Builder
	header.WriteString("NAME\tCLASS")
	for day := 1; day <= view.Days; day++ {
		fmt.Fprintf(&header, "\t%d", day)
	}
	header.WriteString("\tP\tA\t%\n")
	fmt.Fprint(tw, header.String())

	for _, row := range view.Rows {
		var line strings.Builder
		line.WriteString(row.Student.Name + "\t" + row.Student.ClassName)
		for day := 1; day <= view.Days; day++ {
			line.WriteString("\t" + gridMark(row.Status(day)))
		}
		fmt.Fprintf(&line, "\t%d\t%d\t%d\n", row.Summary.PresentCount, row.Summary.AbsentCount, row.Summary.AttendancePercentage)
		fmt.Fprint(tw, line.String())
	}
	return tw.Flush()
}

// describeError adds the failed fields of a validation error, one per line.
func describeError(err error) error {
	ve, ok := shared.AsValidation(err)
	if !ok {
		return err
	}
	var b strings.Builder
	b.WriteString("invalid student:")
	for _, f := range ve.Fields {
		fmt.Fprintf(&b, "\n  %s: %s", f.Field, f.Message)
	}
	return errors.New(b.String())
}
