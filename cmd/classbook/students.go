package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/infrastructure/spreadsheet"
)

func newStudentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "student",
		Aliases: []string{"students"},
		Short:   "Manage the student roster",
	}
	cmd.AddCommand(
		newStudentAddCmd(a),
		newStudentEditCmd(a),
		newStudentRemoveCmd(a),
		newStudentListCmd(a),
		newStudentShowCmd(a),
		newStudentFeesCmd(a),
		newStudentClassesCmd(a),
		newStudentImportCmd(a),
	)
	return cmd
}

func newStudentAddCmd(a *app) *cobra.Command {
	var in roster.NewStudent
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.svc.AddStudent(cmd.Context(), in)
			if err != nil {
				return describeError(err)
			}
			fmt.Fprintf(a.out, "added %s (%s)\n", st.Name, st.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "student name")
	f.StringVar(&in.FatherName, "father", "", "father's or guardian's name")
	f.StringVar(&in.Phone, "phone", "", "contact phone, e.g. 0300-1234567")
	f.StringVar(&in.ClassName, "class", "", "class, 1 to 10")
	f.BoolVar(&in.FeesPaid, "paid", false, "fees already paid")
	return cmd
}

func newStudentEditCmd(a *app) *cobra.Command {
	var (
		name, father, phone, class string
		paid                       bool
	)
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a student's details; only the given flags are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch roster.UpdateStudent
			f := cmd.Flags()
			if f.Changed("name") {
				patch.Name = &name
			}
			if f.Changed("father") {
				patch.FatherName = &father
			}
			if f.Changed("phone") {
				patch.Phone = &phone
			}
			if f.Changed("class") {
				patch.ClassName = &class
			}
			if f.Changed("paid") {
				patch.FeesPaid = &paid
			}
			if patch.IsEmpty() {
				return errors.New("nothing to change: pass at least one of --name, --father, --phone, --class, --paid")
			}

			st, err := a.svc.UpdateStudent(cmd.Context(), args[0], patch)
			if err != nil {
				return describeError(err)
			}
			return printStudent(a.out, st)
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "student name")
	f.StringVar(&father, "father", "", "father's or guardian's name")
	f.StringVar(&phone, "phone", "", "contact phone")
	f.StringVar(&class, "class", "", "class, 1 to 10")
	f.BoolVar(&paid, "paid", false, "fees paid")
	return cmd
}

func newStudentRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete students together with their attendance",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := a.svc.DeleteStudent(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "removed %s\n", id)
			}
			return nil
		},
	}
}

func newStudentListCmd(a *app) *cobra.Command {
	var (
		search, class, fees string
		asJSON              bool
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List students",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := report.ParseFilter(class, fees)
			if err != nil {
				return err
			}
			students := report.FilterStudents(a.svc.Students(search), filter)
			if asJSON {
				return printJSON(a.out, students)
			}
			return printStudents(a.out, students)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&search, "search", "s", "", "match name, father name or class")
	f.StringVar(&class, "class", "", "only this class")
	f.StringVar(&fees, "fees", "", "all, paid or unpaid")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newStudentShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.svc.Student(args[0])
			if err != nil {
				return err
			}
			return printStudent(a.out, st)
		},
	}
}

func newStudentFeesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fees ID",
		Short: "Toggle whether a student's fees are paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.svc.ToggleFees(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: fees paid %s\n", st.Name, yesNo(st.FeesPaid))
			return nil
		},
	}
}

func newStudentClassesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the classes in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range a.svc.Classes() {
				fmt.Fprintln(a.out, c)
			}
			return nil
		},
	}
}

func newStudentImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.xlsx",
		Short: "Add students from a workbook",
		Long: "Add students from the \"Students\" sheet of a workbook, or from its first sheet\n" +
			"when there is none. The header row must name the columns Name, Father Name,\n" +
			"Phone and Class; Fees Paid is optional. An export can be imported back.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			sheet, err := spreadsheet.ReadStudents(file)
			if err != nil {
				return err
			}

			res, err := a.svc.ImportStudents(cmd.Context(), sheet.Students, sheet.Rows)
			fmt.Fprintf(a.out, "imported %d of %d students from sheet %q\n", len(res.Added), len(sheet.Students), sheet.Sheet)
			for _, f := range res.Failed {
				fmt.Fprintf(a.out, "  row %d (%s):", f.Row, f.Name)
				for _, fe := range f.Fields {
					fmt.Fprintf(a.out, " %s: %s;", fe.Field, fe.Message)
				}
				fmt.Fprintln(a.out)
			}
			return err
		},
	}
}
