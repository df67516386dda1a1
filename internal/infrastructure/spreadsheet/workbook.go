// Package spreadsheet reads and writes classbook data as .xlsx workbooks:
// the month attendance grid for export and a student list for bulk import.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/domain/roster"
)

// Leading columns of the attendance sheet, before the day columns.
var gridHeader = []string{"Name", "Father Name", "Class"}

// Trailing summary columns of the attendance sheet.
var summaryHeader = []string{"Present", "Absent", "Attendance %"}

// studentsSheet holds the student list in exported workbooks. ReadStudents
// prefers it, so an export can be imported back.
const studentsSheet = "Students"

// studentHeader is written by WriteMonth and expected by ReadStudents.
var studentHeader = []string{"Name", "Father Name", "Phone", "Class", "Fees Paid"}

// ErrEmptyWorkbook is returned by ReadStudents when there is nothing to import.
var ErrEmptyWorkbook = errors.New("spreadsheet: worksheet is empty")

// WriteMonth writes a workbook with the month grid on the first sheet and
// the listed students on a second "Students" sheet.
func WriteMonth(w io.Writer, view report.MonthView) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := view.Month
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("spreadsheet: rename sheet: %w", err)
	}
	if err := writeGrid(f, sheet, view); err != nil {
		return err
	}

	if _, err := f.NewSheet(studentsSheet); err != nil {
		return fmt.Errorf("spreadsheet: add students sheet: %w", err)
	}
	if err := writeStudents(f, studentsSheet, view.Rows); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("spreadsheet: write workbook: %w", err)
	}
	return nil
}

func writeGrid(f *excelize.File, sheet string, view report.MonthView) error {
	header := make([]any, 0, len(gridHeader)+view.Days+len(summaryHeader))
	for _, h := range gridHeader {
		header = append(header, h)
	}
	for day := 1; day <= view.Days; day++ {
		header = append(header, day)
	}
	for _, h := range summaryHeader {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("spreadsheet: header: %w", err)
	}

	for i, row := range view.Rows {
		values := make([]any, 0, len(header))
		values = append(values, row.Student.Name, row.Student.FatherName, row.Student.ClassName)
		for _, s := range row.Days {
			values = append(values, string(s))
		}
		values = append(values,
			row.Summary.PresentCount,
			row.Summary.AbsentCount,
			row.Summary.AttendancePercentage,
		)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("spreadsheet: row %d: %w", i+2, err)
		}
	}

	return styleGrid(f, sheet, len(header), len(view.Rows))
}

func styleGrid(f *excelize.File, sheet string, cols, rows int) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastHeader, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, bold); err != nil {
		return err
	}

	if err := f.SetColWidth(sheet, "A", "B", 22); err != nil {
		return err
	}
	firstDay, _ := excelize.ColumnNumberToName(len(gridHeader) + 1)
	lastDay, _ := excelize.ColumnNumberToName(cols - len(summaryHeader))
	if cols > len(gridHeader)+len(summaryHeader) {
		if err := f.SetColWidth(sheet, firstDay, lastDay, 4); err != nil {
			return err
		}
	}

	if rows == 0 {
		return nil
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	})
}

func writeStudents(f *excelize.File, sheet string, rows []report.GridRow) error {
	header := make([]any, 0, len(studentHeader))
	for _, h := range studentHeader {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		s := row.Student
		fees := "No"
		if s.FeesPaid {
			fees = "Yes"
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &[]any{s.Name, s.FatherName, s.Phone, s.ClassName, fees}); err != nil {
			return err
		}
	}
	return nil
}

// StudentSheet is a student list read from a workbook.
type StudentSheet struct {
	// Sheet is the worksheet the list was read from.
	Sheet    string
	Students []roster.NewStudent
	// Rows holds the worksheet row number of each student; the header is row 1.
	Rows []int
}

// ReadStudents reads a student list from an .xlsx workbook: the "Students"
// sheet when there is one, the first sheet otherwise. The first row is a
// header; columns are matched by name (Name, Father Name, Phone, Class,
// Fees Paid) regardless of order. Rows with every cell blank are skipped.
func ReadStudents(r io.Reader) (StudentSheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return StudentSheet{}, err
	}

	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return StudentSheet{}, fmt.Errorf("spreadsheet: open: %w", err)
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if idx, _ := file.GetSheetIndex(studentsSheet); idx >= 0 {
		sheetName = studentsSheet
	}
	if sheetName == "" {
		return StudentSheet{}, fmt.Errorf("spreadsheet: no worksheet found")
	}

	rows, err := file.GetRows(sheetName)
	if err != nil {
		return StudentSheet{}, err
	}
	if len(rows) < 2 {
		return StudentSheet{}, ErrEmptyWorkbook
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[normalizeHeader(h)] = i
	}
	for _, required := range []string{"name", "fathername", "phone", "class"} {
		if _, ok := cols[required]; !ok {
			return StudentSheet{}, fmt.Errorf("spreadsheet: sheet %q: missing column %q", sheetName, required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := StudentSheet{
		Sheet:    sheetName,
		Students: make([]roster.NewStudent, 0, len(rows)-1),
		Rows:     make([]int, 0, len(rows)-1),
	}
	for i, row := range rows[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		out.Students = append(out.Students, roster.NewStudent{
			Name:       cell(row, "name"),
			FatherName: cell(row, "fathername"),
			Phone:      cell(row, "phone"),
			ClassName:  cell(row, "class"),
			FeesPaid:   isYes(cell(row, "feespaid")),
		})
		out.Rows = append(out.Rows, i+2)
	}
	return out, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), ""))
}

func isYes(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "y", "true", "1", "paid":
		return true
	}
	return false
}
