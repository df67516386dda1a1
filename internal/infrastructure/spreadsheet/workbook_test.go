package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/classbook/classbook/internal/domain/ledger"
	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/domain/roster"
)

func sampleView(t *testing.T) report.MonthView {
	t.Helper()
	students := []roster.Student{
		{ID: "a", Name: "Ali Raza", FatherName: "Raza Khan", Phone: "0300-1111111", ClassName: "5", FeesPaid: true},
		{ID: "b", Name: "Bina Shah", FatherName: "Asif Shah", Phone: "0300-2222222", ClassName: "5"},
	}
	entries := ledger.Entries{"a": {"2024-02": {"1": ledger.Present, "2": ledger.Absent}}}
	view, err := report.BuildMonthView(students, entries, "2024-02")
	require.NoError(t, err)
	return view
}

func TestWriteMonth(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMonth(&buf, sampleView(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"2024-02", "Students"}, f.GetSheetList())

	rows, err := f.GetRows("2024-02")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per student")

	header := rows[0]
	assert.Equal(t, "Name", header[0])
	assert.Equal(t, "1", header[3])
	assert.Equal(t, "29", header[31])
	assert.Equal(t, "Attendance %", header[len(header)-1])

	ali := rows[1]
	assert.Equal(t, "Ali Raza", ali[0])
	assert.Equal(t, "P", ali[3])
	assert.Equal(t, "A", ali[4])
	assert.Equal(t, "1", ali[len(ali)-3])
	assert.Equal(t, "1", ali[len(ali)-2])
	assert.Equal(t, "3", ali[len(ali)-1])

	students, err := f.GetRows("Students")
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, []string{"Ali Raza", "Raza Khan", "0300-1111111", "5", "Yes"}, students[1])
	assert.Equal(t, "No", students[2][4])
}

func TestReadStudents(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Class", " Name ", "Father  Name", "Phone", "Fees Paid"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"3", "Sara Khan", "Imran Khan", "03001234567", "yes"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"", "", "", "", ""}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"4", "Hamza Ali", "Ahmed Ali", "0300-7654321"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	got, err := ReadStudents(&buf)
	require.NoError(t, err)
	assert.Equal(t, sheet, got.Sheet)
	assert.Equal(t, []roster.NewStudent{
		{Name: "Sara Khan", FatherName: "Imran Khan", Phone: "03001234567", ClassName: "3", FeesPaid: true},
		{Name: "Hamza Ali", FatherName: "Ahmed Ali", Phone: "0300-7654321", ClassName: "4"},
	}, got.Students)
	assert.Equal(t, []int{2, 4}, got.Rows, "blank row 3 is skipped but still counted")
}

func TestReadStudents_ReadsBackWriteMonth(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMonth(&buf, sampleView(t)))

	got, err := ReadStudents(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Students", got.Sheet)
	assert.Equal(t, []roster.NewStudent{
		{Name: "Ali Raza", FatherName: "Raza Khan", Phone: "0300-1111111", ClassName: "5", FeesPaid: true},
		{Name: "Bina Shah", FatherName: "Asif Shah", Phone: "0300-2222222", ClassName: "5"},
	}, got.Students)
	assert.Equal(t, []int{2, 3}, got.Rows)
}

func TestReadStudents_PrefersStudentsSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Notes"}))
	_, err := f.NewSheet("Students")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Students", "A1", &[]any{"Name", "Father Name", "Phone", "Class"}))
	require.NoError(t, f.SetSheetRow("Students", "A2", &[]any{"Sara Khan", "Imran Khan", "03001234567", "3"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	got, err := ReadStudents(&buf)
	require.NoError(t, err)
	require.Len(t, got.Students, 1)
	assert.Equal(t, "Sara Khan", got.Students[0].Name)
}

func TestReadStudents_Errors(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Name", "Phone"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Sara", "0300"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err := ReadStudents(&buf)
	assert.ErrorContains(t, err, "missing column")

	empty := excelize.NewFile()
	buf.Reset()
	require.NoError(t, empty.Write(&buf))
	_, err = ReadStudents(&buf)
	assert.ErrorIs(t, err, ErrEmptyWorkbook)

	_, err = ReadStudents(bytes.NewReader([]byte("not a zip")))
	assert.Error(t, err)
}
