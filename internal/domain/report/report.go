// Package report содержит чистые функции поверх снимков реестра и журнала:
// фильтры, дневные отметки, месячные сводки и сетку месяца.
// Функции не меняют входные данные и не обращаются к хранилищу.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/classbook/classbook/internal/domain/ledger"
	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FILTERS
// ══════════════════════════════════════════════════════════════════════════════

// Filter - необязательные условия отбора, объединяются по И.
// nil означает "без ограничения".
type Filter struct {
	// Class - точное совпадение метки класса.
	Class *string

	// FeesPaid - совпадение признака оплаты.
	FeesPaid *bool
}

// IsZero возвращает true, если фильтр пропускает всех.
func (f Filter) IsZero() bool {
	return f.Class == nil && f.FeesPaid == nil
}

// Matches проверяет одного ученика.
func (f Filter) Matches(s roster.Student) bool {
	if f.Class != nil && s.ClassName != *f.Class {
		return false
	}
	if f.FeesPaid != nil && s.FeesPaid != *f.FeesPaid {
		return false
	}
	return true
}

// ParseFilter строит фильтр из текстовых значений, как их присылают
// CLI и HTTP. Пустое значение или "all" снимает ограничение.
// fees принимает paid/unpaid (а также true/false, yes/no, 1/0).
func ParseFilter(class, fees string) (Filter, error) {
	var f Filter

	if class = strings.TrimSpace(class); class != "" && !strings.EqualFold(class, "all") {
		f.Class = &class
	}

	var paid bool
	switch strings.ToLower(strings.TrimSpace(fees)) {
	case "", "all":
		return f, nil
	case "paid", "true", "yes", "1":
		paid = true
	case "unpaid", "false", "no", "0":
		paid = false
	default:
		return Filter{}, fmt.Errorf("fees filter %q: want all, paid or unpaid", fees)
	}
	f.FeesPaid = &paid
	return f, nil
}

// FilterStudents возвращает подходящих учеников в исходном порядке.
func FilterStudents(students []roster.Student, f Filter) []roster.Student {
	out := make([]roster.Student, 0, len(students))
	for _, s := range students {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// IDs возвращает идентификаторы учеников в том же порядке.
func IDs(students []roster.Student) []string {
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.ID
	}
	return ids
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

// Summary - производная месячная сводка, не хранится.
type Summary struct {
	PresentCount         int `json:"presentCount"`
	AbsentCount          int `json:"absentCount"`
	AttendancePercentage int `json:"attendancePercentage"`
}

// DailySnapshot возвращает отметку за день или ledger.Unmarked.
func DailySnapshot(entries ledger.Entries, studentID, monthKey, dayKey string) ledger.Status {
	return entries.Status(studentID, monthKey, dayKey)
}

// MonthlySummary считает P и A за дни 1..daysInMonth. Неотмеченные дни
// не входят ни в одну группу. Процент = round(P / daysInMonth * 100),
// 0 при daysInMonth == 0.
func MonthlySummary(entries ledger.Entries, studentID, monthKey string, daysInMonth int) Summary {
	days := entries.Month(studentID, monthKey)

	var sum Summary
	for day := 1; day <= daysInMonth; day++ {
		switch days[timeutil.DayKey(day)] {
		case ledger.Present:
			sum.PresentCount++
		case ledger.Absent:
			sum.AbsentCount++
		}
	}
	sum.AttendancePercentage = Percentage(sum.PresentCount, daysInMonth)
	return sum
}

// Percentage округляет part/total*100 до целого, половины - вверх.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTH GRID
// ══════════════════════════════════════════════════════════════════════════════

// GridRow - строка сетки месяца: ученик, отметки по дням и сводка.
type GridRow struct {
	Student roster.Student  `json:"student"`
	Days    []ledger.Status `json:"days"`
	Summary Summary         `json:"summary"`
}

// Status возвращает отметку за день (с единицы).
func (r GridRow) Status(day int) ledger.Status {
	if day < 1 || day > len(r.Days) {
		return ledger.Unmarked
	}
	return r.Days[day-1]
}

// MonthGrid строит сетку месяца для переданных учеников.
// Days[i] - отметка за день i+1.
func MonthGrid(students []roster.Student, entries ledger.Entries, monthKey string, daysInMonth int) []GridRow {
	daysInMonth = max(daysInMonth, 0)
	rows := make([]GridRow, 0, len(students))
	for _, s := range students {
		days := entries.Month(s.ID, monthKey)
		row := GridRow{
			Student: s,
			Days:    make([]ledger.Status, daysInMonth),
			Summary: MonthlySummary(entries, s.ID, monthKey, daysInMonth),
		}
		for day := 1; day <= daysInMonth; day++ {
			row.Days[day-1] = days[timeutil.DayKey(day)]
		}
		rows = append(rows, row)
	}
	return rows
}

// MonthView - сетка месяца целиком: ключ, подпись, число дней и строки.
type MonthView struct {
	Month string    `json:"month"`
	Label string    `json:"label"`
	Days  int       `json:"days"`
	Rows  []GridRow `json:"rows"`
}

// BuildMonthView строит MonthView по ключу месяца.
func BuildMonthView(students []roster.Student, entries ledger.Entries, monthKey string) (MonthView, error) {
	year, month, err := timeutil.ParseMonthKey(monthKey)
	if err != nil {
		return MonthView{}, err
	}
	days := timeutil.DaysInMonth(year, month)
	return MonthView{
		Month: monthKey,
		Label: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format(timeutil.FormatMonthLabel),
		Days:  days,
		Rows:  MonthGrid(students, entries, monthKey, days),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// MonthOption - пункт выбора месяца.
type MonthOption = timeutil.Month

// DaysInMonth - число дней в месяце по григорианскому календарю.
func DaysInMonth(year, month int) int {
	return timeutil.DaysInMonth(year, month)
}

// MonthKey форматирует "YYYY-MM".
func MonthKey(year, month int) string {
	return timeutil.MonthKey(year, month)
}

// ParseMonthKey разбирает "YYYY-MM".
func ParseMonthKey(key string) (year, month int, err error) {
	return timeutil.ParseMonthKey(key)
}

// DaysInMonthKey - число дней в месяце, заданном ключом.
func DaysInMonthKey(key string) (int, error) {
	year, month, err := timeutil.ParseMonthKey(key)
	if err != nil {
		return 0, err
	}
	return timeutil.DaysInMonth(year, month), nil
}

// RecentMonths возвращает текущий месяц и n-1 предыдущих, новые первыми.
func RecentMonths(now time.Time, n int) []MonthOption {
	return timeutil.RecentMonths(now, n)
}
