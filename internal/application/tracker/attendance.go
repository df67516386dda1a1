package tracker

import (
	"context"

	"github.com/classbook/classbook/internal/domain/ledger"
	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/pkg/logger"
	"github.com/classbook/classbook/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// ToggleDay cycles one cell of the month grid:
// unmarked → present → absent → unmarked.
func (s *Service) ToggleDay(ctx context.Context, studentID, month string, day int) (ledger.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roster.Find(studentID); !ok {
		return ledger.Unmarked, shared.NotFound("tracker", "ToggleDay", studentID)
	}

	status, err := s.ledger.ToggleDayCycle(ctx, studentID, month, timeutil.DayKey(day))
	s.logResult("toggle_day", err,
		logger.StudentID(studentID), logger.Month(month), logger.Int("day", day), logger.String("status", string(status)))
	return status, err
}

// ToggleToday is the quick marker: repeating the current status clears
// it, any other status replaces it.
func (s *Service) ToggleToday(ctx context.Context, studentID string, status ledger.Status) (ledger.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roster.Find(studentID); !ok {
		return ledger.Unmarked, shared.NotFound("tracker", "ToggleToday", studentID)
	}

	next, err := s.ledger.ToggleTodayBinary(ctx, studentID, status)
	s.logResult("toggle_today", err, logger.StudentID(studentID), logger.String("status", string(next)))
	return next, err
}

// MarkAllPresent marks every day of month present for the students
// matching f and returns how many students were marked.
func (s *Service) MarkAllPresent(ctx context.Context, month string, f report.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	days, err := daysIn(month, "MarkAllPresent")
	if err != nil {
		return 0, err
	}

	ids := report.IDs(report.FilterStudents(s.roster.List(), f))
	err = s.ledger.MarkAllPresent(ctx, ids, month, days)
	s.logResult("mark_all_present", err, logger.Month(month), logger.Count(len(ids)))
	return len(ids), err
}

// ClearMonth removes every mark in month for the students matching f and
// returns how many students were targeted.
func (s *Service) ClearMonth(ctx context.Context, month string, f report.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := daysIn(month, "ClearMonth"); err != nil {
		return 0, err
	}

	ids := report.IDs(report.FilterStudents(s.roster.List(), f))
	err := s.ledger.ClearMonth(ctx, ids, month)
	s.logResult("clear_month", err, logger.Month(month), logger.Count(len(ids)))
	return len(ids), err
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// TodayStatus returns the student's mark for today.
func (s *Service) TodayStatus(studentID string) ledger.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	month, day := s.ledger.Today()
	return s.ledger.Get(studentID, month, day)
}

// Summary returns the monthly counts and percentage for one student.
func (s *Service) Summary(studentID, month string) (report.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roster.Find(studentID); !ok {
		return report.Summary{}, shared.NotFound("tracker", "Summary", studentID)
	}
	days, err := daysIn(month, "Summary")
	if err != nil {
		return report.Summary{}, err
	}
	return report.MonthlySummary(s.ledger.Snapshot(), studentID, month, days), nil
}

// Grid builds the month view for the students matching f.
func (s *Service) Grid(month string, f report.Filter) (report.MonthView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students := report.FilterStudents(s.roster.List(), f)
	view, err := report.BuildMonthView(students, s.ledger.Snapshot(), month)
	if err != nil {
		return report.MonthView{}, shared.WrapError("tracker", "Grid", shared.ErrInvalidInput, "invalid month key", err)
	}
	return view, nil
}

// Months returns the month selector, newest first.
func (s *Service) Months() []report.MonthOption {
	return report.RecentMonths(s.Now(), s.monthsShown)
}

func daysIn(month, op string) (int, error) {
	days, err := report.DaysInMonthKey(month)
	if err != nil {
		return 0, shared.WrapError("tracker", op, shared.ErrInvalidInput, "invalid month key", err)
	}
	return days, nil
}
