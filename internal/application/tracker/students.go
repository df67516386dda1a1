package tracker

import (
	"context"

	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// AddStudent validates and appends a new student.
func (s *Service) AddStudent(ctx context.Context, in roster.NewStudent) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.roster.Add(ctx, in)
	s.logResult("add_student", err, logger.StudentID(st.ID), logger.ClassName(st.ClassName))
	return st, err
}

// UpdateStudent applies a partial update.
func (s *Service) UpdateStudent(ctx context.Context, id string, patch roster.UpdateStudent) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.roster.Update(ctx, id, patch)
	s.logResult("update_student", err, logger.StudentID(id))
	return st, err
}

// DeleteStudent removes a student and all of their attendance.
// Deleting an unknown id is a no-op.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.roster.Remove(ctx, id)
	s.logResult("delete_student", err, logger.StudentID(id))
	return err
}

// ToggleFees flips the fees-paid flag.
func (s *Service) ToggleFees(ctx context.Context, id string) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.roster.ToggleFees(ctx, id)
	s.logResult("toggle_fees", err, logger.StudentID(id), logger.Bool("fees_paid", st.FeesPaid))
	return st, err
}

// ImportFailure describes one input row ImportStudents rejected.
type ImportFailure struct {
	// Row is the source row number passed to ImportStudents, or the 1-based
	// input position when none was given.
	Row    int                 `json:"row"`
	Name   string              `json:"name"`
	Error  string              `json:"error"`
	Fields []shared.FieldError `json:"fields,omitempty"`
}

// ImportResult is the outcome of ImportStudents.
type ImportResult struct {
	Added  []roster.Student `json:"added"`
	Failed []ImportFailure  `json:"failed,omitempty"`
}

// ImportStudents adds each input in order. Rows failing validation are
// reported in Failed and skipped. A store failure stops the import and is
// returned together with what was added so far.
//
// rows, when it has one entry per input, numbers the inputs in failure
// reports (worksheet rows for a spreadsheet import).
func (s *Service) ImportStudents(ctx context.Context, in []roster.NewStudent, rows []int) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := ImportResult{Added: make([]roster.Student, 0, len(in))}
	for i, ns := range in {
		st, err := s.roster.Add(ctx, ns)
		switch {
		case err == nil:
			res.Added = append(res.Added, st)
		case shared.IsValidation(err):
			failure := ImportFailure{Row: i + 1, Name: ns.Name, Error: err.Error()}
			if len(rows) == len(in) {
				failure.Row = rows[i]
			}
			if ve, ok := shared.AsValidation(err); ok {
				failure.Fields = ve.Fields
			}
			res.Failed = append(res.Failed, failure)
		default:
			res.Added = append(res.Added, st)
			s.logResult("import_students", err, logger.Count(len(res.Added)))
			return res, err
		}
	}

	s.log.Info("students imported",
		logger.Count(len(res.Added)), logger.Int("rejected", len(res.Failed)))
	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Student returns one student or a NotFound error.
func (s *Service) Student(id string) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.roster.Find(id)
	if !ok {
		return roster.Student{}, shared.NotFound("tracker", "Student", id)
	}
	return st, nil
}

// Students returns the roster in insertion order, narrowed by a
// case-insensitive search term when one is given.
func (s *Service) Students(search string) []roster.Student {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roster.Search(search)
}

// FilteredStudents returns the students matching f.
func (s *Service) FilteredStudents(f report.Filter) []roster.Student {
	s.mu.Lock()
	defer s.mu.Unlock()

	return report.FilterStudents(s.roster.List(), f)
}

// Classes returns the distinct class labels for the class filter.
func (s *Service) Classes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roster.Classes()
}
