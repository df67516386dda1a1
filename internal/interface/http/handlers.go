package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/classbook/classbook/internal/domain/ledger"
	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/infrastructure/spreadsheet"
	"github.com/classbook/classbook/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		status := s.health.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListStudents handles GET /api/v1/students?search=&class=&fees=
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}

	students := s.tracker.Students(r.URL.Query().Get("search"))
	students = report.FilterStudents(students, filter)

	writeJSONWithMeta(w, r, http.StatusOK, students, &ResponseMeta{TotalCount: len(students)})
}

// handleAddStudent handles POST /api/v1/students
func (s *Server) handleAddStudent(w http.ResponseWriter, r *http.Request) {
	var in roster.NewStudent
	if !decodeJSON(w, r, &in) {
		return
	}

	st, err := s.tracker.AddStudent(r.Context(), in)
	if err != nil {
		s.writeDomainError(w, r, "add_student", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusCreated, st, nil)
}

// handleImportStudents handles POST /api/v1/students/import. The body is an
// .xlsx workbook, sent raw or as the "file" field of a multipart form.
func (s *Server) handleImportStudents(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); strings.HasPrefix(mediaType, "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_upload", "Expected a spreadsheet in the \"file\" field")
			return
		}
		defer file.Close()
		src = file
	}

	sheet, err := spreadsheet.ReadStudents(src)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_spreadsheet", err.Error())
		return
	}

	res, err := s.tracker.ImportStudents(r.Context(), sheet.Students, sheet.Rows)
	if err != nil {
		// Students added before the failure stay in the roster; report them.
		logger.FromContext(r.Context()).Error("import stopped",
			logger.Operation("import_students"), logger.Count(len(res.Added)), logger.Err(err))
		writeAPIErrorWithData(w, r, http.StatusInternalServerError, &APIError{
			Code:    "import_incomplete",
			Message: "The import stopped because the roster could not be saved",
		}, res)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{TotalCount: len(res.Added)})
}

// handleGetStudent handles GET /api/v1/students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Student(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, "get_student", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, st, nil)
}

// handleUpdateStudent handles PATCH /api/v1/students/{id}
func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var patch roster.UpdateStudent
	if !decodeJSON(w, r, &patch) {
		return
	}

	st, err := s.tracker.UpdateStudent(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeDomainError(w, r, "update_student", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, st, nil)
}

// handleDeleteStudent handles DELETE /api/v1/students/{id}. Deleting an
// unknown id succeeds.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteStudent(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, r, "delete_student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleFees handles POST /api/v1/students/{id}/fees
func (s *Server) handleToggleFees(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.ToggleFees(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, "toggle_fees", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, st, nil)
}

// statusResponse carries one attendance mark.
type statusResponse struct {
	StudentID string        `json:"studentId"`
	Month     string        `json:"month,omitempty"`
	Day       int           `json:"day,omitempty"`
	Status    ledger.Status `json:"status"`
	Label     string        `json:"label"`
}

// handleTodayStatus handles GET /api/v1/students/{id}/today
func (s *Server) handleTodayStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.tracker.Student(id); err != nil {
		s.writeDomainError(w, r, "today_status", err)
		return
	}

	status := s.tracker.TodayStatus(id)
	writeJSONWithMeta(w, r, http.StatusOK, statusResponse{
		StudentID: id,
		Month:     s.tracker.CurrentMonth(),
		Day:       s.tracker.Now().Day(),
		Status:    status,
		Label:     status.Label(),
	}, nil)
}

// handleToggleToday handles POST /api/v1/students/{id}/today with a body of
// {"status": "P"} or {"status": "A"}.
func (s *Server) handleToggleToday(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	status, ok := ledger.ParseStatus(strings.TrimSpace(body.Status))
	if !ok {
		status = ledger.Status(body.Status)
	}

	id := r.PathValue("id")
	next, err := s.tracker.ToggleToday(r.Context(), id, status)
	if err != nil {
		s.writeDomainError(w, r, "toggle_today", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, statusResponse{
		StudentID: id,
		Month:     s.tracker.CurrentMonth(),
		Day:       s.tracker.Now().Day(),
		Status:    next,
		Label:     next.Label(),
	}, nil)
}

// handleStudentSummary handles GET /api/v1/students/{id}/summary/{month}
func (s *Server) handleStudentSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.tracker.Summary(r.PathValue("id"), r.PathValue("month"))
	if err != nil {
		s.writeDomainError(w, r, "student_summary", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, sum, nil)
}

// handleListClasses handles GET /api/v1/classes
func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes := s.tracker.Classes()
	writeJSONWithMeta(w, r, http.StatusOK, classes, &ResponseMeta{TotalCount: len(classes)})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListMonths handles GET /api/v1/months
func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	writeJSONWithMeta(w, r, http.StatusOK, s.tracker.Months(), nil)
}

// handleMonthGrid handles GET /api/v1/attendance/{month}?class=&fees=
func (s *Server) handleMonthGrid(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}

	view, err := s.tracker.Grid(r.PathValue("month"), filter)
	if err != nil {
		s.writeDomainError(w, r, "month_grid", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, view, &ResponseMeta{TotalCount: len(view.Rows)})
}

// handleExportMonth handles GET /api/v1/attendance/{month}/export?class=&fees=
func (s *Server) handleExportMonth(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}

	view, err := s.tracker.Grid(r.PathValue("month"), filter)
	if err != nil {
		s.writeDomainError(w, r, "export_month", err)
		return
	}

	var buf bytes.Buffer
	if err := s.writeWorkbook(&buf, view); err != nil {
		logger.FromContext(r.Context()).Error("export failed", logger.Month(view.Month), logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "export_failed", "The workbook could not be generated")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "attendance-"+view.Month+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// bulkResponse reports how many students a bulk command touched.
type bulkResponse struct {
	Month    string `json:"month"`
	Students int    `json:"students"`
}

// handleMarkAllPresent handles POST /api/v1/attendance/{month}/mark-all?class=&fees=
func (s *Server) handleMarkAllPresent(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}

	month := r.PathValue("month")
	n, err := s.tracker.MarkAllPresent(r.Context(), month, filter)
	if err != nil {
		s.writeDomainError(w, r, "mark_all_present", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, bulkResponse{Month: month, Students: n}, nil)
}

// handleClearMonth handles DELETE /api/v1/attendance/{month}?class=&fees=
func (s *Server) handleClearMonth(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}

	month := r.PathValue("month")
	n, err := s.tracker.ClearMonth(r.Context(), month, filter)
	if err != nil {
		s.writeDomainError(w, r, "clear_month", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, bulkResponse{Month: month, Students: n}, nil)
}

// handleToggleDay handles POST /api/v1/attendance/{month}/{day}/{id}
func (s *Server) handleToggleDay(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_day", "Day must be a number")
		return
	}

	id, month := r.PathValue("id"), r.PathValue("month")
	status, err := s.tracker.ToggleDay(r.Context(), id, month, day)
	if err != nil {
		s.writeDomainError(w, r, "toggle_day", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, statusResponse{
		StudentID: id,
		Month:     month,
		Day:       day,
		Status:    status,
		Label:     status.Label(),
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// parseFilter reads the class and fees query parameters.
func (s *Server) parseFilter(w http.ResponseWriter, r *http.Request) (report.Filter, bool) {
	q := r.URL.Query()
	f, err := report.ParseFilter(q.Get("class"), q.Get("fees"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return report.Filter{}, false
	}
	return f, true
}

// decodeJSON decodes the request body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "Request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}
