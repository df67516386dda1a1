// Package tracker is the application layer for classbook. Service owns the
// roster and the attendance ledger, wires the roster's cascading delete to
// the ledger and serializes every command, so concurrent adapters (the HTTP
// server) still drive a single logical actor.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classbook/classbook/internal/domain/ledger"
	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/pkg/logger"
	"github.com/classbook/classbook/pkg/timeutil"
)

// DefaultMonthsShown is the length of the month selector: the current
// month and the eleven before it.
const DefaultMonthsShown = 12

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	// Validator checks student input. Defaults to roster.RequiredFields.
	Validator roster.Validator

	// Clock is the source of "now" for creation times and "today".
	Clock timeutil.Clock

	// Location is the zone "today" is read in.
	Location *time.Location

	// NewID generates student IDs. Defaults to time-ordered UUIDv7.
	NewID func() string

	// MonthsShown is the number of months offered by Months.
	MonthsShown int

	Logger *logger.Logger
}

// Service coordinates roster and ledger commands and queries.
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	roster *roster.Repository
	ledger *ledger.Ledger

	clock       timeutil.Clock
	loc         *time.Location
	monthsShown int
	log         *logger.Logger
}

// New creates a Service over store. Call Load to read persisted state.
func New(store shared.Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.NewID == nil {
		opts.NewID = NewStudentID
	}
	if opts.MonthsShown <= 0 {
		opts.MonthsShown = DefaultMonthsShown
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	l := ledger.New(store, ledger.Options{Clock: opts.Clock, Location: opts.Location})
	r := roster.NewRepository(store, roster.Options{
		Validator: opts.Validator,
		Cleaner:   l,
		Clock:     opts.Clock,
		NewID:     opts.NewID,
	})

	return &Service{
		roster:      r,
		ledger:      l,
		clock:       opts.Clock,
		loc:         opts.Location,
		monthsShown: opts.MonthsShown,
		log:         opts.Logger.With(logger.Component("tracker")),
	}
}

// NewStudentID returns a time-ordered UUIDv7 string.
func NewStudentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load reads the students and attendance records. Missing records start
// empty. Malformed records also start empty; the returned error lists
// them so the caller can warn the user. The Service is usable either way.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rosterErr := s.roster.Load(ctx)
	if rosterErr != nil {
		s.log.Warn("students record degraded", logger.Err(rosterErr))
	}
	ledgerErr := s.ledger.Load(ctx)
	if ledgerErr != nil {
		s.log.Warn("attendance record degraded", logger.Err(ledgerErr))
	}

	s.log.Info("state loaded", logger.Count(s.roster.Len()))
	return errors.Join(rosterErr, ledgerErr)
}

// Now returns the current time in the configured location.
func (s *Service) Now() time.Time {
	return s.clock().In(s.loc)
}

// CurrentMonth returns the month key for today.
func (s *Service) CurrentMonth() string {
	return timeutil.MonthKeyOf(s.Now())
}

// logResult records the outcome of a command. Persistence failures are
// errors: the in-memory change stands but the store is behind.
func (s *Service) logResult(op string, err error, fields ...logger.Field) {
	fields = append(fields, logger.Operation(op))
	switch {
	case err == nil:
		s.log.Debug("command applied", fields...)
	case shared.IsPersistence(err):
		s.log.Error("command applied but not persisted", append(fields, logger.Err(err))...)
	default:
		s.log.Info("command rejected", append(fields, logger.Err(err))...)
	}
}
