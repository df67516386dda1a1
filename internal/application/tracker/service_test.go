package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbook/classbook/internal/domain/ledger"
	"github.com/classbook/classbook/internal/domain/report"
	"github.com/classbook/classbook/internal/domain/roster"
	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/internal/infrastructure/storage"
	"github.com/classbook/classbook/internal/infrastructure/validation"
)

var now = time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC)

func newService(t *testing.T, store shared.Store) *Service {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	return New(store, Options{
		Validator: validation.New(),
		Clock:     func() time.Time { return now },
		Location:  time.UTC,
	})
}

func addStudent(t *testing.T, svc *Service, name, class string, paid bool) roster.Student {
	t.Helper()
	st, err := svc.AddStudent(context.Background(), roster.NewStudent{
		Name:       name,
		FatherName: "Guardian " + name,
		Phone:      "0300 1234567",
		ClassName:  class,
		FeesPaid:   paid,
	})
	require.NoError(t, err)
	return st
}

func TestService_StudentIDsAreUUIDv7(t *testing.T) {
	svc := newService(t, nil)
	st := addStudent(t, svc, "Ali", "5", false)

	id, err := uuid.Parse(st.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestService_BulkOperationsTargetFilteredStudents(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	a := addStudent(t, svc, "Ali", "5", true)
	b := addStudent(t, svc, "Bina", "5", false)
	c := addStudent(t, svc, "Chand", "6", false)

	class5 := "5"
	n, err := svc.MarkAllPresent(ctx, "2024-04", report.Filter{Class: &class5})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sum, err := svc.Summary(a.ID, "2024-04")
	require.NoError(t, err)
	assert.Equal(t, report.Summary{PresentCount: 30, AttendancePercentage: 100}, sum)

	sum, err = svc.Summary(c.ID, "2024-04")
	require.NoError(t, err)
	assert.Equal(t, report.Summary{}, sum)

	unpaid := false
	n, err = svc.ClearMonth(ctx, "2024-04", report.Filter{FeesPaid: &unpaid})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sum, err = svc.Summary(b.ID, "2024-04")
	require.NoError(t, err)
	assert.Equal(t, report.Summary{}, sum)

	sum, err = svc.Summary(a.ID, "2024-04")
	require.NoError(t, err)
	assert.Equal(t, 30, sum.PresentCount, "paid student keeps marks")
}

func TestService_ToggleDayAndToday(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	a := addStudent(t, svc, "Ali", "5", false)

	for _, want := range []ledger.Status{ledger.Present, ledger.Absent, ledger.Unmarked} {
		got, err := svc.ToggleDay(ctx, a.ID, "2024-04", 3)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := svc.ToggleToday(ctx, a.ID, ledger.Present)
	require.NoError(t, err)
	assert.Equal(t, ledger.Present, got)
	assert.Equal(t, ledger.Present, svc.TodayStatus(a.ID))

	got, err = svc.ToggleToday(ctx, a.ID, ledger.Absent)
	require.NoError(t, err)
	assert.Equal(t, ledger.Absent, got)

	got, err = svc.ToggleToday(ctx, a.ID, ledger.Absent)
	require.NoError(t, err)
	assert.Equal(t, ledger.Unmarked, got)

	_, err = svc.ToggleDay(ctx, "ghost", "2024-04", 3)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.ToggleDay(ctx, a.ID, "2024-04", 31)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestService_DeleteCascadesToLedger(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newService(t, store)
	a := addStudent(t, svc, "Ali", "5", false)
	b := addStudent(t, svc, "Bina", "5", false)

	_, err := svc.MarkAllPresent(ctx, "2024-04", report.Filter{})
	require.NoError(t, err)
	_, err = svc.MarkAllPresent(ctx, "2024-03", report.Filter{})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStudent(ctx, a.ID))

	raw, ok, err := store.Get(ctx, shared.KeyAttendance)
	require.NoError(t, err)
	require.True(t, ok)
	var entries ledger.Entries
	require.NoError(t, json.Unmarshal(raw, &entries))
	assert.NotContains(t, entries, a.ID)
	assert.Contains(t, entries, b.ID)

	_, err = svc.Student(a.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Summary(a.ID, "2024-04")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.NoError(t, svc.DeleteStudent(ctx, a.ID))
}

func TestService_Grid(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	a := addStudent(t, svc, "Ali", "5", false)
	addStudent(t, svc, "Bina", "6", false)

	_, err := svc.ToggleDay(ctx, a.ID, "2024-02", 29)
	require.NoError(t, err)

	grid, err := svc.Grid("2024-02", report.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "February 2024", grid.Label)
	assert.Equal(t, 29, grid.Days)
	require.Len(t, grid.Rows, 2)
	assert.Equal(t, ledger.Present, grid.Rows[0].Status(29))

	_, err = svc.Grid("2024-2", report.Filter{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestService_MonthsAndClasses(t *testing.T) {
	svc := newService(t, nil)
	addStudent(t, svc, "Ali", "10", false)
	addStudent(t, svc, "Bina", "2", false)
	addStudent(t, svc, "Chand", "2", false)

	assert.Equal(t, []string{"2", "10"}, svc.Classes())
	assert.Equal(t, "2024-04", svc.CurrentMonth())

	months := svc.Months()
	require.Len(t, months, DefaultMonthsShown)
	assert.Equal(t, "2024-04", months[0].Key)
	assert.Equal(t, "May 2023", months[11].Label)
}

func TestService_LoadReportsDegradedRecords(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := newService(t, store)
	a := addStudent(t, first, "Ali", "5", false)
	require.NoError(t, store.Set(ctx, shared.KeyAttendance, []byte("corrupt")))

	second := newService(t, store)
	err := second.Load(ctx)
	assert.ErrorIs(t, err, shared.ErrPersistence)

	st, err := second.Student(a.ID)
	require.NoError(t, err, "students still load when attendance is corrupt")
	assert.Equal(t, a, st)
	sum, err := second.Summary(a.ID, "2024-04")
	require.NoError(t, err)
	assert.Zero(t, sum.PresentCount+sum.AbsentCount, "corrupt attendance starts empty")
}

func TestService_ConcurrentCommands(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	a := addStudent(t, svc, "Ali", "5", false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.AddStudent(ctx, roster.NewStudent{
				Name: "Zara", FatherName: "Omar", Phone: "03009876543", ClassName: "3",
			})
		}()
		go func(day int) {
			defer wg.Done()
			_, _ = svc.ToggleDay(ctx, a.ID, "2024-04", day)
			_ = svc.Students("")
		}(i + 1)
	}
	wg.Wait()

	assert.Len(t, svc.Students(""), 21)
	sum, err := svc.Summary(a.ID, "2024-04")
	require.NoError(t, err)
	assert.Equal(t, 20, sum.PresentCount)
}

func TestService_ImportStudents(t *testing.T) {
	svc := newService(t, nil)

	res, err := svc.ImportStudents(context.Background(), []roster.NewStudent{
		{Name: "Ali Raza", FatherName: "Raza", Phone: "03001234567", ClassName: "5"},
		{Name: "B", FatherName: "", Phone: "123", ClassName: "11"},
		{Name: "Sara Khan", FatherName: "Imran", Phone: "0321-7654321", ClassName: "3", FeesPaid: true},
	}, nil)
	require.NoError(t, err)

	require.Len(t, res.Added, 2)
	assert.Equal(t, "Ali Raza", res.Added[0].Name)
	assert.True(t, res.Added[1].FeesPaid)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, 2, res.Failed[0].Row, "input position without row numbers")
	assert.NotEmpty(t, res.Failed[0].Fields)
	assert.Len(t, svc.Students(""), 2)
}

func TestService_ImportStudentsUsesSourceRows(t *testing.T) {
	svc := newService(t, nil)

	res, err := svc.ImportStudents(context.Background(), []roster.NewStudent{
		{Name: "Ali Raza", FatherName: "Raza", Phone: "03001234567", ClassName: "5"},
		{Name: "B", Phone: "123", ClassName: "11"},
	}, []int{2, 5})
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, 5, res.Failed[0].Row)
	assert.Equal(t, "B", res.Failed[0].Name)
}

// quotaStore accepts a fixed number of writes, then fails every write.
type quotaStore struct {
	*storage.MemoryStore
	left int
}

func (q *quotaStore) Set(ctx context.Context, key string, value []byte) error {
	if q.left == 0 {
		return errors.New("quota exceeded")
	}
	q.left--
	return q.MemoryStore.Set(ctx, key, value)
}

func TestService_ImportStudentsStopsOnStoreFailure(t *testing.T) {
	svc := newService(t, &quotaStore{MemoryStore: storage.NewMemoryStore(), left: 1})

	res, err := svc.ImportStudents(context.Background(), []roster.NewStudent{
		{Name: "Ali Raza", FatherName: "Raza", Phone: "03001234567", ClassName: "5"},
		{Name: "Sara Khan", FatherName: "Imran", Phone: "0321-7654321", ClassName: "3"},
		{Name: "Hamza Ali", FatherName: "Ahmed", Phone: "0300-7654321", ClassName: "4"},
	}, nil)
	assert.ErrorIs(t, err, shared.ErrPersistence)
	require.Len(t, res.Added, 2, "the failed row stays in memory and is reported")
	assert.Equal(t, "Sara Khan", res.Added[1].Name)
}
