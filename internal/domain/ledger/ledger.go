package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/pkg/timeutil"
)

const domainName = "ledger"

// Options - зависимости Ledger.
type Options struct {
	// Clock определяет "сегодня" для ToggleTodayBinary.
	Clock timeutil.Clock

	// Location - часовой пояс, в котором читается "сегодня".
	// По умолчанию time.Local.
	Location *time.Location
}

// Ledger владеет журналом посещаемости и сохраняет его целиком под
// ключом "attendance" после каждой мутации. Не потокобезопасен.
type Ledger struct {
	store   shared.Store
	clock   timeutil.Clock
	loc     *time.Location
	entries Entries
}

// New создаёт пустой журнал. Для чтения сохранённых данных вызовите Load.
func New(store shared.Store, opts Options) *Ledger {
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Ledger{
		store:   store,
		clock:   opts.Clock,
		loc:     opts.Location,
		entries: make(Entries),
	}
}

// Get возвращает отметку или Unmarked.
func (l *Ledger) Get(studentID, monthKey, dayKey string) Status {
	return l.entries.Status(studentID, monthKey, dayKey)
}

// Today возвращает ключи месяца и дня для текущего момента.
func (l *Ledger) Today() (monthKey, dayKey string) {
	return timeutil.Today(l.clock(), l.loc)
}

// Snapshot возвращает глубокую копию журнала для расчётов.
func (l *Ledger) Snapshot() Entries {
	return l.entries.Clone()
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATIONS
// Каждая мутация сохраняет журнал. Ошибка записи не откатывает изменение.
// ══════════════════════════════════════════════════════════════════════════════

// ToggleDayCycle переводит ячейку по циклу Unmarked → Present → Absent → Unmarked
// и возвращает новый статус.
func (l *Ledger) ToggleDayCycle(ctx context.Context, studentID, monthKey, dayKey string) (Status, error) {
	if err := validateCell(monthKey, dayKey, "ToggleDayCycle"); err != nil {
		return Unmarked, err
	}

	next := l.entries.Status(studentID, monthKey, dayKey).Next()
	l.entries.set(studentID, monthKey, dayKey, next)
	return next, l.persist(ctx, "ToggleDayCycle")
}

// ToggleTodayBinary отмечает сегодняшний день: тот же статус снимается,
// другой записывается поверх. status должен быть Present или Absent.
func (l *Ledger) ToggleTodayBinary(ctx context.Context, studentID string, status Status) (Status, error) {
	if !status.IsValid() {
		return Unmarked, shared.NewValidationError(domainName, "ToggleTodayBinary",
			shared.FieldError{Field: "status", Message: fmt.Sprintf("status must be %q or %q", Present, Absent)})
	}

	monthKey, dayKey := l.Today()
	next := status
	if l.entries.Status(studentID, monthKey, dayKey) == status {
		next = Unmarked
	}
	l.entries.set(studentID, monthKey, dayKey, next)
	return next, l.persist(ctx, "ToggleTodayBinary")
}

// MarkAllPresent ставит Present на дни 1..daysInMonth каждому ученику,
// перезаписывая прежние отметки.
func (l *Ledger) MarkAllPresent(ctx context.Context, studentIDs []string, monthKey string, daysInMonth int) error {
	if err := validateMonth(monthKey, "MarkAllPresent"); err != nil {
		return err
	}

	for _, id := range studentIDs {
		for day := 1; day <= daysInMonth; day++ {
			l.entries.set(id, monthKey, timeutil.DayKey(day), Present)
		}
	}
	return l.persist(ctx, "MarkAllPresent")
}

// ClearMonth удаляет месяц целиком у каждого ученика.
func (l *Ledger) ClearMonth(ctx context.Context, studentIDs []string, monthKey string) error {
	if err := validateMonth(monthKey, "ClearMonth"); err != nil {
		return err
	}

	for _, id := range studentIDs {
		l.entries.unsetMonth(id, monthKey)
	}
	return l.persist(ctx, "ClearMonth")
}

// CascadeDelete удаляет все отметки ученика. Реализует roster.AttendanceCleaner.
// Если отметок нет, хранилище не трогается.
func (l *Ledger) CascadeDelete(ctx context.Context, studentID string) error {
	if _, ok := l.entries[studentID]; !ok {
		return nil
	}
	delete(l.entries, studentID)
	return l.persist(ctx, "CascadeDelete")
}

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE
// ══════════════════════════════════════════════════════════════════════════════

// Load заменяет журнал содержимым записи "attendance".
// Отсутствие записи - пустой журнал. Повреждённая запись - пустой журнал
// плюс ошибка shared.ErrPersistence.
func (l *Ledger) Load(ctx context.Context) error {
	l.entries = make(Entries)

	data, ok, err := l.store.Get(ctx, shared.KeyAttendance)
	if err != nil {
		return shared.Persistence(domainName, "Load", err)
	}
	if !ok {
		return nil
	}

	var loaded Entries
	if err := json.Unmarshal(data, &loaded); err != nil {
		return shared.WrapError(domainName, "Load", shared.ErrPersistence, "malformed attendance record", err)
	}
	if loaded == nil {
		return nil
	}

	dropped := loaded.compact()
	l.entries = loaded
	if dropped > 0 {
		return shared.NewDomainError(domainName, "Load", shared.ErrPersistence,
			fmt.Sprintf("dropped %d attendance mark(s) with unknown status", dropped))
	}
	return nil
}

func (l *Ledger) persist(ctx context.Context, op string) error {
	data, err := json.Marshal(l.entries)
	if err != nil {
		return shared.Persistence(domainName, op, err)
	}
	if err := l.store.Set(ctx, shared.KeyAttendance, data); err != nil {
		return shared.Persistence(domainName, op, err)
	}
	return nil
}

func validateMonth(monthKey, op string) error {
	if _, _, err := timeutil.ParseMonthKey(monthKey); err != nil {
		return shared.WrapError(domainName, op, shared.ErrInvalidInput, "invalid month key", err)
	}
	return nil
}

func validateCell(monthKey, dayKey, op string) error {
	if err := validateMonth(monthKey, op); err != nil {
		return err
	}
	year, month, _ := timeutil.ParseMonthKey(monthKey)
	for day := 1; day <= timeutil.DaysInMonth(year, month); day++ {
		if timeutil.DayKey(day) == dayKey {
			return nil
		}
	}
	return shared.NewDomainError(domainName, op, shared.ErrInvalidInput,
		fmt.Sprintf("invalid day %q for month %s", dayKey, monthKey))
}
