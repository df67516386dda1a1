package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/classbook/classbook/internal/domain/shared"
	"github.com/classbook/classbook/pkg/timeutil"
)

const domainName = "roster"

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// Реестр не знает, как устроены валидация и журнал посещаемости.
// ══════════════════════════════════════════════════════════════════════════════

// Validator - набор предикатов для входных данных ученика.
// Возвращает все нарушенные поля сразу, без остановки на первом.
type Validator interface {
	ValidateStudent(s Student) []shared.FieldError
}

// ValidatorFunc позволяет использовать функцию как Validator.
type ValidatorFunc func(s Student) []shared.FieldError

// ValidateStudent вызывает f(s).
func (f ValidatorFunc) ValidateStudent(s Student) []shared.FieldError {
	return f(s)
}

// RequiredFields - минимальный Validator: все поля заполнены,
// телефон в каноническом виде.
var RequiredFields = ValidatorFunc(func(s Student) []shared.FieldError {
	var errs []shared.FieldError
	if isBlank(s.Name) {
		errs = append(errs, shared.FieldError{Field: "name", Message: "name is required"})
	}
	if isBlank(s.FatherName) {
		errs = append(errs, shared.FieldError{Field: "fatherName", Message: "father name is required"})
	}
	if !IsCanonicalPhone(s.Phone) {
		errs = append(errs, shared.FieldError{Field: "phone", Message: "phone format should be 03XX-XXXXXXX"})
	}
	if isBlank(s.ClassName) {
		errs = append(errs, shared.FieldError{Field: "className", Message: "class is required"})
	}
	return errs
})

// AttendanceCleaner удаляет записи посещаемости удалённого ученика.
type AttendanceCleaner interface {
	CascadeDelete(ctx context.Context, studentID string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Options - зависимости Repository. Нулевые значения заменяются
// значениями по умолчанию.
type Options struct {
	// Validator проверяет ученика после нормализации. По умолчанию RequiredFields.
	Validator Validator

	// Cleaner вызывается при удалении ученика. Может быть nil.
	Cleaner AttendanceCleaner

	// Clock задаёт CreatedAt. По умолчанию системные часы.
	Clock timeutil.Clock

	// NewID генерирует идентификаторы. По умолчанию SequentialIDs.
	NewID func() string
}

// Repository хранит учеников в порядке добавления.
// Не потокобезопасен.
type Repository struct {
	store     shared.Store
	validator Validator
	cleaner   AttendanceCleaner
	clock     timeutil.Clock
	newID     func() string

	students []Student
}

// NewRepository создаёт пустой реестр. Для чтения сохранённых данных
// вызовите Load.
func NewRepository(store shared.Store, opts Options) *Repository {
	if opts.Validator == nil {
		opts.Validator = RequiredFields
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock
	}
	if opts.NewID == nil {
		opts.NewID = SequentialIDs(opts.Clock)
	}
	return &Repository{
		store:     store,
		validator: opts.Validator,
		cleaner:   opts.Cleaner,
		clock:     opts.Clock,
		newID:     opts.NewID,
		students:  make([]Student, 0),
	}
}

// SequentialIDs возвращает генератор вида "<ms base36>-<счётчик base36>".
// Идентификаторы растут монотонно в пределах процесса.
func SequentialIDs(clock timeutil.Clock) func() string {
	var seq atomic.Uint64
	return func() string {
		n := seq.Add(1)
		return strconv.FormatInt(clock().UnixMilli(), 36) + "-" + strconv.FormatUint(n, 36)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

// Add нормализует и проверяет вход, присваивает ID и CreatedAt,
// добавляет ученика в конец и сохраняет список.
//
// При ошибке валидации ничего не добавляется. При ошибке записи ученик
// остаётся в реестре и возвращается вместе с ошибкой.
func (r *Repository) Add(ctx context.Context, in NewStudent) (Student, error) {
	s := normalize(Student{
		Name:       in.Name,
		FatherName: in.FatherName,
		Phone:      in.Phone,
		ClassName:  in.ClassName,
		FeesPaid:   in.FeesPaid,
	})

	if fields := r.validator.ValidateStudent(s); len(fields) > 0 {
		return Student{}, shared.NewValidationError(domainName, "Add", fields...)
	}

	s.ID = r.uniqueID()
	s.CreatedAt = r.clock().UnixMilli()
	r.students = append(r.students, s)

	return s, r.persist(ctx, "Add")
}

// Update накладывает патч на ученика id, проверяет результат и сохраняет.
func (r *Repository) Update(ctx context.Context, id string, patch UpdateStudent) (Student, error) {
	i := r.indexOf(id)
	if i < 0 {
		return Student{}, shared.NotFound(domainName, "Update", id)
	}

	s := normalize(patch.apply(r.students[i]))
	if fields := r.validator.ValidateStudent(s); len(fields) > 0 {
		return Student{}, shared.NewValidationError(domainName, "Update", fields...)
	}

	r.students[i] = s
	return s, r.persist(ctx, "Update")
}

// ToggleFees инвертирует признак оплаты.
func (r *Repository) ToggleFees(ctx context.Context, id string) (Student, error) {
	i := r.indexOf(id)
	if i < 0 {
		return Student{}, shared.NotFound(domainName, "ToggleFees", id)
	}

	r.students[i].FeesPaid = !r.students[i].FeesPaid
	return r.students[i], r.persist(ctx, "ToggleFees")
}

// Remove удаляет ученика и его посещаемость. Отсутствующий id - не ошибка.
func (r *Repository) Remove(ctx context.Context, id string) error {
	i := r.indexOf(id)
	if i < 0 {
		return nil
	}
	r.students = append(r.students[:i], r.students[i+1:]...)

	var cascadeErr error
	if r.cleaner != nil {
		cascadeErr = r.cleaner.CascadeDelete(ctx, id)
	}
	return errors.Join(cascadeErr, r.persist(ctx, "Remove"))
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// Find ищет ученика по ID.
func (r *Repository) Find(id string) (Student, bool) {
	i := r.indexOf(id)
	if i < 0 {
		return Student{}, false
	}
	return r.students[i], true
}

// List возвращает копию списка в порядке добавления.
func (r *Repository) List() []Student {
	out := make([]Student, len(r.students))
	copy(out, r.students)
	return out
}

// Len возвращает число учеников.
func (r *Repository) Len() int {
	return len(r.students)
}

// Search ищет подстроку без учёта регистра в имени, имени отца и классе.
// Пустой запрос возвращает весь список.
func (r *Repository) Search(term string) []Student {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return r.List()
	}

	out := make([]Student, 0)
	for _, s := range r.students {
		if strings.Contains(strings.ToLower(s.Name), term) ||
			strings.Contains(strings.ToLower(s.FatherName), term) ||
			strings.Contains(strings.ToLower(s.ClassName), term) {
			out = append(out, s)
		}
	}
	return out
}

// Classes возвращает различные метки классов. Числовые метки сортируются
// как числа ("2" < "10") и идут перед остальными.
func (r *Repository) Classes() []string {
	seen := make(map[string]struct{})
	classes := make([]string, 0)
	for _, s := range r.students {
		if s.ClassName == "" {
			continue
		}
		if _, ok := seen[s.ClassName]; ok {
			continue
		}
		seen[s.ClassName] = struct{}{}
		classes = append(classes, s.ClassName)
	}

	sort.Slice(classes, func(i, j int) bool {
		a, errA := strconv.Atoi(classes[i])
		b, errB := strconv.Atoi(classes[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return classes[i] < classes[j]
		}
	})
	return classes
}

// ─────────────────────────────────────────────────────────────────────────────
// Persistence
// ─────────────────────────────────────────────────────────────────────────────

// Load заменяет реестр содержимым записи "students".
// Отсутствие записи - пустой реестр. Повреждённая запись - тоже пустой
// реестр плюс ошибка shared.ErrPersistence для уведомления пользователя.
// Записи без ID и повторные ID пропускаются.
func (r *Repository) Load(ctx context.Context) error {
	r.students = make([]Student, 0)

	data, ok, err := r.store.Get(ctx, shared.KeyStudents)
	if err != nil {
		return shared.Persistence(domainName, "Load", err)
	}
	if !ok {
		return nil
	}

	var loaded []Student
	if err := json.Unmarshal(data, &loaded); err != nil {
		return shared.WrapError(domainName, "Load", shared.ErrPersistence, "malformed students record", err)
	}

	seen := make(map[string]struct{}, len(loaded))
	skipped := 0
	for _, s := range loaded {
		if s.ID == "" {
			skipped++
			continue
		}
		if _, dup := seen[s.ID]; dup {
			skipped++
			continue
		}
		seen[s.ID] = struct{}{}
		r.students = append(r.students, s)
	}

	if skipped > 0 {
		return shared.NewDomainError(domainName, "Load", shared.ErrPersistence,
			fmt.Sprintf("skipped %d students record(s) with missing or duplicate id", skipped))
	}
	return nil
}

func (r *Repository) persist(ctx context.Context, op string) error {
	data, err := json.Marshal(r.students)
	if err != nil {
		return shared.Persistence(domainName, op, err)
	}
	if err := r.store.Set(ctx, shared.KeyStudents, data); err != nil {
		return shared.Persistence(domainName, op, err)
	}
	return nil
}

func (r *Repository) indexOf(id string) int {
	for i := range r.students {
		if r.students[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueID повторяет генерацию, пока ID не станет уникальным. После
// первой коллизии к ID добавляется номер попытки.
func (r *Repository) uniqueID() string {
	for attempt := 0; ; attempt++ {
		id := r.newID()
		if attempt > 0 {
			id += "-" + strconv.Itoa(attempt)
		}
		if id != "" && r.indexOf(id) < 0 {
			return id
		}
	}
}

