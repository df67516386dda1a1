package roster

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - ученик в реестре. JSON-имена полей совпадают с форматом
// записи "students" в хранилище.
type Student struct {
	// ID - уникальный неизменяемый идентификатор.
	ID string `json:"id"`

	// Name - имя ученика.
	Name string `json:"name"`

	// FatherName - имя отца или опекуна.
	FatherName string `json:"fatherName"`

	// Phone - телефон в каноническом виде "0300-1234567".
	Phone string `json:"phone"`

	// ClassName - метка класса. Для реестра это непрозрачная строка.
	ClassName string `json:"className"`

	// FeesPaid - оплачено ли обучение.
	FeesPaid bool `json:"feesPaid"`

	// CreatedAt - время создания в миллисекундах Unix. Не меняется.
	CreatedAt int64 `json:"createdAt"`
}

// CreatedTime возвращает CreatedAt как time.Time.
func (s Student) CreatedTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// NewStudent - входные данные для Repository.Add.
type NewStudent struct {
	Name       string `json:"name"`
	FatherName string `json:"fatherName"`
	Phone      string `json:"phone"`
	ClassName  string `json:"className"`
	FeesPaid   bool   `json:"feesPaid"`
}

// UpdateStudent - частичное обновление. nil означает "не менять".
type UpdateStudent struct {
	Name       *string `json:"name,omitempty"`
	FatherName *string `json:"fatherName,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	ClassName  *string `json:"className,omitempty"`
	FeesPaid   *bool   `json:"feesPaid,omitempty"`
}

// IsEmpty возвращает true, если патч ничего не меняет.
func (u UpdateStudent) IsEmpty() bool {
	return u.Name == nil && u.FatherName == nil && u.Phone == nil &&
		u.ClassName == nil && u.FeesPaid == nil
}

// apply накладывает патч на копию s. ID и CreatedAt не трогаются.
func (u UpdateStudent) apply(s Student) Student {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.FatherName != nil {
		s.FatherName = *u.FatherName
	}
	if u.Phone != nil {
		s.Phone = *u.Phone
	}
	if u.ClassName != nil {
		s.ClassName = *u.ClassName
	}
	if u.FeesPaid != nil {
		s.FeesPaid = *u.FeesPaid
	}
	return s
}

// normalize обрезает пробелы и приводит телефон к каноническому виду.
func normalize(s Student) Student {
	s.Name = strings.TrimSpace(s.Name)
	s.FatherName = strings.TrimSpace(s.FatherName)
	s.ClassName = strings.TrimSpace(s.ClassName)
	s.Phone = NormalizePhone(s.Phone)
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// PHONE
// ══════════════════════════════════════════════════════════════════════════════

const (
	phonePrefixDigits = 4
	phoneLineDigits   = 7
)

var phonePattern = regexp.MustCompile(`^\d{4}-\d{7}$`)

// NormalizePhone убирает всё, кроме цифр, и группирует их как 4-7.
// Меньше четырёх цифр возвращается без дефиса, лишние цифры отбрасываются:
//
//	NormalizePhone("03001234567")   // "0300-1234567"
//	NormalizePhone("(0300) 123 45") // "0300-12345"
func NormalizePhone(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	if len(digits) < phonePrefixDigits {
		return digits
	}
	end := min(len(digits), phonePrefixDigits+phoneLineDigits)
	return digits[:phonePrefixDigits] + "-" + digits[phonePrefixDigits:end]
}

// IsCanonicalPhone проверяет формат "dddd-ddddddd".
func IsCanonicalPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// isBlank возвращает true для пустой строки или строки из пробелов.
func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
