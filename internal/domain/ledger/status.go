// Package ledger содержит журнал посещаемости: разреженное отображение
// ученик → месяц ("YYYY-MM") → день ("1".."31") → статус.
//
// "Не отмечен" хранится как отсутствие ключа, а не как пустое значение.
// Пустые вложенные карты удаляются, поэтому журнал остаётся компактным.
//
// Две операции отметки намеренно различаются:
//
//   - ToggleDayCycle - цикл по клику в сетке месяца:
//     не отмечен → P → A → не отмечен
//   - ToggleTodayBinary - быстрая отметка за сегодня: повтор того же
//     статуса снимает отметку, другой статус перезаписывает
package ledger

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - отметка за один день.
type Status string

const (
	// Unmarked - день не отмечен. В журнале не хранится.
	Unmarked Status = ""
	// Present - присутствовал.
	Present Status = "P"
	// Absent - отсутствовал.
	Absent Status = "A"
)

// IsValid возвращает true для Present и Absent - единственных хранимых статусов.
func (s Status) IsValid() bool {
	return s == Present || s == Absent
}

// Next возвращает следующий статус цикла сетки.
func (s Status) Next() Status {
	switch s {
	case Unmarked:
		return Present
	case Present:
		return Absent
	default:
		return Unmarked
	}
}

// Label возвращает человекочитаемое название.
func (s Status) Label() string {
	switch s {
	case Present:
		return "Present"
	case Absent:
		return "Absent"
	default:
		return "Not marked"
	}
}

// ParseStatus разбирает "P"/"A" и их полные названия без учёта регистра.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "P", "p", "present", "Present", "PRESENT":
		return Present, true
	case "A", "a", "absent", "Absent", "ABSENT":
		return Absent, true
	default:
		return Unmarked, false
	}
}
