package ledger

// Days - статусы по дням одного месяца.
type Days map[string]Status

// Months - дни по месяцам одного ученика.
type Months map[string]Days

// Entries - весь журнал, ключ - ID ученика. JSON-форма совпадает с
// записью "attendance" в хранилище.
type Entries map[string]Months

// Status возвращает отметку или Unmarked.
func (e Entries) Status(studentID, monthKey, dayKey string) Status {
	return e[studentID][monthKey][dayKey]
}

// Month возвращает дни месяца ученика. Результат нельзя изменять.
func (e Entries) Month(studentID, monthKey string) Days {
	return e[studentID][monthKey]
}

// set записывает статус, создавая промежуточные уровни.
// Unmarked удаляет ключ.
func (e Entries) set(studentID, monthKey, dayKey string, s Status) {
	if s == Unmarked {
		e.unset(studentID, monthKey, dayKey)
		return
	}
	months, ok := e[studentID]
	if !ok {
		months = make(Months)
		e[studentID] = months
	}
	days, ok := months[monthKey]
	if !ok {
		days = make(Days)
		months[monthKey] = days
	}
	days[dayKey] = s
}

// unset удаляет день и подрезает опустевшие уровни.
func (e Entries) unset(studentID, monthKey, dayKey string) {
	days, ok := e[studentID][monthKey]
	if !ok {
		return
	}
	delete(days, dayKey)
	if len(days) == 0 {
		e.unsetMonth(studentID, monthKey)
	}
}

// unsetMonth удаляет месяц и ученика, если у него не осталось месяцев.
func (e Entries) unsetMonth(studentID, monthKey string) {
	months, ok := e[studentID]
	if !ok {
		return
	}
	delete(months, monthKey)
	if len(months) == 0 {
		delete(e, studentID)
	}
}

// Clone возвращает глубокую копию.
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for id, months := range e {
		m := make(Months, len(months))
		for key, days := range months {
			d := make(Days, len(days))
			for day, s := range days {
				d[day] = s
			}
			m[key] = d
		}
		out[id] = m
	}
	return out
}

// compact удаляет недопустимые статусы и пустые уровни. Применяется к
// данным, прочитанным из хранилища.
func (e Entries) compact() (dropped int) {
	for id, months := range e {
		for key, days := range months {
			for day, s := range days {
				if !s.IsValid() {
					delete(days, day)
					dropped++
				}
			}
			if len(days) == 0 {
				delete(months, key)
			}
		}
		if len(months) == 0 {
			delete(e, id)
		}
	}
	return dropped
}
