// Package roster содержит реестр учеников класса.
//
// Пакет определяет:
//
//   - Сущность Student и входные структуры NewStudent / UpdateStudent
//   - Нормализацию телефона к виду "dddd-ddddddd"
//   - Repository - упорядоченный список учеников с сохранением в хранилище
//   - Интерфейсы Validator и AttendanceCleaner, которые реализуются снаружи
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - хранилище, валидация и очистка посещаемости
//     приходят через интерфейсы
//  3. Repository не потокобезопасен: сериализация команд - задача
//     application-слоя (tracker.Service)
//
// # Сохранение
//
// Весь список целиком записывается под ключом "students" после каждой
// успешной мутации. Ошибка записи не откатывает изменение в памяти,
// но возвращается вызывающему как shared.ErrPersistence:
//
//	st, err := repo.Add(ctx, roster.NewStudent{Name: "Ali Khan", ...})
//	if shared.IsPersistence(err) {
//	    // st уже в реестре, но не сохранён
//	}
package roster
