// Пакет trigger реализует Collection Trigger: планировщик, который
// будит collect- и utility-действия по их cron-расписаниям.
//
// Trigger не выполняет действия. Он лишь вставляет в рабочий пул
// лёгкие trigger-документы; агенты захватывают их наравне с обычными
// документами и выполняют действие. Благодаря детерминированному
// document_id повторная вставка при необработанном прежнем trigger'е
// схлопывается уникальным индексом хранилища, поэтому запуск
// нескольких экземпляров trigger'а безопасен.
//
// Смена поколения workflow-снимка обнуляет историю расписаний: новое
// расписание отсчитывается от момента загрузки конфигурации.
package trigger
