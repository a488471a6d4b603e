// Package actions определяет шесть поведенческих контрактов действий
// workflow (Collect, Split, Divide, Publish, Consume, Utility) и явный
// реестр фабрик реализаций.
//
// Реализация действия — закрытое множество типов, диспетчеризуемых через
// интерфейсы. Конфигурация несёт символический ключ (ActionDef.Impl),
// который разрешается через карту регистрации, заполняемую при старте
// процесса. Ambient-поиска и разрешения кода по строковому имени нет.
//
// Семантика сигналов:
//   - ErrAbort        — отбросить результат, вернуть документ в пул
//   - *OpsError       — операционная ошибка, записывается на документ
//   - любая другая    — dev-ошибка (баг), эскалируется в alerting
package actions
