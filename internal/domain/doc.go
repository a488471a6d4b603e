// Package domain содержит доменные модели движка обработки документов.
//
// Центральная сущность — Document: запись, проходящая через направленный
// граф типизированных действий (collect, split, divide, publish, consume,
// utility), определённый конфигурируемым workflow.
//
// # Идентичность и docspec
//
// Документ идентифицируется двумя ключами:
//   - DocumentID — назначается вызывающей стороной, меняется только
//     publish-действием
//   - InternalID — назначается хранилищем, неизменен, используется
//     для блокировки
//
// Пара (Type, State) — docspec — определяет партицию хранения и набор
// действий, которые могут потреблять документ.
//
// # Инварианты
//
//   - PendingWork == (len(PendingActions) > 0 && !Errored())
//     после каждого сеттера и каждого save
//   - State переходит только WORKING→READY→PUBLISHED, без пропусков
//     и без движения назад
//   - Ровно одна Disposition действует на момент save
//
// Производные поля пересчитываются явными сеттерами (SetPendingActions,
// AddOpsError и т.д.) — рефлексивной генерации аксессоров нет.
package domain
