// Package store — адаптер хранилища документов поверх PostgreSQL (pgx).
//
// Структура:
//   - db.go              — пул соединений
//   - schema.go          — таблицы-партиции и индексы
//   - documents.go       — CRUD и маршрутизация save по disposition
//   - claim.go           — атомарный захват документа под блокировку
//   - workflow_config.go — хранилище workflow-конфигураций
//   - agent_status.go    — heartbeat-статусы агентов
//
// # Партиции
//
// Документы распределены по четырём таблицам-партициям:
//   - documents           — рабочий пул (pending-работа)
//   - failures            — документы с накопленными ошибками
//   - published_documents — опубликованные (уникальны по document_id+type)
//   - collection_history  — архив trigger-документов collect-действий
//
// # Протокол блокировки
//
// Блокировка = (locked_by, locked_at, lock_expires_at) на строке.
// Блокировка жива, пока now < lock_expires_at. Захват выполняется одним
// UPDATE с подзапросом FOR UPDATE SKIP LOCKED — конкуренция разрешается
// пропуском записи, не ожиданием. Блокировка обязательна для мутации,
// но не для чтения.
//
// Внутри одного выполнения действия блокировка не продлевается:
// lock hold-duration задаётся щедро относительно ожидаемого времени
// выполнения. ForceResetExpiredLocks возвращает брошенные блокировки
// в пул (crash recovery).
package store
