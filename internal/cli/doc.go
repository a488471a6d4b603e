// Package cli реализует административный инструмент командной строки.
//
// # Обзор
//
// CLI работает напрямую с хранилищем: валидация и применение
// workflow-конфигураций, сброс протухших блокировок, наблюдение за
// агентами. HTTP-поверхности у системы нет.
//
// # Ключевые компоненты
//
// ## Admin
//
// Клиент хранилища. Инкапсулирует пул соединений, репозитории и
// операции администрирования.
//
//	admin, err := cli.Connect(ctx)
//	spec, warnings, err := admin.ApplyWorkflow(ctx, "workflow.yaml")
//
// Невалидное определение workflow отклоняется до записи в хранилище:
// агенты никогда не видят его, действующей остаётся прежняя
// конфигурация.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: armagh agents list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - workflow: validate, apply, show
//   - locks: sweep
//   - agents: list
//
// Каждая группа создаётся через фабричную функцию (NewWorkflowCmd и
// т.д.), принимающую adminFn и outputFn — замыкания для ленивого
// создания Admin и Output после парсинга PersistentFlags.
package cli
