// Package telemetry — наблюдаемость конвейера обработки документов.
//
// logging.go настраивает structured logging через slog (уровень и
// формат из окружения) и добавляет контекстные атрибуты workflow,
// действия и документа. metrics.go объявляет Prometheus-метрики
// с префиксом armagh_: захваты и обработка документов, состояние
// агентов, создание trigger-документов, возврат просроченных
// блокировок, конфликты публикации.
//
// Процессы агента и триггера используют общий формат логов и отдают
// метрики на /metrics endpoint.
package telemetry
