// Package alert — приёмник операторских алертов поверх RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с брокером (reconnect)
//   - sink.go       — Sink-интерфейс, AMQPSink и LogSink-деградация
//
// Routing keys:
//   - alert.ops — ожидаемые операционные проблемы (окружение, данные)
//   - alert.dev — неожиданные ошибки, сигнализирующие о баге
//
// Недоступность брокера никогда не блокирует обработку документов:
// алерты деградируют в структурированный лог.
package alert
