package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange и routing keys алертов.
const (
	ExchangeAlerts = "armagh.alerts"

	RoutingKeyOps = "alert.ops"
	RoutingKeyDev = "alert.dev"
)

// Severity — серьёзность алерта. Dev-ошибки эскалируются выше ops:
// они сигнализируют о баге, а не о проблеме окружения.
type Severity string

const (
	SeverityOps Severity = "OPS"
	SeverityDev Severity = "DEV"
)

// Alert — операторский алерт, порождаемый движком.
type Alert struct {
	// ID — уникальный идентификатор алерта.
	ID string `json:"id"`

	// Severity — OPS или DEV.
	Severity Severity `json:"severity"`

	// Component — компонент-источник (agent, trigger, store).
	Component string `json:"component"`

	// Workflow, Action — контекст workflow.
	Workflow string `json:"workflow,omitempty"`
	Action   string `json:"action,omitempty"`

	// DocumentInternalID — документ, на котором зафиксирована ошибка.
	DocumentInternalID string `json:"document_internal_id,omitempty"`

	// Message — текст алерта.
	Message string `json:"message"`

	// Timestamp — время возникновения.
	Timestamp time.Time `json:"timestamp"`
}

// Sink — приёмник операторских алертов.
type Sink interface {
	Notify(ctx context.Context, a Alert) error
}

// AMQPSink публикует алерты в exchange брокера.
type AMQPSink struct {
	conn   *Connection
	logger *slog.Logger
}

// NewAMQPSink создаёт AMQPSink и объявляет exchange.
func NewAMQPSink(conn *Connection, logger *slog.Logger) (*AMQPSink, error) {
	ch := conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}
	if err := ch.ExchangeDeclare(ExchangeAlerts, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", ExchangeAlerts, err)
	}
	return &AMQPSink{conn: conn, logger: logger}, nil
}

// Notify публикует алерт. Недоступность брокера деградирует в логирование:
// алерт не должен ронять обработку документа.
func (s *AMQPSink) Notify(ctx context.Context, a Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	routingKey := RoutingKeyOps
	if a.Severity == SeverityDev {
		routingKey = RoutingKeyDev
	}

	ch := s.conn.Channel()
	if ch == nil {
		s.logPassthrough(a, "alert broker unavailable")
		return nil
	}

	err = ch.PublishWithContext(ctx, ExchangeAlerts, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    a.ID,
		Timestamp:    a.Timestamp,
		Body:         body,
	})
	if err != nil {
		s.logPassthrough(a, "alert publish failed")
		return nil
	}
	return nil
}

func (s *AMQPSink) logPassthrough(a Alert, reason string) {
	s.logger.Warn(reason,
		"severity", a.Severity,
		"component", a.Component,
		"workflow", a.Workflow,
		"action", a.Action,
		"document_internal_id", a.DocumentInternalID,
		"message", a.Message,
	)
}

// LogSink пишет алерты только в лог. Используется, когда брокер
// не сконфигурирован, и в тестах.
type LogSink struct {
	Logger *slog.Logger
}

// Notify реализует Sink.
func (s *LogSink) Notify(_ context.Context, a Alert) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelWarn
	if a.Severity == SeverityDev {
		level = slog.LevelError
	}
	logger.Log(context.Background(), level, "operator alert",
		"severity", a.Severity,
		"component", a.Component,
		"workflow", a.Workflow,
		"action", a.Action,
		"document_internal_id", a.DocumentInternalID,
		"message", a.Message,
	)
	return nil
}
