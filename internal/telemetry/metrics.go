package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка обработки документов.
var (
	// DocumentsClaimed — количество успешно захваченных документов.
	DocumentsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "armagh_documents_claimed_total",
		Help: "Documents claimed for processing by agents.",
	})

	// DocumentsProcessed — документы по терминальной disposition
	// за один проход агента.
	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armagh_documents_processed_total",
		Help: "Documents finished per agent pass, by terminal disposition.",
	}, []string{"disposition"})

	// ActionErrors — ошибки действий по классификации dev/ops.
	ActionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armagh_action_errors_total",
		Help: "Action errors recorded on documents, by classification.",
	}, []string{"kind"})

	// ActionsExecuted — выполненные действия по типу.
	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armagh_actions_executed_total",
		Help: "Actions executed, by action type.",
	}, []string{"type"})

	// PublishConflicts — отклонённые publish-попытки со stale timestamp.
	PublishConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "armagh_publish_conflicts_total",
		Help: "Publish attempts rejected because the published copy is newer.",
	})

	// AgentsIdle — число агентов в состоянии IDLE.
	AgentsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "armagh_agents_idle",
		Help: "Agents currently idle (no claimable work).",
	})

	// ExpiredLocksReclaimed — блокировки, возвращённые в пул sweep'ом.
	ExpiredLocksReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "armagh_expired_locks_reclaimed_total",
		Help: "Abandoned locks reclaimed by the expiry sweep.",
	})

	// TriggerDocumentsSeeded — trigger-документы, вставленные по расписанию.
	TriggerDocumentsSeeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "armagh_trigger_documents_seeded_total",
		Help: "Trigger documents inserted by the collection trigger.",
	})
)
