package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики worker'а. Экспортируются на /metrics endpoint.
var (
	// MessagesProcessed — обработанные сообщения по исходу:
	// ok, unknown_class, dropped.
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artisan_messages_processed_total",
		Help: "Processed inbound messages by outcome.",
	}, []string{"outcome"})

	// ProcessingDuration — длительность обработки одного сообщения
	// (валидация, классификация, генерация, публикация).
	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "artisan_processing_duration_seconds",
		Help:    "End-to-end processing time of one message.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// PublishFailures — неудачные публикации результата.
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artisan_publish_failures_total",
		Help: "Failed pushes to the outbound queue.",
	})

	// CriticalFailures — ошибки, дошедшие до внешнего supervisory-цикла.
	CriticalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artisan_critical_failures_total",
		Help: "Failures that escaped per-message handling.",
	})

	// BrokerReconnects — переподключения, инициированные после сбоя
	// класса "соединение" перед повторной попыткой операции.
	BrokerReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artisan_broker_reconnects_total",
		Help: "Reconnects triggered by connectivity failures.",
	})

	// BrokerUp — результат последнего ping брокера (1 — доступен).
	BrokerUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "artisan_broker_up",
		Help: "Whether the last broker ping succeeded.",
	}, []string{"queue"})

	// QueueEmpty — пуста ли очередь по последней выборке (1 — пуста).
	QueueEmpty = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "artisan_queue_empty",
		Help: "Whether the queue was empty at the last sample.",
	}, []string{"queue"})
)

// Исходы обработки для MessagesProcessed.
const (
	OutcomeOK           = "ok"
	OutcomeUnknownClass = "unknown_class"
	OutcomeDropped      = "dropped"
)
