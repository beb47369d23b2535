// Package monitor периодически опрашивает брокер и выставляет
// Prometheus-метрики доступности и глубины очереди.
package monitor

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Artisan/internal/queue"
	"github.com/shaiso/Artisan/internal/telemetry"
)

// defaultSchedule — интервал выборки по умолчанию.
const defaultSchedule = "@every 30s"

// Monitor снимает здоровье брокера по расписанию.
//
// Выборка выполняется в горутине cron'а, поэтому монитору нужен
// собственный экземпляр клиента — разделять его с pipeline нельзя.
// Перекрывающиеся срабатывания пропускаются: клиент не потокобезопасен,
// и выборка, зависшая на недоступном брокере, не должна делить его
// с последующими.
type Monitor struct {
	client    queue.Client
	queueName string
	schedule  string
	logger    *slog.Logger
	cron      *cron.Cron
}

// Config — конфигурация Monitor.
type Config struct {
	// Client — выделенный клиент очереди (монитор владеет им).
	Client queue.Client

	// QueueName — имя очереди для меток метрик.
	QueueName string

	// Schedule — cron-выражение выборки (default: "@every 30s").
	Schedule string

	// Logger
	Logger *slog.Logger
}

// New создаёт Monitor.
func New(cfg Config) *Monitor {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		client:    cfg.Client,
		queueName: cfg.QueueName,
		schedule:  schedule,
		logger:    logger.With("queue", cfg.QueueName),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
	}
}

// Start запускает периодическую выборку. Первая выборка выполняется сразу,
// синхронно, до старта расписания — параллельно с ней не может идти
// ни одно запланированное срабатывание.
func (m *Monitor) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, m.sample); err != nil {
		return fmt.Errorf("schedule broker sample: %w", err)
	}

	m.sample()
	m.cron.Start()

	m.logger.Info("broker monitor started", "schedule", m.schedule)
	return nil
}

// Stop останавливает расписание, дожидается текущей выборки
// и закрывает клиента.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()

	if err := m.client.Close(); err != nil {
		m.logger.Warn("error closing monitor queue client", "error", err)
	}

	m.logger.Info("broker monitor stopped")
}

// sample — одна выборка: ping брокера и проверка глубины очереди.
func (m *Monitor) sample() {
	if err := m.client.Ping(); err != nil {
		telemetry.BrokerUp.WithLabelValues(m.queueName).Set(0)
		m.logger.Warn("broker ping failed", "error", err)
		return
	}
	telemetry.BrokerUp.WithLabelValues(m.queueName).Set(1)

	if m.client.Empty() {
		telemetry.QueueEmpty.WithLabelValues(m.queueName).Set(1)
	} else {
		telemetry.QueueEmpty.WithLabelValues(m.queueName).Set(0)
	}
}
