package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Artisan/internal/classify"
	"github.com/shaiso/Artisan/internal/generate"
	"github.com/shaiso/Artisan/internal/queue"
	"github.com/shaiso/Artisan/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 500 * time.Millisecond
	defaultCooldown     = 5 * time.Second
)

// Форма синтетического входа генерации по умолчанию: batch 1, 3 канала, 64x64.
var defaultNoiseShape = []int{1, 3, 64, 64}

// Pipeline — последовательный обработчик запросов на генерацию.
//
// Держит два независимых клиента очередей: receiver для входящих запросов
// и uploader для результатов. Соединение между ними не разделяется.
type Pipeline struct {
	receiver queue.Client
	uploader queue.Client

	uploadQueue string
	classifier  *classify.Classifier
	generators  *generate.Registry
	categories  []string
	noiseShape  []int

	pollInterval time.Duration
	cooldown     time.Duration
	logger       *slog.Logger
}

// Config — конфигурация Pipeline.
type Config struct {
	// Receiver — клиент входящей очереди запросов.
	Receiver queue.Client

	// Uploader — клиент очереди ответов.
	Uploader queue.Client

	// UploadQueue — очередь, в которую публикуются результаты.
	UploadQueue string

	// Classifier — классификатор категорий.
	Classifier *classify.Classifier

	// Generators — сопоставление категория → Generator.
	Generators *generate.Registry

	// Categories — набор категорий деплоя, в порядке проверки.
	Categories []string

	// NoiseShape — форма синтетического входа (default: 1x3x64x64).
	NoiseShape []int

	// PollInterval — пауза при пустой очереди (default: 500ms).
	PollInterval time.Duration

	// Cooldown — пауза после критического сбоя (default: 5s).
	Cooldown time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт Pipeline.
func New(cfg Config) *Pipeline {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	noiseShape := cfg.NoiseShape
	if len(noiseShape) == 0 {
		noiseShape = defaultNoiseShape
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		receiver:     cfg.Receiver,
		uploader:     cfg.Uploader,
		uploadQueue:  cfg.UploadQueue,
		classifier:   cfg.Classifier,
		generators:   cfg.Generators,
		categories:   cfg.Categories,
		noiseShape:   noiseShape,
		pollInterval: pollInterval,
		cooldown:     cooldown,
		logger:       logger,
	}
}

// Run запускает внешний supervisory-цикл. Возвращается только по отмене
// контекста. Сбой, вырвавшийся за границу обработки сообщения, логируется
// и сопровождается паузой cooldown перед продолжением — процесс на таком
// классе ошибок не завершается.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"categories", p.categories,
		"upload_queue", p.uploadQueue,
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutdown signal received, stopping pipeline")
			return ctx.Err()
		default:
		}

		if err := p.cycle(ctx); err != nil {
			telemetry.CriticalFailures.Inc()
			p.logger.Error("critical failure in processing loop", "error", err)

			if !sleepCtx(ctx, p.cooldown) {
				p.logger.Info("shutdown signal received, stopping pipeline")
				return ctx.Err()
			}
		}
	}
}

// cycle — одна итерация внутреннего цикла. Ошибки обработки сообщения
// гасятся на границе сообщения (лог + nack без requeue); наружу выходит
// только сбой, вырвавшийся из обработчика паникой.
func (p *Pipeline) cycle(ctx context.Context) (err error) {
	var msg *queue.Message

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in message handling: %v", r)
			// Паника — тоже сбой обработки: доставка не должна зависнуть
			// неподтверждённой до пересоздания канала.
			if msg != nil {
				if !p.receiver.Nack(msg.DeliveryTag, false) {
					p.logger.Warn("failed to nack message after panic", "delivery_tag", msg.DeliveryTag)
				}
				telemetry.MessagesProcessed.WithLabelValues(telemetry.OutcomeDropped).Inc()
			}
		}
	}()

	msg = p.receiver.Pop()
	if msg == nil {
		// Пустая очередь и сбой после retry неразличимы — в обоих случаях
		// короткая пауза и следующая итерация.
		sleepCtx(ctx, p.pollInterval)
		return nil
	}

	p.logger.Debug("received message", "delivery_tag", msg.DeliveryTag)

	start := time.Now()

	if procErr := p.process(ctx, msg); procErr != nil {
		// Отмена контекста — не порча сообщения: доставка остаётся
		// неподтверждённой, брокер выдаст её повторно после переподключения.
		if ctx.Err() != nil {
			p.logger.Info("processing interrupted by shutdown, leaving delivery unacked",
				"delivery_tag", msg.DeliveryTag,
			)
			return nil
		}

		// Граница сообщения: любой сбой шагов валидации/классификации/
		// генерации/публикации приводит к сбросу без requeue.
		p.logger.Error("failed to process message, dropping",
			"delivery_tag", msg.DeliveryTag,
			"user_id", msg.Field("user_id"),
			"error", procErr,
		)
		if !p.receiver.Nack(msg.DeliveryTag, false) {
			p.logger.Warn("failed to nack dropped message", "delivery_tag", msg.DeliveryTag)
		}
		telemetry.MessagesProcessed.WithLabelValues(telemetry.OutcomeDropped).Inc()
		return nil
	}

	telemetry.ProcessingDuration.Observe(time.Since(start).Seconds())
	return nil
}

// process выполняет шаги 2–5 для одного сообщения.
func (p *Pipeline) process(ctx context.Context, msg *queue.Message) error {
	if err := validateBody(msg); err != nil {
		return err
	}

	userID := msg.Field("user_id")
	text := msg.Field("message")
	logger := telemetry.WithUserID(p.logger, userID)

	class, err := p.classifier.Classify(ctx, p.categories, text)
	if errors.Is(err, classify.ErrNoMatch) {
		logger.Info("no relevant class for message")
		return p.deliver(logger, msg, errorPayload(userID, unknownClassMessage), telemetry.OutcomeUnknownClass)
	}
	if err != nil {
		return fmt.Errorf("classify message: %w", err)
	}

	logger = telemetry.WithClass(logger, class)

	generator, err := p.generators.Get(class)
	if err != nil {
		return err
	}

	artifact, err := generator.Generate(ctx, generate.Noise(p.noiseShape...))
	if err != nil {
		return fmt.Errorf("generate artifact: %w", err)
	}

	imageB64, shape := generate.Encode(artifact)
	return p.deliver(logger, msg, okPayload(userID, imageB64, shape), telemetry.OutcomeOK)
}

// deliver публикует результат и подтверждает входящее сообщение.
// Ack выполняется только при успешной публикации; неудачный push
// возвращается как ошибка обработки (сообщение будет сброшено, чтобы
// не зациклиться на недоступном downstream'е).
func (p *Pipeline) deliver(logger *slog.Logger, msg *queue.Message, payload ResultPayload, outcome string) error {
	if !p.uploader.Push(p.uploadQueue, payload) {
		telemetry.PublishFailures.Inc()
		return ErrPushFailed
	}

	// Сбой ack после успешной публикации не откатывает результат:
	// брокер повторно доставит запрос, downstream увидит дубль.
	if !p.receiver.Ack(msg.DeliveryTag) {
		logger.Warn("failed to ack processed message", "delivery_tag", msg.DeliveryTag)
	}

	telemetry.MessagesProcessed.WithLabelValues(outcome).Inc()
	logger.Info("message processed", "outcome", outcome)
	return nil
}

// sleepCtx ждёт d с учётом контекста. false — контекст отменён.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
