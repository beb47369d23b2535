// Artisan Worker — обрабатывает запросы на генерацию изображений.
//
// Worker:
//   - Получает запросы из очереди RabbitMQ
//   - Классифицирует текст по фиксированному набору категорий
//   - Вызывает backend генерации для найденной категории
//   - Публикует результат в очередь ответов и подтверждает запрос
//
// Обработка строго последовательная: prefetch=1, одно сообщение in-flight.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Artisan/internal/classify"
	"github.com/shaiso/Artisan/internal/config"
	"github.com/shaiso/Artisan/internal/generate"
	"github.com/shaiso/Artisan/internal/monitor"
	"github.com/shaiso/Artisan/internal/pipeline"
	"github.com/shaiso/Artisan/internal/queue"
	"github.com/shaiso/Artisan/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting artisan-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.FromEnv()

	// Два независимых клиента: входящая очередь и очередь ответов.
	// Соединение между ними не разделяется.
	receiver, err := queue.New(queue.FromEnv(cfg.ReceiverQueue), logger)
	if err != nil {
		logger.Error("failed to connect receiver queue", "error", err)
		os.Exit(1)
	}
	defer receiver.Close()

	uploader, err := queue.New(queue.FromEnv(cfg.UploaderQueue), logger)
	if err != nil {
		logger.Error("failed to connect uploader queue", "error", err)
		os.Exit(1)
	}
	defer uploader.Close()

	// Проверяем обе очереди до старта обработки
	if err := receiver.Ping(); err != nil {
		logger.Error("receiver queue ping failed", "error", err)
		os.Exit(1)
	}
	if err := uploader.Ping(); err != nil {
		logger.Error("uploader queue ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("queues connected",
		"receiver", cfg.ReceiverQueue,
		"uploader", cfg.UploaderQueue,
	)

	// Внешние backend'ы: текстовая близость и генерация
	comparer := classify.NewHTTPComparer(cfg.SimilarityURL, cfg.MaxDistance)
	classifier := classify.NewClassifier(comparer, logger)

	generators := make(map[string]generate.Generator, len(cfg.Categories))
	for _, class := range cfg.Categories {
		generators[class] = generate.NewHTTPGenerator(cfg.GeneratorURL, class)
	}
	registry := generate.NewRegistry(generators)

	// Монитор брокера с собственным клиентом
	monClient, err := queue.New(queue.FromEnv(cfg.ReceiverQueue), logger)
	if err != nil {
		logger.Warn("broker monitor disabled", "error", err)
	} else {
		mon := monitor.New(monitor.Config{
			Client:    monClient,
			QueueName: cfg.ReceiverQueue,
			Logger:    logger,
		})
		if err := mon.Start(); err != nil {
			logger.Warn("failed to start broker monitor", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		addr := ":" + cfg.WorkerPort
		logger.Info("listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Запускаем обработку; блокируется до отмены контекста
	p := pipeline.New(pipeline.Config{
		Receiver:    receiver,
		Uploader:    uploader,
		UploadQueue: cfg.UploaderQueue,
		Classifier:  classifier,
		Generators:  registry,
		Categories:  cfg.Categories,
		Logger:      logger,
	})

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("pipeline error", "error", err)
		os.Exit(1)
	}

	logger.Info("artisan-worker stopped")
}
