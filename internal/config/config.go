// Package config собирает конфигурацию worker'а из переменных окружения.
// Параметры подключения к брокеру живут отдельно в internal/queue.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Значения по умолчанию.
const (
	defaultReceiverQueue = "message_receiver"
	defaultUploaderQueue = "message_uploader"
	defaultCategories    = "cat,butterfly"
	defaultMaxDistance   = 0.3
	defaultSimilarityURL = "http://localhost:8100"
	defaultGeneratorURL  = "http://localhost:8101"
	defaultWorkerPort    = "8082"
)

// Config — конфигурация worker'а. Создаётся один раз при старте.
type Config struct {
	// ReceiverQueue — входящая очередь запросов на генерацию.
	ReceiverQueue string

	// UploaderQueue — очередь результатов.
	UploaderQueue string

	// Categories — набор категорий деплоя, в порядке проверки.
	Categories []string

	// MaxDistance — порог дистанции, ниже которого тексты считаются
	// похожими (MAX_MESSAGES_DISTANCE).
	MaxDistance float64

	// SimilarityURL — базовый URL сервиса текстовой близости.
	SimilarityURL string

	// GeneratorURL — базовый URL сервиса генерации.
	GeneratorURL string

	// WorkerPort — порт для /healthz и /metrics.
	WorkerPort string
}

// FromEnv читает конфигурацию из окружения с fallback на defaults.
func FromEnv() Config {
	return Config{
		ReceiverQueue: envString("RECEIVER_QUEUE", defaultReceiverQueue),
		UploaderQueue: envString("UPLOADER_QUEUE", defaultUploaderQueue),
		Categories:    splitList(envString("GENERATION_CLASSES", defaultCategories)),
		MaxDistance:   envFloat("MAX_MESSAGES_DISTANCE", defaultMaxDistance),
		SimilarityURL: envString("SIMILARITY_URL", defaultSimilarityURL),
		GeneratorURL:  envString("GENERATOR_URL", defaultGeneratorURL),
		WorkerPort:    envString("WORKER_PORT", defaultWorkerPort),
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
