// Package telemetry обеспечивает наблюдаемость worker'а.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Worker использует единый формат логирования
// и экспортирует метрики на /metrics endpoint.
package telemetry
