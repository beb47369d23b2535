// Package cli реализует команды операторского инструмента artisan.
//
// Команды работают с брокером напрямую (HTTP API у worker'а нет):
//   - ping     — проверка доступности брокера
//   - empty    — проверка глубины очереди
//   - declare  — объявление очереди
//   - send     — отправка тестового запроса на генерацию
//
// Параметры подключения берутся из окружения RABBITMQ_* —
// те же переменные, что использует worker.
package cli
