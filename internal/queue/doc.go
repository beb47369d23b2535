// Package queue предоставляет инфраструктуру для работы с очередями сообщений.
//
// Структура:
//   - queue.go    — контракт Client и контейнер Message
//   - config.go   — параметры подключения к брокеру
//   - rabbitmq.go — реализация Client поверх RabbitMQ (reconnect, retry-once)
//   - errors.go   — ошибки пакета и классификация сбоев соединения
//
// Каждый экземпляр Client владеет ровно одной парой соединение/канал
// и принадлежит одной горутине. Разделять экземпляр между горутинами нельзя —
// worker держит два независимых клиента (входящая и исходящая очереди),
// monitor держит свой третий.
package queue
