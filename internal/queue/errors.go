package queue

import (
	"errors"
	"io"
	"net"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Ошибки пакета.
var (
	// ErrClosed — клиент уже закрыт через Close.
	ErrClosed = errors.New("queue client is closed")

	// ErrNotConnected — соединение с брокером отсутствует
	// и восстановить его не удалось.
	ErrNotConnected = errors.New("not connected to broker")
)

// isConnectivityError относит ошибку к классу сбоев соединения:
// разрыв соединения, канал закрыт брокером, потеря потока.
// Только такие ошибки запускают reconnect-retry; остальные
// (сериализация, некорректное тело) возвращаются сразу.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	// Канал или соединение закрыты (в т.ч. принудительно брокером).
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}

	// Любая протокольная ошибка AMQP инвалидирует канал.
	var aerr *amqp.Error
	if errors.As(err, &aerr) {
		return true
	}

	// Потеря потока на транспортном уровне.
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}

	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
