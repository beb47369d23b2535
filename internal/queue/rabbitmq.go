package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Artisan/internal/telemetry"
)

// Параметры транспорта. Зависший брокер обнаруживается heartbeat'ом —
// на уровне отдельных вызовов таймаутов нет.
const (
	heartbeatInterval = 600 * time.Second
	dialTimeout       = 10 * time.Second
)

// connState — состояние соединения. Владеет им исключительно RabbitQueue,
// наружу не выходит.
type connState int

const (
	stateDisconnected connState = iota
	stateConnected
	stateNeedsReinit
)

// RabbitQueue — реализация Client поверх RabbitMQ.
//
// Прячет весь жизненный цикл соединения и канала за контрактом Client:
//   - разрыв соединения → полный reconnect (dial, канал, prefetch, declare)
//   - канал закрыт брокером → пересоздание канала без разрыва соединения
//   - каждая операция сначала приводит состояние к connected, затем
//     выполняется; при сбое класса "соединение" — ровно одна повторная
//     попытка после принудительной переинициализации
//
// Клиентские библиотеки инвалидируют канал при любой протокольной ошибке
// (например, повторный ack), а соединение — при потере сети; предусловие
// ensureReady перед каждой операцией закрывает оба случая.
//
// Экземпляр не потокобезопасен: им владеет одна горутина.
type RabbitQueue struct {
	cfg    Config
	logger *slog.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
	state   connState
	closed  bool
}

// New создаёт клиента и сразу устанавливает соединение:
// dial, канал, prefetch, объявление привязанной очереди.
func New(cfg Config, logger *slog.Logger) (*RabbitQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaultPrefetch
	}

	q := &RabbitQueue{
		cfg:    cfg,
		logger: logger.With("queue", cfg.QueueName),
	}

	if err := q.connect(); err != nil {
		return nil, err
	}

	return q, nil
}

// connect устанавливает соединение, открывает канал, применяет prefetch
// и объявляет привязанную очередь.
func (q *RabbitQueue) connect() error {
	q.state = stateDisconnected

	conn, err := amqp.DialConfig(q.cfg.URL(), amqp.Config{
		Heartbeat: heartbeatInterval,
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	// Prefetch привязан к каналу, не к соединению — применяется заново
	// при каждом пересоздании канала.
	if err := ch.Qos(q.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	q.conn = conn
	q.channel = ch

	if err := q.declareBound(); err != nil {
		return err
	}

	q.state = stateConnected
	q.logger.Info("connected to RabbitMQ", "host", q.cfg.Host, "prefetch", q.cfg.Prefetch)
	return nil
}

// reinitChannel пересоздаёт канал на живом соединении:
// закрывает старый, открывает новый, заново применяет prefetch
// и объявляет очередь.
func (q *RabbitQueue) reinitChannel() error {
	q.logger.Debug("reinitializing channel")

	if q.channel != nil && !q.channel.IsClosed() {
		if err := q.channel.Close(); err != nil {
			q.logger.Debug("error closing stale channel", "error", err)
		}
	}

	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("reopen channel: %w", err)
	}

	if err := ch.Qos(q.cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	q.channel = ch

	if err := q.declareBound(); err != nil {
		return err
	}

	q.state = stateConnected
	return nil
}

// declareBound объявляет очередь, с которой работает экземпляр.
func (q *RabbitQueue) declareBound() error {
	_, err := q.channel.QueueDeclare(
		q.cfg.QueueName, // name
		q.cfg.Durable,   // durable
		false,           // auto-delete
		false,           // exclusive
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", q.cfg.QueueName, err)
	}
	return nil
}

// ensureReady приводит состояние к connected перед операцией.
// Проверка ленивая: выполняется только в момент вызова.
func (q *RabbitQueue) ensureReady() error {
	if q.closed {
		return ErrClosed
	}

	// Соединение мертво — только полный reconnect.
	if q.conn == nil || q.conn.IsClosed() {
		q.logger.Debug("connection is closed or missing, reconnecting")
		if err := q.connect(); err != nil {
			return fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
	}

	// Соединение живо, но канал помечен на переинициализацию или закрыт.
	if q.state != stateConnected || q.channel == nil || q.channel.IsClosed() {
		return q.reinitChannel()
	}

	return nil
}

// attempt — одна попытка: предусловие ensureReady, затем операция.
func (q *RabbitQueue) attempt(op func(ch *amqp.Channel) error) error {
	if err := q.ensureReady(); err != nil {
		return err
	}
	return op(q.channel)
}

// withRetry выполняет операцию по дисциплине retry-once поверх attempt.
func (q *RabbitQueue) withRetry(opName string, op func(ch *amqp.Channel) error) error {
	return q.retryOnce(opName, func() error { return q.attempt(op) })
}

// retryOnce — сама дисциплина: при сбое класса "соединение" принудительно
// помечает канал на переинициализацию и повторяет ровно один раз. Вторая
// неудача возвращается вызывающему, состояние остаётся помеченным для
// восстановления при следующем вызове. Не-сетевые ошибки не повторяются.
func (q *RabbitQueue) retryOnce(opName string, attempt func() error) error {
	err := attempt()
	if err == nil {
		return nil
	}

	if !isConnectivityError(err) {
		return err
	}

	q.logger.Warn("broker operation failed, retrying after reconnect",
		"op", opName,
		"error", err,
	)
	q.state = stateNeedsReinit
	telemetry.BrokerReconnects.Inc()

	if err := attempt(); err != nil {
		q.state = stateNeedsReinit
		q.logger.Error("broker operation failed after retry",
			"op", opName,
			"error", err,
		)
		return err
	}

	return nil
}

// Declare объявляет очередь с настроенной durability. Идемпотентна.
func (q *RabbitQueue) Declare(queue string) bool {
	err := q.attempt(func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclare(queue, q.cfg.Durable, false, false, false, nil)
		return err
	})
	if err != nil {
		q.state = stateNeedsReinit
		q.logger.Error("failed to declare queue", "target", queue, "error", err)
		return false
	}
	return true
}

// Push сериализует payload и публикует его как persistent сообщение
// в указанную очередь через default exchange.
func (q *RabbitQueue) Push(queue string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		// Ошибка сериализации постоянна — retry бессмыслен.
		q.logger.Error("failed to serialize message", "target", queue, "error", err)
		return false
	}

	err = q.withRetry("push", func(ch *amqp.Channel) error {
		return ch.PublishWithContext(
			context.Background(),
			"",    // exchange (default)
			queue, // routing key
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // переживёт рестарт брокера
				MessageId:    uuid.New().String(),
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
	})
	if err != nil {
		q.logger.Error("failed to push message", "target", queue, "error", err)
		return false
	}

	return true
}

// Pop извлекает одно сообщение без автоподтверждения.
// nil — очередь пуста либо операция не удалась после retry.
func (q *RabbitQueue) Pop() *Message {
	var msg *Message

	err := q.withRetry("pop", func(ch *amqp.Channel) error {
		msg = nil

		d, ok, err := ch.Get(q.cfg.QueueName, false) // autoAck=false
		if err != nil {
			return err
		}
		if !ok {
			return nil // очередь пуста
		}

		var body map[string]any
		if err := json.Unmarshal(d.Body, &body); err != nil {
			// Некорректное тело не станет валидным при повторной доставке —
			// отбрасываем без requeue, чтобы не оставить висящую доставку.
			q.logger.Error("failed to decode message body",
				"delivery_tag", d.DeliveryTag,
				"error", err,
			)
			if nackErr := d.Nack(false, false); nackErr != nil {
				q.logger.Warn("failed to nack undecodable message", "error", nackErr)
			}
			return nil
		}

		msg = &Message{Body: body, DeliveryTag: d.DeliveryTag}
		return nil
	})
	if err != nil {
		return nil
	}

	return msg
}

// Ack подтверждает обработку сообщения.
func (q *RabbitQueue) Ack(tag uint64) bool {
	err := q.withRetry("ack", func(ch *amqp.Channel) error {
		return ch.Ack(tag, false)
	})
	if err != nil {
		q.logger.Error("failed to ack message", "delivery_tag", tag, "error", err)
		return false
	}
	return true
}

// Nack отклоняет сообщение. requeue=false — сообщение отбрасывается,
// это механизм изоляции "ядовитых" сообщений.
func (q *RabbitQueue) Nack(tag uint64, requeue bool) bool {
	err := q.withRetry("nack", func(ch *amqp.Channel) error {
		return ch.Nack(tag, false, requeue)
	})
	if err != nil {
		q.logger.Error("failed to nack message",
			"delivery_tag", tag,
			"requeue", requeue,
			"error", err,
		)
		return false
	}
	return true
}

// Empty проверяет глубину привязанной очереди passive declare'ом.
// При любой ошибке консервативно считает очередь пустой.
func (q *RabbitQueue) Empty() bool {
	empty := true

	err := q.withRetry("empty", func(ch *amqp.Channel) error {
		state, err := ch.QueueDeclarePassive(
			q.cfg.QueueName, q.cfg.Durable, false, false, false, nil,
		)
		if err != nil {
			return err
		}
		empty = state.Messages == 0
		return nil
	})
	if err != nil {
		return true
	}

	return empty
}

// Ping проверяет, что соединение реально работоспособно (а не просто
// "объект не закрыт"), тривиальным идемпотентным вызовом к брокеру.
func (q *RabbitQueue) Ping() error {
	err := q.withRetry("ping", func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclarePassive(
			q.cfg.QueueName, q.cfg.Durable, false, false, false, nil,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("broker ping: %w", err)
	}
	return nil
}

// Close освобождает канал, затем соединение. Сбой одного не мешает
// попытке закрыть другое. Безопасен при повторных вызовах.
func (q *RabbitQueue) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true

	var errs []error

	if q.channel != nil && !q.channel.IsClosed() {
		if err := q.channel.Close(); err != nil {
			q.logger.Warn("error closing channel", "error", err)
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}

	if q.conn != nil && !q.conn.IsClosed() {
		if err := q.conn.Close(); err != nil {
			q.logger.Warn("error closing connection", "error", err)
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	q.state = stateDisconnected

	if len(errs) > 0 {
		return errs[0]
	}

	q.logger.Info("queue client closed")
	return nil
}
