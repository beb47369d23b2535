package queue

// Message — контейнер для сообщения и его метаданных.
//
// Body — декодированное JSON-тело. DeliveryTag — непрозрачный токен доставки,
// выданный брокером; должен быть передан в Ack/Nack без изменений.
// Логически сообщение существует от успешного Pop до принятого Ack/Nack.
type Message struct {
	Body        map[string]any
	DeliveryTag uint64
}

// Field возвращает строковое поле тела сообщения.
// Пустая строка — если поле отсутствует или не является строкой.
func (m *Message) Field(key string) string {
	if m == nil || m.Body == nil {
		return ""
	}
	s, _ := m.Body[key].(string)
	return s
}

// Client — контракт клиента очереди сообщений.
//
// Все методы можно вызывать в любом состоянии соединения: реализация сама
// отвечает за прозрачное восстановление. Ошибки соединения наружу не
// протекают — операции возвращают false/nil после исчерпания retry.
type Client interface {
	// Declare объявляет (создаёт, если не существует) очередь с заданным
	// именем и настроенной durability. Идемпотентна.
	Declare(queue string) bool

	// Push сериализует payload в JSON и публикует его как persistent
	// сообщение. false — если сериализация не удалась (permanent, без
	// retry) или брокер недоступен после повторной попытки.
	Push(queue string, payload any) bool

	// Pop извлекает не более одного сообщения из привязанной очереди без
	// автоподтверждения. nil — и когда очередь пуста, и когда операция
	// не удалась после retry; вызывающий в обоих случаях ждёт и повторяет.
	Pop() *Message

	// Ack подтверждает обработку: сообщение удаляется из очереди.
	Ack(tag uint64) bool

	// Nack отклоняет сообщение. requeue=true — брокер доставит его
	// повторно; false — сообщение отбрасывается (изоляция "ядовитых"
	// сообщений).
	Nack(tag uint64, requeue bool) bool

	// Empty проверяет, пуста ли привязанная очередь.
	// При любой ошибке консервативно возвращает true.
	Empty() bool

	// Ping активно проверяет работоспособность соединения тривиальным
	// идемпотентным вызовом к брокеру.
	Ping() error

	// Close освобождает канал и соединение. Безопасен при повторных вызовах.
	Close() error
}
