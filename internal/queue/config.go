package queue

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Значения по умолчанию для подключения к RabbitMQ.
const (
	defaultHost     = "localhost"
	defaultPort     = 5672
	defaultUser     = "guest"
	defaultPassword = "guest"
	defaultVHost    = "/"
	defaultPrefetch = 1
)

// Config — неизменяемый дескриптор подключения к брокеру.
// Создаётся один раз при старте и дальше не мутируется.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	VirtualHost string

	// QueueName — очередь, с которой работает экземпляр клиента.
	QueueName string

	// Durable — переживает ли очередь рестарт брокера.
	Durable bool

	// Prefetch — макс. число неподтверждённых сообщений на consumer.
	// Основной механизм backpressure.
	Prefetch int
}

// FromEnv собирает Config из переменных окружения
// RABBITMQ_HOST/PORT/USER/PASSWORD/VIRTUAL_HOST с fallback на localhost/guest.
func FromEnv(queueName string) Config {
	return Config{
		Host:        envString("RABBITMQ_HOST", defaultHost),
		Port:        envInt("RABBITMQ_PORT", defaultPort),
		Username:    envString("RABBITMQ_USER", defaultUser),
		Password:    envString("RABBITMQ_PASSWORD", defaultPassword),
		VirtualHost: envString("RABBITMQ_VIRTUAL_HOST", defaultVHost),
		QueueName:   queueName,
		Durable:     true,
		Prefetch:    defaultPrefetch,
	}
}

// URL возвращает amqp:// URL для Dial.
func (c Config) URL() string {
	vhost := c.VirtualHost
	if vhost == "" {
		vhost = defaultVHost
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		url.PathEscape(vhost),
	)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
