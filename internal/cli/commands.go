package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Artisan/internal/queue"
)

// defaultQueue — очередь по умолчанию для команд.
const defaultQueue = "message_receiver"

// quiet — логгер-заглушка: команды выводят результат через stdout,
// служебные логи клиента очереди не нужны.
var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// clientFor создаёт клиента для очереди с параметрами из окружения.
func clientFor(queueName string) (*queue.RabbitQueue, error) {
	client, err := queue.New(queue.FromEnv(queueName), quiet)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return client, nil
}

// NewPingCmd создаёт команду проверки доступности брокера.
func NewPingCmd() *cobra.Command {
	var queueName string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check broker connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFor(queueName)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Ping(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&queueName, "queue", defaultQueue, "queue to bind")
	return cmd
}

// NewEmptyCmd создаёт команду проверки глубины очереди.
func NewEmptyCmd() *cobra.Command {
	var queueName string

	cmd := &cobra.Command{
		Use:   "empty",
		Short: "Check whether the queue is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFor(queueName)
			if err != nil {
				return err
			}
			defer client.Close()

			if client.Empty() {
				fmt.Fprintf(cmd.OutOrStdout(), "queue %s is empty\n", queueName)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "queue %s has messages\n", queueName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queueName, "queue", defaultQueue, "queue to inspect")
	return cmd
}

// NewDeclareCmd создаёт команду объявления очереди.
func NewDeclareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "declare <queue>",
		Short: "Declare a durable queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			client, err := clientFor(target)
			if err != nil {
				return err
			}
			defer client.Close()

			if !client.Declare(target) {
				return fmt.Errorf("failed to declare queue %s", target)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "queue %s declared\n", target)
			return nil
		},
	}
}

// NewSendCmd создаёт команду отправки тестового запроса на генерацию.
func NewSendCmd() *cobra.Command {
	var queueName string
	var userID string
	var message string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a test generation request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if message == "" {
				return fmt.Errorf("--message is required")
			}
			if userID == "" {
				userID = uuid.New().String()
			}

			client, err := clientFor(queueName)
			if err != nil {
				return err
			}
			defer client.Close()

			body := map[string]any{
				"user_id": userID,
				"message": message,
			}
			if !client.Push(queueName, body) {
				return fmt.Errorf("failed to push message to %s", queueName)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent request for user %s\n", userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&queueName, "queue", defaultQueue, "target queue")
	cmd.Flags().StringVar(&userID, "user-id", "", "user id (random uuid if omitted)")
	cmd.Flags().StringVar(&message, "message", "", "request text")
	return cmd
}
