// Artisan CLI — инструмент командной строки для работы с очередями worker'а.
//
// Использование:
//
//	artisan <command> [flags]
//
// Команды:
//
//	ping      Проверка доступности брокера
//	empty     Проверка глубины очереди
//	declare   Объявление очереди
//	send      Отправка тестового запроса на генерацию
//
// Подключение настраивается переменными окружения RABBITMQ_*.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Artisan/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "artisan",
		Short:         "Artisan CLI — image generation worker tooling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		cli.NewPingCmd(),
		cli.NewEmptyCmd(),
		cli.NewDeclareCmd(),
		cli.NewSendCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
