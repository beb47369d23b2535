package pipeline

import (
	"fmt"
	"strings"

	"github.com/shaiso/Artisan/internal/queue"
)

// Статусные сообщения исходящего payload'а.
const (
	okMessage           = "ok"
	unknownClassMessage = "Unknown received class"
)

// ResultPayload — wire-формат результата для очереди ответов.
// Инвариант: error=true ⇒ ImageB64 и Shape равны null;
// error=false ⇒ оба заполнены.
type ResultPayload struct {
	UserID   string  `json:"user_id"`
	ImageB64 *string `json:"image_b64"`
	Shape    []int   `json:"shape"`
	Error    bool    `json:"error"`
	Message  string  `json:"message"`
}

// okPayload собирает успешный результат.
func okPayload(userID, imageB64 string, shape []int) ResultPayload {
	return ResultPayload{
		UserID:   userID,
		ImageB64: &imageB64,
		Shape:    shape,
		Error:    false,
		Message:  okMessage,
	}
}

// errorPayload собирает результат-отказ с пустыми полями артефакта.
func errorPayload(userID, message string) ResultPayload {
	return ResultPayload{
		UserID:  userID,
		Error:   true,
		Message: message,
	}
}

// validateBody проверяет обязательные поля тела сообщения.
// Пустое значение считается отсутствующим. Все нарушения собираются
// в одну ошибку.
func validateBody(msg *queue.Message) error {
	var problems []string

	if msg.Field("user_id") == "" {
		problems = append(problems, "field 'user_id' is missing")
	}
	if msg.Field("message") == "" {
		problems = append(problems, "field 'message' is missing")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}
