package pipeline

import "errors"

// Ошибки обработки сообщения.
var (
	// ErrValidation — тело сообщения не прошло валидацию.
	ErrValidation = errors.New("message validation failed")

	// ErrPushFailed — результат не удалось отправить в очередь ответов.
	ErrPushFailed = errors.New("failed to push result to uploader queue")
)
