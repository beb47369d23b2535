// Package pipeline реализует цикл обработки запросов на генерацию.
//
// # Обзор
//
// Pipeline — строго последовательный обработчик: одно сообщение полностью
// проходит валидацию, классификацию, генерацию, публикацию и подтверждение
// прежде, чем будет извлечено следующее. Внутреннего параллелизма нет;
// единственный буфер — очередь самого брокера, окно in-flight ограничено
// prefetch'ем клиента.
//
// # Два вложенных цикла
//
// Внешний supervisory-цикл работает до отмены контекста. Сбой, вырвавшийся
// за границу обработки сообщения (паника в обработчике), логируется и
// сопровождается фиксированной паузой — плотный crash-loop не исчерпает
// ресурсы. Отмена контекста завершает цикл чисто.
//
// Внутренний цикл на итерацию:
//
//  1. Pop из входящей очереди; nil → короткая пауза и следующая итерация
//  2. Валидация тела: user_id и message обязательны и непусты
//  3. Классификация по фиксированному набору категорий
//  4. Нет подходящей категории → результат с error=true, push, ack
//  5. Категория найдена → генерация, кодирование, результат с error=false,
//     push, ack при успешном push
//  6. Любой сбой шагов 2–5 → лог с контекстом и Nack(requeue=false)
//
// # Изоляция "ядовитых" сообщений
//
// Сообщение, падающее детерминированно (битое тело, стабильно падающий
// backend), при requeue зациклилось бы навсегда. Поэтому каждый сбой
// обработки завершается сбросом без requeue: потеря одного запроса
// в обмен на доступность. Транзиентные сбои backend'а от постоянных
// не отличаются и сбрасываются так же — дропы видны в логе на уровне
// ERROR и в счётчике artisan_messages_processed_total{outcome="dropped"}.
package pipeline
