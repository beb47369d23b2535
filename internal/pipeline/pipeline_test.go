package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Artisan/internal/classify"
	"github.com/shaiso/Artisan/internal/generate"
	"github.com/shaiso/Artisan/internal/queue"
)

// --- Фейки ---

type pushRecord struct {
	queue   string
	payload any
}

type nackRecord struct {
	tag     uint64
	requeue bool
}

// fakeQueue — скриптованный queue.Client для тестов pipeline.
type fakeQueue struct {
	messages []*queue.Message
	pushOK   bool

	pushes []pushRecord
	acks   []uint64
	nacks  []nackRecord
}

func newFakeQueue(msgs ...*queue.Message) *fakeQueue {
	return &fakeQueue{messages: msgs, pushOK: true}
}

func (f *fakeQueue) Declare(string) bool { return true }

func (f *fakeQueue) Push(q string, payload any) bool {
	f.pushes = append(f.pushes, pushRecord{queue: q, payload: payload})
	return f.pushOK
}

func (f *fakeQueue) Pop() *queue.Message {
	if len(f.messages) == 0 {
		return nil
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg
}

func (f *fakeQueue) Ack(tag uint64) bool {
	f.acks = append(f.acks, tag)
	return true
}

func (f *fakeQueue) Nack(tag uint64, requeue bool) bool {
	f.nacks = append(f.nacks, nackRecord{tag: tag, requeue: requeue})
	return true
}

func (f *fakeQueue) Empty() bool  { return len(f.messages) == 0 }
func (f *fakeQueue) Ping() error  { return nil }
func (f *fakeQueue) Close() error { return nil }

// fakeComparer — дистанции по имени категории, eps=0.3.
type fakeComparer struct {
	distances map[string]float64
}

func (f *fakeComparer) Compare(_ context.Context, a, _ string) (classify.Similarity, error) {
	d, ok := f.distances[a]
	if !ok {
		d = 1.0
	}
	return classify.Similarity{Similar: d < 0.3, Distance: d}, nil
}

type panicComparer struct{}

func (panicComparer) Compare(context.Context, string, string) (classify.Similarity, error) {
	panic("comparer exploded")
}

// stubGenerator возвращает фиксированный артефакт.
type stubGenerator struct {
	artifact *generate.Artifact
	err      error
}

func (s *stubGenerator) Generate(context.Context, *generate.Artifact) (*generate.Artifact, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.artifact, nil
}

func request(userID, text string, tag uint64) *queue.Message {
	return &queue.Message{
		Body:        map[string]any{"user_id": userID, "message": text},
		DeliveryTag: tag,
	}
}

func newTestPipeline(receiver, uploader *fakeQueue, comparer classify.Comparer, gens map[string]generate.Generator) *Pipeline {
	return New(Config{
		Receiver:    receiver,
		Uploader:    uploader,
		UploadQueue: "message_uploader",
		Classifier:  classify.NewClassifier(comparer, nil),
		Generators:  generate.NewRegistry(gens),
		Categories:  []string{"cat", "butterfly"},
		NoiseShape:  []int{1, 2},
	})
}

// --- Валидация (P6) ---

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]any
		valid bool
	}{
		{"valid", map[string]any{"user_id": "u1", "message": "hi"}, true},
		{"empty user_id", map[string]any{"user_id": "", "message": "hi"}, false},
		{"missing user_id", map[string]any{"message": "hi"}, false},
		{"missing message", map[string]any{"user_id": "u1"}, false},
		{"empty message", map[string]any{"user_id": "u1", "message": ""}, false},
		{"both missing", map[string]any{}, false},
		{"non-string user_id", map[string]any{"user_id": 42, "message": "hi"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBody(&queue.Message{Body: tt.body})
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
			}
		})
	}
}

// --- E2E сценарий A: успешная генерация ---

func TestCycle_SuccessfulGeneration(t *testing.T) {
	receiver := newFakeQueue(request("u1", "a cat sleeping", 7))
	uploader := newFakeQueue()

	p := newTestPipeline(receiver, uploader,
		&fakeComparer{distances: map[string]float64{"cat": 0.1}},
		map[string]generate.Generator{
			"cat": &stubGenerator{artifact: &generate.Artifact{
				Data:  []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
				Shape: []int{1, 2, 3},
			}},
			"butterfly": &stubGenerator{err: errors.New("should not be called")},
		})

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(uploader.pushes) != 1 {
		t.Fatalf("expected 1 push, got %d", len(uploader.pushes))
	}
	if uploader.pushes[0].queue != "message_uploader" {
		t.Errorf("pushed to wrong queue: %s", uploader.pushes[0].queue)
	}

	payload, ok := uploader.pushes[0].payload.(ResultPayload)
	if !ok {
		t.Fatalf("payload should be ResultPayload, got %T", uploader.pushes[0].payload)
	}
	if payload.UserID != "u1" {
		t.Errorf("expected user_id u1, got %s", payload.UserID)
	}
	if payload.Error {
		t.Error("expected error=false")
	}
	if payload.Message != "ok" {
		t.Errorf("expected message ok, got %q", payload.Message)
	}
	if payload.ImageB64 == nil || *payload.ImageB64 == "" {
		t.Error("expected non-null image_b64")
	}
	if len(payload.Shape) != 3 {
		t.Errorf("expected shape of 3 dims, got %v", payload.Shape)
	}

	// Подтверждено и не отклонено
	if len(receiver.acks) != 1 || receiver.acks[0] != 7 {
		t.Errorf("expected ack of tag 7, got %v", receiver.acks)
	}
	if len(receiver.nacks) != 0 {
		t.Errorf("expected no nacks, got %v", receiver.nacks)
	}
}

// --- E2E сценарий B: категория не найдена ---

func TestCycle_UnknownClass(t *testing.T) {
	receiver := newFakeQueue(request("u2", "quantum mechanics", 3))
	uploader := newFakeQueue()

	p := newTestPipeline(receiver, uploader,
		&fakeComparer{distances: map[string]float64{}}, // ничего не похоже
		map[string]generate.Generator{
			"cat": &stubGenerator{err: errors.New("should not be called")},
		})

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(uploader.pushes) != 1 {
		t.Fatalf("expected 1 push, got %d", len(uploader.pushes))
	}

	payload := uploader.pushes[0].payload.(ResultPayload)
	if !payload.Error {
		t.Error("expected error=true")
	}
	if payload.Message != "Unknown received class" {
		t.Errorf("expected 'Unknown received class', got %q", payload.Message)
	}
	if payload.ImageB64 != nil {
		t.Error("expected null image_b64")
	}
	if payload.Shape != nil {
		t.Error("expected null shape")
	}

	// Ответ доставлен — запрос подтверждается
	if len(receiver.acks) != 1 || receiver.acks[0] != 3 {
		t.Errorf("expected ack of tag 3, got %v", receiver.acks)
	}
	if len(receiver.nacks) != 0 {
		t.Errorf("expected no nacks, got %v", receiver.nacks)
	}
}

// --- E2E сценарий C: невалидное тело ---

func TestCycle_InvalidBody(t *testing.T) {
	receiver := newFakeQueue(&queue.Message{
		Body:        map[string]any{"user_id": "u3"}, // нет message
		DeliveryTag: 5,
	})
	uploader := newFakeQueue()

	p := newTestPipeline(receiver, uploader,
		&fakeComparer{distances: map[string]float64{"cat": 0.1}},
		map[string]generate.Generator{"cat": &stubGenerator{artifact: generate.Noise(1, 2)}})

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("per-message failures must not escape cycle: %v", err)
	}

	// Ничего не публикуется, сообщение сбрасывается без requeue
	if len(uploader.pushes) != 0 {
		t.Errorf("expected no pushes, got %d", len(uploader.pushes))
	}
	if len(receiver.acks) != 0 {
		t.Errorf("expected no acks, got %v", receiver.acks)
	}
	if len(receiver.nacks) != 1 {
		t.Fatalf("expected 1 nack, got %d", len(receiver.nacks))
	}
	if receiver.nacks[0].tag != 5 || receiver.nacks[0].requeue {
		t.Errorf("expected nack(5, requeue=false), got %+v", receiver.nacks[0])
	}
}

// --- E2E сценарий D: сбой публикации результата ---

func TestCycle_PushFailure(t *testing.T) {
	receiver := newFakeQueue(request("u4", "a cat sleeping", 9))
	uploader := newFakeQueue()
	uploader.pushOK = false // downstream недоступен

	p := newTestPipeline(receiver, uploader,
		&fakeComparer{distances: map[string]float64{"cat": 0.1}},
		map[string]generate.Generator{"cat": &stubGenerator{artifact: generate.Noise(1, 2)}})

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("per-message failures must not escape cycle: %v", err)
	}

	// Классификация прошла, push не удался — nack без requeue, без ack
	if len(receiver.acks) != 0 {
		t.Errorf("expected no acks, got %v", receiver.acks)
	}
	if len(receiver.nacks) != 1 {
		t.Fatalf("expected 1 nack, got %d", len(receiver.nacks))
	}
	if receiver.nacks[0].tag != 9 || receiver.nacks[0].requeue {
		t.Errorf("expected nack(9, requeue=false), got %+v", receiver.nacks[0])
	}
}

// --- Сбой генерации ---

func TestCycle_GenerationFailure(t *testing.T) {
	receiver := newFakeQueue(request("u5", "a cat sleeping", 11))
	uploader := newFakeQueue()

	p := newTestPipeline(receiver, uploader,
		&fakeComparer{distances: map[string]float64{"cat": 0.1}},
		map[string]generate.Generator{"cat": &stubGenerator{err: errors.New("inference crashed")}})

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("per-message failures must not escape cycle: %v", err)
	}

	if len(uploader.pushes) != 0 {
		t.Errorf("expected no pushes, got %d", len(uploader.pushes))
	}
	if len(receiver.nacks) != 1 || receiver.nacks[0].requeue {
		t.Errorf("expected single nack without requeue, got %v", receiver.nacks)
	}
}

// --- Пустая очередь ---

func TestCycle_EmptyQueue(t *testing.T) {
	receiver := newFakeQueue() // пусто
	uploader := newFakeQueue()

	p := newTestPipeline(receiver, uploader,
		&fakeComparer{distances: map[string]float64{}},
		map[string]generate.Generator{})
	p.pollInterval = time.Millisecond

	start := time.Now()
	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < time.Millisecond {
		t.Error("empty queue should pause for poll interval")
	}

	if len(uploader.pushes) != 0 || len(receiver.acks) != 0 || len(receiver.nacks) != 0 {
		t.Error("empty queue must cause no queue operations")
	}
}

// --- Паника выходит на supervisory-уровень ---

func TestCycle_PanicRecovered(t *testing.T) {
	receiver := newFakeQueue(request("u6", "text", 1))
	uploader := newFakeQueue()

	p := newTestPipeline(receiver, uploader, panicComparer{}, map[string]generate.Generator{})

	err := p.cycle(context.Background())
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}

	// Сообщение не зависает неподтверждённым — сброс без requeue
	if len(receiver.nacks) != 1 {
		t.Fatalf("expected 1 nack, got %d", len(receiver.nacks))
	}
	if receiver.nacks[0].tag != 1 || receiver.nacks[0].requeue {
		t.Errorf("expected nack(1, requeue=false), got %+v", receiver.nacks[0])
	}
	if len(receiver.acks) != 0 {
		t.Errorf("expected no acks, got %v", receiver.acks)
	}
}

// --- Отмена контекста во время обработки ---

// cancelComparer отменяет контекст во время обращения к backend'у —
// так выглядит SIGTERM, пришедший посреди обработки сообщения.
type cancelComparer struct{ cancel context.CancelFunc }

func (c cancelComparer) Compare(ctx context.Context, _, _ string) (classify.Similarity, error) {
	c.cancel()
	return classify.Similarity{}, ctx.Err()
}

func TestCycle_ShutdownLeavesMessageUnacked(t *testing.T) {
	receiver := newFakeQueue(request("u7", "a cat sleeping", 42))
	uploader := newFakeQueue()

	ctx, cancel := context.WithCancel(context.Background())
	p := newTestPipeline(receiver, uploader, cancelComparer{cancel: cancel}, map[string]generate.Generator{})

	if err := p.cycle(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Валидный запрос не сбрасывается: доставка остаётся неподтверждённой,
	// брокер выдаст её повторно после переподключения
	if len(receiver.nacks) != 0 {
		t.Errorf("expected no nacks on shutdown, got %v", receiver.nacks)
	}
	if len(receiver.acks) != 0 {
		t.Errorf("expected no acks, got %v", receiver.acks)
	}
	if len(uploader.pushes) != 0 {
		t.Errorf("expected no pushes, got %d", len(uploader.pushes))
	}
}

// --- Run останавливается по контексту ---

func TestRun_StopsOnCancel(t *testing.T) {
	receiver := newFakeQueue()
	uploader := newFakeQueue()

	p := newTestPipeline(receiver, uploader,
		&fakeComparer{distances: map[string]float64{}},
		map[string]generate.Generator{})
	p.pollInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

// --- New: значения по умолчанию ---

func TestNew_Defaults(t *testing.T) {
	p := New(Config{})

	if p.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, p.pollInterval)
	}
	if p.cooldown != defaultCooldown {
		t.Errorf("expected default cooldown %v, got %v", defaultCooldown, p.cooldown)
	}
	if len(p.noiseShape) != 4 {
		t.Errorf("expected default noise shape 1x3x64x64, got %v", p.noiseShape)
	}
}
