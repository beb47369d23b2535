package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Генерация диффузионной моделью занимает десятки секунд на CPU.
const defaultGenerateTimeout = 5 * time.Minute

// ErrGenerateRequest — запрос к сервису генерации завершился ошибкой.
var ErrGenerateRequest = errors.New("generation request failed")

// HTTPGenerator — Generator поверх HTTP sidecar'а с inference-моделью.
// На каждую категорию создаётся свой экземпляр со своим именем класса,
// выбор делается реестром — ветвления по строкам в коде нет.
//
// POST {url}/generate с телом {"class", "noise", "shape"},
// ответ {"image": [<float>...], "shape": [<int>...]}.
type HTTPGenerator struct {
	url    string
	class  string
	client *http.Client
}

// NewHTTPGenerator создаёт генератор категории class для сервиса по url.
func NewHTTPGenerator(url, class string) *HTTPGenerator {
	return &HTTPGenerator{
		url:    url,
		class:  class,
		client: &http.Client{Timeout: defaultGenerateTimeout},
	}
}

type generateRequest struct {
	Class string    `json:"class"`
	Noise []float32 `json:"noise"`
	Shape []int     `json:"shape"`
}

type generateResponse struct {
	Image []float32 `json:"image"`
	Shape []int     `json:"shape"`
}

// Generate отправляет шум сервису и возвращает сгенерированный артефакт.
func (g *HTTPGenerator) Generate(ctx context.Context, noise *Artifact) (*Artifact, error) {
	body, err := json.Marshal(generateRequest{
		Class: g.class,
		Noise: noise.Data,
		Shape: noise.Shape,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrGenerateRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrGenerateRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerateRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrGenerateRequest, resp.StatusCode, payload)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGenerateRequest, err)
	}

	artifact := &Artifact{Data: parsed.Image, Shape: parsed.Shape}
	if len(parsed.Image) != artifact.Len() {
		return nil, fmt.Errorf("%w: shape %v does not match %d values",
			ErrGenerateRequest, parsed.Shape, len(parsed.Image))
	}

	return artifact, nil
}
