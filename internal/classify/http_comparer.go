package classify

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

const defaultCompareTimeout = 30 * time.Second

// ErrCompareRequest — запрос к сервису близости завершился ошибкой.
var ErrCompareRequest = errors.New("similarity request failed")

// HTTPComparer — Comparer поверх HTTP sidecar'а с embedding-моделью.
//
// POST {url}/similarity с телом {"text_a": ..., "text_b": ...},
// ответ {"distance": <float>}. Похожесть выводится на клиенте:
// distance строго меньше eps (MAX_MESSAGES_DISTANCE).
type HTTPComparer struct {
	url    string
	eps    float64
	client *http.Client
}

// NewHTTPComparer создаёт comparer для сервиса по базовому URL.
func NewHTTPComparer(url string, eps float64) *HTTPComparer {
	return &HTTPComparer{
		url:    url,
		eps:    eps,
		client: &http.Client{Timeout: defaultCompareTimeout},
	}
}

type compareRequest struct {
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`
}

type compareResponse struct {
	Distance float64 `json:"distance"`
}

// Compare сравнивает пару текстов через внешний сервис.
func (c *HTTPComparer) Compare(ctx context.Context, a, b string) (Similarity, error) {
	body, err := json.Marshal(compareRequest{TextA: a, TextB: b})
	if err != nil {
		return Similarity{}, fmt.Errorf("%w: marshal request: %v", ErrCompareRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/similarity", bytes.NewReader(body))
	if err != nil {
		return Similarity{}, fmt.Errorf("%w: create request: %v", ErrCompareRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Similarity{}, fmt.Errorf("%w: %v", ErrCompareRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return Similarity{}, fmt.Errorf("%w: HTTP %d: %s", ErrCompareRequest, resp.StatusCode, payload)
	}

	var parsed compareResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Similarity{}, fmt.Errorf("%w: decode response: %v", ErrCompareRequest, err)
	}

	return Similarity{
		Similar:  parsed.Distance < c.eps,
		Distance: parsed.Distance,
	}, nil
}
