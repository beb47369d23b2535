package generate

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

// --- Artifact / Noise / Encode ---

func TestNoise_Shape(t *testing.T) {
	noise := Noise(1, 3, 64, 64)

	if len(noise.Shape) != 4 {
		t.Fatalf("expected 4 dims, got %d", len(noise.Shape))
	}
	if got := noise.Len(); got != 1*3*64*64 {
		t.Errorf("expected %d elements, got %d", 1*3*64*64, got)
	}
	if len(noise.Data) != noise.Len() {
		t.Errorf("data length %d does not match shape %v", len(noise.Data), noise.Shape)
	}
}

func TestArtifact_Len_Empty(t *testing.T) {
	a := &Artifact{}
	if a.Len() != 0 {
		t.Errorf("expected 0 for empty shape, got %d", a.Len())
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	a := &Artifact{
		Data:  []float32{0.5, -1.25, 0, 3.75},
		Shape: []int{2, 2},
	}

	b64, shape := Encode(a)

	if len(shape) != 2 || shape[0] != 2 || shape[1] != 2 {
		t.Errorf("unexpected shape: %v", shape)
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("output is not valid base64: %v", err)
	}
	if len(raw) != 4*4 {
		t.Fatalf("expected 16 bytes, got %d", len(raw))
	}

	// Декодируем обратно little-endian float32
	for i, want := range a.Data {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		if got := math.Float32frombits(bits); got != want {
			t.Errorf("value %d: expected %v, got %v", i, want, got)
		}
	}
}

// --- Registry ---

type stubGenerator struct{ class string }

func (s *stubGenerator) Generate(_ context.Context, noise *Artifact) (*Artifact, error) {
	return noise, nil
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(map[string]Generator{
		"cat":       &stubGenerator{class: "cat"},
		"butterfly": &stubGenerator{class: "butterfly"},
	})

	for _, class := range []string{"cat", "butterfly"} {
		g, err := r.Get(class)
		if err != nil {
			t.Errorf("expected generator for %s, got error: %v", class, err)
		}
		if g == nil {
			t.Errorf("generator for %s should not be nil", class)
		}
	}
}

func TestRegistry_UnknownClass(t *testing.T) {
	r := NewRegistry(map[string]Generator{"cat": &stubGenerator{}})

	_, err := r.Get("dog")
	if !errors.Is(err, ErrUnknownClass) {
		t.Errorf("expected ErrUnknownClass, got %v", err)
	}
}

func TestRegistry_ImmutableAfterConstruction(t *testing.T) {
	source := map[string]Generator{"cat": &stubGenerator{}}
	r := NewRegistry(source)

	// Мутация исходной map не должна влиять на реестр
	source["dog"] = &stubGenerator{}

	if _, err := r.Get("dog"); err == nil {
		t.Error("registry should copy the mapping at construction")
	}
}

// --- HTTPGenerator ---

func TestHTTPGenerator_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" {
			t.Errorf("expected /generate, got %s", r.URL.Path)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Class != "cat" {
			t.Errorf("expected class cat, got %s", req.Class)
		}
		if len(req.Noise) != 4 {
			t.Errorf("expected 4 noise values, got %d", len(req.Noise))
		}
		json.NewEncoder(w).Encode(generateResponse{
			Image: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
			Shape: []int{1, 2, 3},
		})
	}))
	defer server.Close()

	g := NewHTTPGenerator(server.URL, "cat")
	got, err := g.Generate(context.Background(), &Artifact{
		Data:  []float32{1, 2, 3, 4},
		Shape: []int{2, 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 6 {
		t.Errorf("expected 6 elements, got %d", got.Len())
	}
}

func TestHTTPGenerator_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := NewHTTPGenerator(server.URL, "cat")
	_, err := g.Generate(context.Background(), Noise(1, 2))
	if !errors.Is(err, ErrGenerateRequest) {
		t.Errorf("expected ErrGenerateRequest, got %v", err)
	}
}

func TestHTTPGenerator_ShapeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{
			Image: []float32{0.1, 0.2},
			Shape: []int{3, 3}, // 9 значений заявлено, 2 прислано
		})
	}))
	defer server.Close()

	g := NewHTTPGenerator(server.URL, "cat")
	_, err := g.Generate(context.Background(), Noise(1, 2))
	if !errors.Is(err, ErrGenerateRequest) {
		t.Errorf("expected ErrGenerateRequest on shape mismatch, got %v", err)
	}
}
