package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/testutil"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*TextProvider, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewTextFromConfig(config.TextProviderConfig{
		Name:    "anthropic-test",
		Type:    ProviderType,
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-3-5-haiku-latest",
	})
	if err != nil {
		t.Fatalf("NewTextFromConfig() error = %v", err)
	}
	return p.(*TextProvider), srv
}

func TestGenerate(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("anthropic-version header missing")
		}

		var req MessagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System == "" {
			t.Error("request missing system prompt")
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(MessagesResponse{
			ID:    "msg_1",
			Model: req.Model,
			Content: []ContentBlock{
				{Type: "text", Text: "# Lesson\n\nGenerated content."},
			},
		})
	})

	result, err := p.Generate(context.Background(), &domain.GenerationRequest{Outline: "Photosynthesis"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Content != "# Lesson\n\nGenerated content." {
		t.Errorf("Content = %q", result.Content)
	}
	if result.Provider != "anthropic-test" || result.Model != "claude-3-5-haiku-latest" {
		t.Errorf("result = %+v", result)
	}
}

func TestGenerateAPIError(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := p.Generate(context.Background(), &domain.GenerationRequest{Outline: "topic"})

	var pce *domain.ProviderCallError
	if !errors.As(err, &pce) {
		t.Fatalf("expected ProviderCallError, got %v", err)
	}
	if pce.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d", pce.Status)
	}
	if pce.Kind != domain.ErrorKindRateLimit {
		t.Errorf("Kind = %q, want rate_limit", pce.Kind)
	}
}

func TestGenerateEmptyContent(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MessagesResponse{ID: "msg_1"})
	})

	_, err := p.Generate(context.Background(), &domain.GenerationRequest{Outline: "topic"})

	var pce *domain.ProviderCallError
	if !errors.As(err, &pce) {
		t.Fatalf("expected ProviderCallError, got %v", err)
	}
}

func TestGenerateRecorded(t *testing.T) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: ANTHROPIC_API_KEY not set")
	}
	testutil.SkipIfNoCassette(t, "anthropic_generate")

	rec, cleanup := testutil.NewVCRRecorder(t, "anthropic_generate")
	defer cleanup()

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		apiKey = "test-key"
	}

	p := &TextProvider{
		name:   "anthropic-live",
		model:  "claude-3-5-haiku-latest",
		apiKey: apiKey,
		client: NewClient(apiKey, WithHTTPClient(testutil.VCRHTTPClient(rec))),
	}

	result, err := p.Generate(context.Background(), &domain.GenerationRequest{Outline: "Photosynthesis"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Content == "" {
		t.Error("expected content in response")
	}
}

func TestAvailable(t *testing.T) {
	withKey, _ := NewTextFromConfig(config.TextProviderConfig{Name: "a", APIKey: "k"})
	if !withKey.Available() {
		t.Error("Available() = false with key")
	}
	withoutKey, _ := NewTextFromConfig(config.TextProviderConfig{Name: "a"})
	if withoutKey.Available() {
		t.Error("Available() = true without key")
	}
}
