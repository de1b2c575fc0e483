package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
)

func TestTextGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"# Lesson\n\nBody."}}]}`)
	}))
	t.Cleanup(srv.Close)

	p, err := NewTextFromConfig(config.TextProviderConfig{
		Name:    "openai-test",
		Type:    ProviderType,
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("NewTextFromConfig() error = %v", err)
	}

	result, err := p.Generate(context.Background(), &domain.GenerationRequest{Outline: "topic"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Content != "# Lesson\n\nBody." {
		t.Errorf("Content = %q", result.Content)
	}
	if result.Provider != "openai-test" || result.Model != "gpt-4o-mini" {
		t.Errorf("result = %+v", result)
	}
}

func TestTextGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	}))
	t.Cleanup(srv.Close)

	p, _ := NewTextFromConfig(config.TextProviderConfig{
		Name: "openai-test", APIKey: "k", BaseURL: srv.URL + "/v1",
	})

	_, err := p.Generate(context.Background(), &domain.GenerationRequest{Outline: "topic"})

	var pce *domain.ProviderCallError
	if !errors.As(err, &pce) {
		t.Fatalf("expected ProviderCallError, got %v", err)
	}
	if pce.Kind != domain.ErrorKindRateLimit {
		t.Errorf("Kind = %q, want rate_limit", pce.Kind)
	}
}

func TestImageGenerateB64(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprintf(w, `{"data":[{"b64_json":%q}]}`, payload)
	}))
	t.Cleanup(srv.Close)

	p, err := NewImageFromConfig(config.ImageProviderConfig{
		Name: "openai-img", APIKey: "k", BaseURL: srv.URL + "/v1",
		Models: []string{"dall-e-3"},
	})
	if err != nil {
		t.Fatalf("NewImageFromConfig() error = %v", err)
	}

	data, err := p.Generate(context.Background(), "a diagram", "dall-e-3")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("payload = %q", data)
	}
}

func TestImageGenerateURLMode(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"url":%q}]}`, srv.URL+"/hosted/image.png")
	})
	mux.HandleFunc("/hosted/image.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hosted-bytes"))
	})

	p, _ := NewImageFromConfig(config.ImageProviderConfig{
		Name: "openai-img", APIKey: "k", BaseURL: srv.URL + "/v1",
		Models: []string{"dall-e-2"},
	})

	data, err := p.Generate(context.Background(), "a diagram", "dall-e-2")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if string(data) != "hosted-bytes" {
		t.Errorf("payload = %q", data)
	}
}

func TestImageGenerateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	t.Cleanup(srv.Close)

	p, _ := NewImageFromConfig(config.ImageProviderConfig{
		Name: "openai-img", APIKey: "k", BaseURL: srv.URL + "/v1",
	})

	if _, err := p.Generate(context.Background(), "x", "dall-e-3"); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestAvailable(t *testing.T) {
	withKey, _ := NewTextFromConfig(config.TextProviderConfig{Name: "p", APIKey: "k"})
	if !withKey.Available() {
		t.Error("Available() = false with key")
	}
	withoutKey, _ := NewTextFromConfig(config.TextProviderConfig{Name: "p"})
	if withoutKey.Available() {
		t.Error("Available() = true without key")
	}
}
