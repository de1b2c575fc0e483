// Package openai adapts the OpenAI API for text generation and synchronous
// image generation via the official client library.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/provider"
)

// ProviderType is the adapter type identifier used in configuration.
const ProviderType = "openai"

const defaultTextModel = "gpt-4o-mini"

// RegisterFactory registers the OpenAI adapter factory.
func RegisterFactory() {
	if provider.IsRegistered(ProviderType) {
		return
	}
	provider.RegisterFactory(provider.Factory{
		Type:        ProviderType,
		Description: "OpenAI text and image models",
		NewText:     NewTextFromConfig,
		NewImage:    NewImageFromConfig,
	})
}

func newClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// wrapError converts a client library failure into the canonical provider
// error, preserving the upstream HTTP status when present.
func wrapError(name, model string, err error) *domain.ProviderCallError {
	pce := domain.NewProviderCallError(name, model, err)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pce.Status = apiErr.HTTPStatusCode
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			pce.Kind = domain.ErrorKindRateLimit
		}
	}
	return pce
}

// TextProvider generates lesson documents through the chat completions API.
type TextProvider struct {
	name   string
	model  string
	apiKey string
	client *openai.Client
}

// NewTextFromConfig creates a text adapter from configuration.
func NewTextFromConfig(cfg config.TextProviderConfig) (domain.TextProvider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultTextModel
	}
	return &TextProvider{
		name:   cfg.Name,
		model:  model,
		apiKey: cfg.APIKey,
		client: newClient(cfg.APIKey, cfg.BaseURL),
	}, nil
}

func (p *TextProvider) Name() string { return p.name }

func (p *TextProvider) Available() bool { return p.apiKey != "" }

func (p *TextProvider) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.TextResult, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: provider.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: provider.BuildUserPrompt(req)},
		},
	})
	if err != nil {
		return nil, wrapError(p.name, p.model, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, domain.NewProviderCallError(p.name, p.model, errors.New("empty completion"))
	}

	return &domain.TextResult{
		Content:  resp.Choices[0].Message.Content,
		Provider: p.name,
		Model:    p.model,
	}, nil
}

// ImageProvider generates images through the images API. The API returns
// base64 payloads when asked; some models answer with a short-lived URL
// instead, which the adapter fetches itself so callers always get bytes.
type ImageProvider struct {
	name     string
	models   []string
	apiKey   string
	client   *openai.Client
	http     *http.Client
	throttle *provider.Throttle
}

// NewImageFromConfig creates an image adapter from configuration.
func NewImageFromConfig(cfg config.ImageProviderConfig) (domain.ImageProvider, error) {
	models := cfg.Models
	if len(models) == 0 {
		models = []string{"dall-e-3"}
	}

	timeout := 60 * time.Second
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}

	return &ImageProvider{
		name:     cfg.Name,
		models:   models,
		apiKey:   cfg.APIKey,
		client:   newClient(cfg.APIKey, cfg.BaseURL),
		http:     &http.Client{Timeout: timeout},
		throttle: provider.NewThrottle(time.Duration(cfg.MinRequestIntervalMs) * time.Millisecond),
	}, nil
}

func (p *ImageProvider) Name() string { return p.name }

func (p *ImageProvider) Available() bool { return p.apiKey != "" }

func (p *ImageProvider) Models() []string {
	return append([]string(nil), p.models...)
}

func (p *ImageProvider) Generate(ctx context.Context, prompt, model string) ([]byte, error) {
	if err := p.throttle.Wait(ctx); err != nil {
		return nil, domain.NewProviderCallError(p.name, model, err)
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, wrapError(p.name, model, err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.NewProviderCallError(p.name, model, errors.New("empty image response"))
	}

	if b64 := resp.Data[0].B64JSON; b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, domain.NewProviderCallError(p.name, model, fmt.Errorf("decode image payload: %w", err))
		}
		return data, nil
	}
	if url := resp.Data[0].URL; url != "" {
		return p.fetch(ctx, model, url)
	}
	return nil, domain.NewProviderCallError(p.name, model, errors.New("image response carried neither payload nor URL"))
}

func (p *ImageProvider) fetch(ctx context.Context, model, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewProviderCallError(p.name, model, err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, domain.NewProviderCallError(p.name, model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderCallError{
			Provider: p.name,
			Model:    model,
			Kind:     domain.ErrorKindCall,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("image fetch returned status %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewProviderCallError(p.name, model, fmt.Errorf("read image body: %w", err))
	}
	if len(data) == 0 {
		return nil, domain.NewProviderCallError(p.name, model, errors.New("image fetch returned empty body"))
	}
	return data, nil
}
