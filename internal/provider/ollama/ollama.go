// Package ollama adapts a local or remote Ollama instance for text
// generation via its native chat API.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/provider"
)

// ProviderType is the adapter type identifier used in configuration.
const ProviderType = "ollama"

const (
	defaultModel   = "llama3.1"
	defaultTimeout = 5 * time.Minute
)

// RegisterFactory registers the Ollama adapter factory.
func RegisterFactory() {
	if provider.IsRegistered(ProviderType) {
		return
	}
	provider.RegisterFactory(provider.Factory{
		Type:        ProviderType,
		Description: "Ollama local text models",
		NewText:     NewTextFromConfig,
	})
}

// TextProvider generates lesson documents through the Ollama chat API.
// No API key is involved; availability means a base URL was configured.
type TextProvider struct {
	name    string
	model   string
	baseURL string
	client  *api.Client
}

// NewTextFromConfig creates a text adapter from configuration.
func NewTextFromConfig(cfg config.TextProviderConfig) (domain.TextProvider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	p := &TextProvider{
		name:    cfg.Name,
		model:   model,
		baseURL: cfg.BaseURL,
	}
	if cfg.BaseURL == "" {
		return p, nil
	}

	// The native client wants the host URL without an /v1 suffix.
	raw := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	p.client = api.NewClient(parsed, &http.Client{Timeout: defaultTimeout})
	return p, nil
}

func (p *TextProvider) Name() string { return p.name }

func (p *TextProvider) Available() bool { return p.client != nil }

func (p *TextProvider) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.TextResult, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model: p.model,
		Messages: []api.Message{
			{Role: "system", Content: provider.SystemPrompt},
			{Role: "user", Content: provider.BuildUserPrompt(req)},
		},
		Stream: &stream,
	}

	var b strings.Builder
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		pce := domain.NewProviderCallError(p.name, p.model, err)
		if errors.Is(err, context.DeadlineExceeded) {
			pce.Kind = domain.ErrorKindTimeout
		}
		return nil, pce
	}
	if b.Len() == 0 {
		return nil, domain.NewProviderCallError(p.name, p.model, errors.New("empty completion"))
	}

	return &domain.TextResult{
		Content:  b.String(),
		Provider: p.name,
		Model:    p.model,
	}, nil
}
