// Package anthropic adapts the Anthropic messages API for text generation.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/provider"
)

// ProviderType is the adapter type identifier used in configuration.
const ProviderType = "anthropic"

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 4096
)

// RegisterFactory registers the Anthropic adapter factory.
func RegisterFactory() {
	if provider.IsRegistered(ProviderType) {
		return
	}
	provider.RegisterFactory(provider.Factory{
		Type:        ProviderType,
		Description: "Anthropic Claude text models",
		NewText:     NewTextFromConfig,
	})
}

// TextProvider generates lesson documents through the messages API.
type TextProvider struct {
	name   string
	model  string
	apiKey string
	client *Client
}

// NewTextFromConfig creates a text adapter from configuration.
func NewTextFromConfig(cfg config.TextProviderConfig) (domain.TextProvider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	var opts []ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	return &TextProvider{
		name:   cfg.Name,
		model:  model,
		apiKey: cfg.APIKey,
		client: NewClient(cfg.APIKey, opts...),
	}, nil
}

func (p *TextProvider) Name() string { return p.name }

func (p *TextProvider) Available() bool { return p.apiKey != "" }

func (p *TextProvider) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.TextResult, error) {
	resp, err := p.client.CreateMessage(ctx, &MessagesRequest{
		Model:     p.model,
		MaxTokens: defaultMaxTokens,
		System:    provider.SystemPrompt,
		Messages: []Message{
			{Role: "user", Content: provider.BuildUserPrompt(req)},
		},
	})
	if err != nil {
		pce := domain.NewProviderCallError(p.name, p.model, err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			pce.Status = apiErr.StatusCode
			if apiErr.StatusCode == http.StatusTooManyRequests {
				pce.Kind = domain.ErrorKindRateLimit
			}
		}
		return nil, pce
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
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
