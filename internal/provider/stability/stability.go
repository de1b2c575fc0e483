// Package stability adapts a Stability-style image endpoint that answers a
// generation request synchronously with raw image bytes.
package stability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/provider"
)

// ProviderType is the adapter type identifier used in configuration.
const ProviderType = "stability"

const defaultBaseURL = "https://api.stability.ai"

// RegisterFactory registers the Stability adapter factory.
func RegisterFactory() {
	if provider.IsRegistered(ProviderType) {
		return
	}
	provider.RegisterFactory(provider.Factory{
		Type:        ProviderType,
		Description: "Stability synchronous image models",
		NewImage:    NewImageFromConfig,
	})
}

// ImageProvider calls the generate endpoint and reads the image payload
// straight off the response body.
type ImageProvider struct {
	name     string
	baseURL  string
	apiKey   string
	models   []string
	http     *http.Client
	throttle *provider.Throttle
}

// NewImageFromConfig creates an image adapter from configuration.
func NewImageFromConfig(cfg config.ImageProviderConfig) (domain.ImageProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	models := cfg.Models
	if len(models) == 0 {
		models = []string{"core"}
	}

	timeout := 120 * time.Second
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}

	return &ImageProvider{
		name:     cfg.Name,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   cfg.APIKey,
		models:   models,
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

	payload, err := json.Marshal(map[string]string{
		"prompt":        prompt,
		"output_format": "png",
	})
	if err != nil {
		return nil, domain.NewProviderCallError(p.name, model, err)
	}

	url := fmt.Sprintf("%s/v2beta/stable-image/generate/%s", p.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.NewProviderCallError(p.name, model, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		pce := domain.NewProviderCallError(p.name, model, err)
		if errors.Is(err, context.DeadlineExceeded) {
			pce.Kind = domain.ErrorKindTimeout
		}
		return nil, pce
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		pce := &domain.ProviderCallError{
			Provider: p.name,
			Model:    model,
			Kind:     domain.ErrorKindCall,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("generate returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			pce.Kind = domain.ErrorKindRateLimit
		}
		return nil, pce
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewProviderCallError(p.name, model, fmt.Errorf("read image body: %w", err))
	}
	if len(data) == 0 {
		return nil, domain.NewProviderCallError(p.name, model, errors.New("generate returned empty body"))
	}
	return data, nil
}
