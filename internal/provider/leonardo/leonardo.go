// Package leonardo adapts a Leonardo-style asynchronous image API: a
// generation is submitted as a job, polled until it completes, and the
// finished image is fetched from the URL the job reports.
package leonardo

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
const ProviderType = "leonardo"

const (
	defaultBaseURL      = "https://cloud.leonardo.ai/api/rest/v1"
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 30
)

// RegisterFactory registers the Leonardo adapter factory.
func RegisterFactory() {
	if provider.IsRegistered(ProviderType) {
		return
	}
	provider.RegisterFactory(provider.Factory{
		Type:        ProviderType,
		Description: "Leonardo asynchronous image jobs",
		NewImage:    NewImageFromConfig,
	})
}

// ImageProvider drives the submit/poll/fetch job cycle. The poll budget is
// bounded; a job still pending after the last attempt fails with a timeout
// so the per-hint fallback can move on.
type ImageProvider struct {
	name         string
	baseURL      string
	apiKey       string
	models       []string
	pollInterval time.Duration
	pollAttempts int
	http         *http.Client
	throttle     *provider.Throttle

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewImageFromConfig creates an image adapter from configuration.
func NewImageFromConfig(cfg config.ImageProviderConfig) (domain.ImageProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	models := cfg.Models
	if len(models) == 0 {
		models = []string{"leonardo-diffusion-xl"}
	}

	pollInterval := defaultPollInterval
	if cfg.PollIntervalMs > 0 {
		pollInterval = time.Duration(cfg.PollIntervalMs) * time.Millisecond
	}
	pollAttempts := defaultPollAttempts
	if cfg.MaxPollAttempts > 0 {
		pollAttempts = cfg.MaxPollAttempts
	}

	timeout := 60 * time.Second
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}

	return &ImageProvider{
		name:         cfg.Name,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       cfg.APIKey,
		models:       models,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
		http:         &http.Client{Timeout: timeout},
		throttle:     provider.NewThrottle(time.Duration(cfg.MinRequestIntervalMs) * time.Millisecond),
		sleep:        sleepCtx,
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

	jobID, err := p.submit(ctx, prompt, model)
	if err != nil {
		return nil, err
	}

	imageURL, err := p.poll(ctx, model, jobID)
	if err != nil {
		return nil, err
	}

	return p.fetch(ctx, model, imageURL)
}

type submitResponse struct {
	Job struct {
		GenerationID string `json:"generationId"`
	} `json:"sdGenerationJob"`
}

func (p *ImageProvider) submit(ctx context.Context, prompt, model string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"prompt":     prompt,
		"modelId":    model,
		"num_images": 1,
	})
	if err != nil {
		return "", domain.NewProviderCallError(p.name, model, err)
	}

	body, status, err := p.do(ctx, http.MethodPost, p.baseURL+"/generations", payload)
	if err != nil {
		return "", domain.NewProviderCallError(p.name, model, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", p.statusError(model, "submit", status, body)
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.NewProviderCallError(p.name, model, fmt.Errorf("decode submit response: %w", err))
	}
	if resp.Job.GenerationID == "" {
		return "", domain.NewProviderCallError(p.name, model, errors.New("submit response carried no job id"))
	}
	return resp.Job.GenerationID, nil
}

type pollResponse struct {
	Generation struct {
		Status string `json:"status"`
		Images []struct {
			URL string `json:"url"`
		} `json:"generated_images"`
	} `json:"generations_by_pk"`
}

func (p *ImageProvider) poll(ctx context.Context, model, jobID string) (string, error) {
	for attempt := 0; attempt < p.pollAttempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, p.pollInterval); err != nil {
				return "", domain.NewProviderCallError(p.name, model, err)
			}
		}

		body, status, err := p.do(ctx, http.MethodGet, p.baseURL+"/generations/"+jobID, nil)
		if err != nil {
			return "", domain.NewProviderCallError(p.name, model, err)
		}
		if status != http.StatusOK {
			return "", p.statusError(model, "poll", status, body)
		}

		var resp pollResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", domain.NewProviderCallError(p.name, model, fmt.Errorf("decode poll response: %w", err))
		}

		switch resp.Generation.Status {
		case "COMPLETE":
			if len(resp.Generation.Images) == 0 || resp.Generation.Images[0].URL == "" {
				return "", domain.NewProviderCallError(p.name, model, errors.New("completed job carried no image URL"))
			}
			return resp.Generation.Images[0].URL, nil
		case "FAILED":
			return "", domain.NewProviderCallError(p.name, model, fmt.Errorf("job %s failed upstream", jobID))
		}
		// PENDING keeps polling
	}

	return "", domain.NewProviderTimeout(p.name, model,
		fmt.Sprintf("job %s still pending after %d polls", jobID, p.pollAttempts))
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

func (p *ImageProvider) do(ctx context.Context, method, url string, payload []byte) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func (p *ImageProvider) statusError(model, op string, status int, body []byte) *domain.ProviderCallError {
	pce := &domain.ProviderCallError{
		Provider: p.name,
		Model:    model,
		Kind:     domain.ErrorKindCall,
		Status:   status,
		Message:  fmt.Sprintf("%s returned status %d: %s", op, status, strings.TrimSpace(string(body))),
	}
	if status == http.StatusTooManyRequests {
		pce.Kind = domain.ErrorKindRateLimit
	}
	return pce
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
