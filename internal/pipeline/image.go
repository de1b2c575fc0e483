package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/tokens"
	"github.com/deepuonthemove/lessonforge/internal/trace"
)

// ImageEngine resolves one hint to image bytes by walking the ordered image
// providers, and within each provider its ordered backing models. Exhaustion
// fails only the hint, never the run.
type ImageEngine struct {
	providers []domain.ImageProvider
	est       *tokens.Estimator
	logger    *slog.Logger
}

// NewImageEngine creates a per-hint image fallback engine.
func NewImageEngine(providers []domain.ImageProvider, est *tokens.Estimator, logger *slog.Logger) *ImageEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageEngine{providers: providers, est: est, logger: logger}
}

// HasProviders reports whether any image provider is available. With none,
// the image phase is skipped entirely.
func (e *ImageEngine) HasProviders() bool { return len(e.providers) > 0 }

// Generate produces image bytes for one hint's prompt, recording one
// attempt per provider/model call.
func (e *ImageEngine) Generate(ctx context.Context, hint domain.Hint, prompt string, rec *trace.Recorder) (*domain.GeneratedImage, error) {
	if len(e.providers) == 0 {
		return nil, &domain.NoProviderConfiguredError{Phase: "image"}
	}

	reqSummary := e.est.Summarize(prompt)

	var lastErr error
	for _, p := range e.providers {
		for _, model := range p.Models() {
			start := time.Now()
			payload, err := p.Generate(ctx, prompt, model)
			elapsed := time.Since(start)

			attempt := domain.Attempt{
				Provider:       p.Name(),
				Model:          model,
				RequestSummary: reqSummary,
				DurationMs:     elapsed.Milliseconds(),
				Timestamp:      start,
			}

			if err != nil {
				attempt.Error = err.Error()
				rec.Append(attempt)

				e.logger.Warn("image model failed, falling back",
					slog.String("provider", p.Name()),
					slog.String("model", model),
					slog.String("hint", hint.Text),
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)
				lastErr = err

				if ctx.Err() != nil {
					return nil, &domain.ImageProviderExhaustedError{Hint: hint.Text, Last: ctx.Err()}
				}
				continue
			}

			attempt.ResponseSummary = fmt.Sprintf("%d image bytes", len(payload))
			attempt.Success = true
			rec.Append(attempt)

			e.logger.Info("image generation succeeded",
				slog.String("provider", p.Name()),
				slog.String("model", model),
				slog.String("hint", hint.Text),
				slog.Duration("elapsed", elapsed),
			)
			return &domain.GeneratedImage{Payload: payload, Prompt: prompt, Hint: hint}, nil
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no backing models configured")
	}
	return nil, &domain.ImageProviderExhaustedError{Hint: hint.Text, Last: lastErr}
}
