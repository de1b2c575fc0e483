// Package pipeline implements the generation run: the text fallback chain,
// the per-hint image fallback, the parallel generate/upload coordinator,
// and the splicer that lands image references back into the document.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/tokens"
	"github.com/deepuonthemove/lessonforge/internal/trace"
)

// TextEngine walks the ordered text providers until one returns content.
// Every call lands one attempt on the recorder, success or failure.
type TextEngine struct {
	providers []domain.TextProvider
	est       *tokens.Estimator
	logger    *slog.Logger
}

// NewTextEngine creates a text fallback engine over the ordered providers.
func NewTextEngine(providers []domain.TextProvider, est *tokens.Estimator, logger *slog.Logger) *TextEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextEngine{providers: providers, est: est, logger: logger}
}

// Generate tries each provider in order and returns the first success.
// With an empty provider list it fails before any network call, recording
// zero attempts.
func (e *TextEngine) Generate(ctx context.Context, req *domain.GenerationRequest, rec *trace.Recorder) (*domain.TextResult, error) {
	if len(e.providers) == 0 {
		return nil, &domain.NoProviderConfiguredError{Phase: "text"}
	}

	reqSummary := e.est.Summarize(req.Outline)

	var lastErr error
	for _, p := range e.providers {
		start := time.Now()
		result, err := p.Generate(ctx, req)
		elapsed := time.Since(start)

		attempt := domain.Attempt{
			Provider:       p.Name(),
			RequestSummary: reqSummary,
			DurationMs:     elapsed.Milliseconds(),
			Timestamp:      start,
		}

		if err != nil {
			attempt.Error = err.Error()
			var pce *domain.ProviderCallError
			if errors.As(err, &pce) {
				attempt.Model = pce.Model
			}
			rec.Append(attempt)

			e.logger.Warn("text provider failed, falling back",
				slog.String("provider", p.Name()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}

		attempt.Model = result.Model
		attempt.ResponseSummary = e.est.Summarize(result.Content)
		attempt.Success = true
		rec.Append(attempt)

		e.logger.Info("text generation succeeded",
			slog.String("provider", p.Name()),
			slog.String("model", result.Model),
			slog.Duration("elapsed", elapsed),
		)
		return result, nil
	}

	return nil, &domain.AllProvidersExhaustedError{Attempts: len(e.providers), Last: lastErr}
}
