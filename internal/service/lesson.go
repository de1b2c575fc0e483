// Package service orchestrates lesson generation runs: it accepts requests,
// drives the text and image phases, and lands the terminal lesson state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deepuonthemove/lessonforge/internal/assets"
	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/pipeline"
	"github.com/deepuonthemove/lessonforge/internal/provider"
	"github.com/deepuonthemove/lessonforge/internal/storage"
	"github.com/deepuonthemove/lessonforge/internal/telemetry"
	"github.com/deepuonthemove/lessonforge/internal/tokens"
	"github.com/deepuonthemove/lessonforge/internal/trace"
	"github.com/deepuonthemove/lessonforge/internal/visual"
)

const maxOutlineBytes = 32 * 1024

// Service owns the lesson lifecycle. SubmitLesson validates and returns
// immediately; the run proceeds on a detached context bounded by the
// configured run timeout.
type Service struct {
	cfg      *config.Config
	store    storage.Store
	assets   assets.Store
	registry *provider.Registry
	sink     *telemetry.Sink
	est      *tokens.Estimator
	logger   *slog.Logger

	// runDone, when non-nil, is signalled after each detached run lands its
	// terminal state. Tests use it to wait for completion.
	runDone chan string
}

// New creates the lesson service.
func New(cfg *config.Config, store storage.Store, assetStore assets.Store, registry *provider.Registry, sink *telemetry.Sink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		assets:   assetStore,
		registry: registry,
		sink:     sink,
		est:      tokens.NewEstimator(),
		logger:   logger,
	}
}

// NotifyRunDone registers a channel that receives each lesson ID when its
// detached run reaches a terminal state.
func (s *Service) NotifyRunDone(ch chan string) { s.runDone = ch }

// SubmitLesson validates the request, persists the lesson in the generating
// state, and starts the detached run. The returned lesson reflects the
// pre-run state.
func (s *Service) SubmitLesson(ctx context.Context, req *domain.GenerationRequest) (*domain.Lesson, error) {
	if strings.TrimSpace(req.Outline) == "" {
		return nil, &domain.ValidationError{Field: "outline", Message: "must not be empty"}
	}
	if len(req.Outline) > maxOutlineBytes {
		return nil, &domain.ValidationError{Field: "outline", Message: "exceeds maximum size"}
	}

	now := time.Now()
	lesson := &domain.Lesson{
		ID:        "lesson_" + uuid.New().String(),
		Outline:   req.Outline,
		Options:   req.Options,
		Status:    domain.LessonStatusGenerating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateLesson(ctx, lesson); err != nil {
		return nil, err
	}

	go s.run(lesson.ID, req)
	return lesson, nil
}

// GetLesson returns one lesson by ID.
func (s *Service) GetLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	return s.store.GetLesson(ctx, id)
}

// ListLessons returns lessons, newest first.
func (s *Service) ListLessons(ctx context.Context, opts storage.ListOptions) ([]*domain.Lesson, error) {
	return s.store.ListLessons(ctx, opts)
}

// DeleteLesson removes one lesson by ID.
func (s *Service) DeleteLesson(ctx context.Context, id string) error {
	return s.store.DeleteLesson(ctx, id)
}

// GetTrace returns one run trace by ID.
func (s *Service) GetTrace(ctx context.Context, id string) (*domain.Trace, error) {
	return s.store.GetTrace(ctx, id)
}

// ListTraces returns run traces, newest first.
func (s *Service) ListTraces(ctx context.Context, opts storage.ListOptions) ([]*domain.Trace, error) {
	return s.store.ListTraces(ctx, opts)
}

// DeleteTrace removes one run trace by ID.
func (s *Service) DeleteTrace(ctx context.Context, id string) error {
	return s.store.DeleteTrace(ctx, id)
}

// DeleteAllTraces removes every run trace and reports how many went.
func (s *Service) DeleteAllTraces(ctx context.Context) (int64, error) {
	return s.store.DeleteAllTraces(ctx)
}

// run executes one generation run on its own context. It always lands a
// terminal lesson status.
func (s *Service) run(lessonID string, req *domain.GenerationRequest) {
	timeout := 10 * time.Minute
	if s.cfg.Generation.RunTimeoutSeconds > 0 {
		timeout = time.Duration(s.cfg.Generation.RunTimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer func() {
		if s.runDone != nil {
			s.runDone <- lessonID
		}
	}()

	logger := s.logger.With(slog.String("lesson_id", lessonID))

	ctx, span := s.sink.StartSpan(ctx, "lesson.run")
	defer span.End()

	// Text phase.
	textRec := trace.Start(ctx, s.store, lessonID, domain.TracePhaseText, logger)

	textProviders, err := s.registry.TextProviders()
	if err != nil {
		s.failRun(ctx, lessonID, textRec, err, logger)
		return
	}

	textEngine := pipeline.NewTextEngine(textProviders, s.est, logger)
	result, err := textEngine.Generate(ctx, req, textRec)
	if err != nil {
		s.failRun(ctx, lessonID, textRec, err, logger)
		return
	}
	textRec.Complete(ctx)

	doc := result.Content

	// Image phase: only when the author asked for illustrations and an
	// image provider exists.
	var (
		images   []domain.UploadedImage
		degraded bool
		imageErr string
	)

	hints := visual.ExtractHints(doc, s.cfg.Generation.MaxHints)
	if len(hints) > 0 {
		imageProviders, provErr := s.registry.ImageProviders()
		if provErr != nil {
			logger.Error("image provider construction failed, skipping image phase",
				slog.String("error", provErr.Error()))
			s.sink.CaptureException(ctx, provErr, map[string]string{"phase": "image", "lesson_id": lessonID})
		} else if len(imageProviders) > 0 {
			imageRec := trace.Start(ctx, s.store, lessonID, domain.TracePhaseImage, logger)

			engine := pipeline.NewImageEngine(imageProviders, s.est, logger)
			coordinator := pipeline.NewCoordinator(engine, s.assets, s.cfg.Generation.ContextConcepts, logger)

			imgResult := coordinator.Run(ctx, doc, hints, imageRec)
			images = imgResult.Images
			degraded = imgResult.Degraded
			imageErr = imgResult.FailureMessage

			if degraded {
				imageRec.Fail(ctx, errors.New(imageErr))
			} else {
				imageRec.Complete(ctx)
			}
		} else {
			logger.Info("no image provider available, document ships without illustrations",
				slog.Int("hints", len(hints)))
		}
	}

	if len(images) > 0 {
		var missed []string
		doc, missed = pipeline.Splice(doc, images)
		for _, hint := range missed {
			logger.Warn("hint line not found during splice", slog.String("hint", hint))
		}
	}

	status := domain.LessonStatusGenerated
	upd := storage.LessonUpdate{
		Status:       &status,
		Document:     &doc,
		ProviderUsed: &result.Provider,
		Images:       images,
		Degraded:     &degraded,
	}
	if degraded && imageErr != "" {
		upd.FailureMessage = &imageErr
	}

	if err := s.store.UpdateLesson(ctx, lessonID, upd); err != nil {
		logger.Error("failed to persist generated lesson", slog.String("error", err.Error()))
		s.sink.CaptureException(ctx, err, map[string]string{"lesson_id": lessonID})
	}

	logger.Info("lesson run finished",
		slog.String("provider", result.Provider),
		slog.Int("hints", len(hints)),
		slog.Int("images", len(images)),
		slog.Bool("degraded", degraded),
	)
}

// failRun lands the error terminal state after a fatal text-phase failure.
func (s *Service) failRun(ctx context.Context, lessonID string, rec *trace.Recorder, err error, logger *slog.Logger) {
	rec.Fail(ctx, err)
	s.sink.CaptureException(ctx, err, map[string]string{"phase": "text", "lesson_id": lessonID})

	status := domain.LessonStatusError
	msg := err.Error()
	if updErr := s.store.UpdateLesson(ctx, lessonID, storage.LessonUpdate{
		Status:         &status,
		FailureMessage: &msg,
	}); updErr != nil {
		logger.Error("failed to persist error state", slog.String("error", updErr.Error()))
	}

	logger.Error("lesson run failed", slog.String("error", err.Error()))
}
