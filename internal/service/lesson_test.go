package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/deepuonthemove/lessonforge/internal/assets/fsstore"
	"github.com/deepuonthemove/lessonforge/internal/config"
	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/provider"
	"github.com/deepuonthemove/lessonforge/internal/storage"
	"github.com/deepuonthemove/lessonforge/internal/storage/memory"
)

const docWithHints = `# The Water Cycle

Water moves between the surface and the atmosphere.

Visual Aid Suggestion: Diagram of evaporation and condensation.

## Precipitation

Visual Aid Suggestion: Chart of rainfall by region.
`

const docWithoutHints = "# Plain Lesson\n\nNo illustrations requested."

// stubDoc is what the stub text provider returns; tests set it per case.
var stubDoc = docWithHints

type stubText struct {
	name string
	fail bool
}

func (s *stubText) Name() string    { return s.name }
func (s *stubText) Available() bool { return true }

func (s *stubText) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.TextResult, error) {
	if s.fail {
		return nil, domain.NewProviderCallError(s.name, "stub-model", errors.New("unreachable"))
	}
	return &domain.TextResult{Content: stubDoc, Provider: s.name, Model: "stub-model"}, nil
}

type stubImage struct {
	name string
	fail bool
}

func (s *stubImage) Name() string     { return s.name }
func (s *stubImage) Available() bool  { return true }
func (s *stubImage) Models() []string { return []string{"stub-model"} }

func (s *stubImage) Generate(ctx context.Context, prompt, model string) ([]byte, error) {
	if s.fail {
		return nil, domain.NewProviderCallError(s.name, model, errors.New("image backend down"))
	}
	return []byte("stub-png"), nil
}

func registerStubs(t *testing.T) {
	t.Helper()
	provider.ClearFactories()
	t.Cleanup(provider.ClearFactories)

	provider.RegisterFactory(provider.Factory{
		Type: "stub",
		NewText: func(cfg config.TextProviderConfig) (domain.TextProvider, error) {
			return &stubText{name: cfg.Name, fail: strings.HasPrefix(cfg.Name, "fail")}, nil
		},
		NewImage: func(cfg config.ImageProviderConfig) (domain.ImageProvider, error) {
			return &stubImage{name: cfg.Name, fail: strings.HasPrefix(cfg.Name, "fail")}, nil
		},
	})
}

func newTestService(t *testing.T, providers config.ProvidersConfig) (*Service, *memory.Store, chan string) {
	t.Helper()
	registerStubs(t)

	cfg := &config.Config{
		Generation: config.GenerationConfig{MaxHints: 3, ContextConcepts: 5, RunTimeoutSeconds: 30},
		Providers:  providers,
	}

	assetStore, err := fsstore.New(t.TempDir(), "http://localhost:8080/assets")
	if err != nil {
		t.Fatalf("fsstore.New() error = %v", err)
	}

	store := memory.New()
	svc := New(cfg, store, assetStore, provider.NewRegistry(&cfg.Providers), nil, nil)

	done := make(chan string, 1)
	svc.NotifyRunDone(done)
	return svc, store, done
}

func awaitRun(t *testing.T, done chan string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

func TestSubmitLessonValidation(t *testing.T) {
	svc, store, _ := newTestService(t, config.ProvidersConfig{})

	_, err := svc.SubmitLesson(context.Background(), &domain.GenerationRequest{Outline: "   "})

	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	lessons, _ := store.ListLessons(context.Background(), storage.ListOptions{})
	if len(lessons) != 0 {
		t.Errorf("invalid request persisted %d lessons", len(lessons))
	}
}

func TestRunSuccessWithImages(t *testing.T) {
	stubDoc = docWithHints
	svc, _, done := newTestService(t, config.ProvidersConfig{
		Text:  []config.TextProviderConfig{{Name: "ok-text", Type: "stub", Priority: 1}},
		Image: []config.ImageProviderConfig{{Name: "ok-image", Type: "stub", Priority: 1}},
	})

	lesson, err := svc.SubmitLesson(context.Background(), &domain.GenerationRequest{Outline: "The water cycle"})
	if err != nil {
		t.Fatalf("SubmitLesson() error = %v", err)
	}
	if lesson.Status != domain.LessonStatusGenerating {
		t.Errorf("initial status = %q", lesson.Status)
	}
	awaitRun(t, done)

	got, err := svc.GetLesson(context.Background(), lesson.ID)
	if err != nil {
		t.Fatalf("GetLesson() error = %v", err)
	}
	if got.Status != domain.LessonStatusGenerated {
		t.Fatalf("status = %q, want generated (failure: %s)", got.Status, got.FailureMessage)
	}
	if got.ProviderUsed != "ok-text" {
		t.Errorf("ProviderUsed = %q", got.ProviderUsed)
	}
	if got.Degraded {
		t.Error("Degraded = true")
	}
	if len(got.Images) != 2 {
		t.Fatalf("got %d images, want 2", len(got.Images))
	}
	for _, img := range got.Images {
		if !strings.Contains(got.Document, "!["+img.HintText+"]("+img.URL+")") {
			t.Errorf("document missing token for %q", img.HintText)
		}
	}

	traces, _ := svc.ListTraces(context.Background(), storage.ListOptions{})
	if len(traces) != 2 {
		t.Fatalf("got %d traces, want text and image", len(traces))
	}
	for _, tr := range traces {
		if tr.Status != domain.TraceStatusCompleted {
			t.Errorf("trace %s/%s status = %q", tr.Phase, tr.ID, tr.Status)
		}
		if tr.SubjectID != lesson.ID {
			t.Errorf("trace subject = %q", tr.SubjectID)
		}
	}
}

func TestRunTextExhausted(t *testing.T) {
	svc, _, done := newTestService(t, config.ProvidersConfig{
		Text: []config.TextProviderConfig{
			{Name: "fail-a", Type: "stub", Priority: 1},
			{Name: "fail-b", Type: "stub", Priority: 2},
		},
	})

	lesson, err := svc.SubmitLesson(context.Background(), &domain.GenerationRequest{Outline: "doomed"})
	if err != nil {
		t.Fatalf("SubmitLesson() error = %v", err)
	}
	awaitRun(t, done)

	got, _ := svc.GetLesson(context.Background(), lesson.ID)
	if got.Status != domain.LessonStatusError {
		t.Fatalf("status = %q, want error", got.Status)
	}
	if got.FailureMessage == "" {
		t.Error("FailureMessage empty")
	}

	traces, _ := svc.ListTraces(context.Background(), storage.ListOptions{})
	if len(traces) != 1 {
		t.Fatalf("got %d traces, want 1", len(traces))
	}
	if traces[0].Status != domain.TraceStatusFailed {
		t.Errorf("trace status = %q, want failed", traces[0].Status)
	}
	if len(traces[0].Attempts) != 2 {
		t.Errorf("got %d attempts, want 2", len(traces[0].Attempts))
	}
}

func TestRunNoTextProviderConfigured(t *testing.T) {
	svc, _, done := newTestService(t, config.ProvidersConfig{})

	lesson, err := svc.SubmitLesson(context.Background(), &domain.GenerationRequest{Outline: "topic"})
	if err != nil {
		t.Fatalf("SubmitLesson() error = %v", err)
	}
	awaitRun(t, done)

	got, _ := svc.GetLesson(context.Background(), lesson.ID)
	if got.Status != domain.LessonStatusError {
		t.Fatalf("status = %q, want error", got.Status)
	}

	traces, _ := svc.ListTraces(context.Background(), storage.ListOptions{})
	if len(traces) != 1 || len(traces[0].Attempts) != 0 {
		t.Errorf("expected one attempt-free failed trace, got %+v", traces)
	}
}

func TestRunDegradedImagePhase(t *testing.T) {
	stubDoc = docWithHints
	svc, _, done := newTestService(t, config.ProvidersConfig{
		Text:  []config.TextProviderConfig{{Name: "ok-text", Type: "stub", Priority: 1}},
		Image: []config.ImageProviderConfig{{Name: "fail-image", Type: "stub", Priority: 1}},
	})

	lesson, _ := svc.SubmitLesson(context.Background(), &domain.GenerationRequest{Outline: "topic"})
	awaitRun(t, done)

	got, _ := svc.GetLesson(context.Background(), lesson.ID)
	if got.Status != domain.LessonStatusGenerated {
		t.Fatalf("status = %q, want generated", got.Status)
	}
	if !got.Degraded {
		t.Error("Degraded = false, want true")
	}
	if got.FailureMessage == "" {
		t.Error("degraded lesson missing failure message")
	}
	if len(got.Images) != 0 {
		t.Errorf("got %d images, want 0", len(got.Images))
	}
	if strings.Contains(got.Document, "![") {
		t.Error("document contains image tokens with nothing uploaded")
	}

	traces, _ := svc.ListTraces(context.Background(), storage.ListOptions{})
	var imageTrace *domain.Trace
	for _, tr := range traces {
		if tr.Phase == domain.TracePhaseImage {
			imageTrace = tr
		}
	}
	if imageTrace == nil {
		t.Fatal("image trace missing")
	}
	if imageTrace.Status != domain.TraceStatusFailed {
		t.Errorf("image trace status = %q, want failed", imageTrace.Status)
	}
}

func TestRunNoHintsSkipsImagePhase(t *testing.T) {
	stubDoc = docWithoutHints
	t.Cleanup(func() { stubDoc = docWithHints })

	svc, _, done := newTestService(t, config.ProvidersConfig{
		Text:  []config.TextProviderConfig{{Name: "ok-text", Type: "stub", Priority: 1}},
		Image: []config.ImageProviderConfig{{Name: "ok-image", Type: "stub", Priority: 1}},
	})

	lesson, _ := svc.SubmitLesson(context.Background(), &domain.GenerationRequest{Outline: "topic"})
	awaitRun(t, done)

	got, _ := svc.GetLesson(context.Background(), lesson.ID)
	if got.Status != domain.LessonStatusGenerated || got.Degraded || len(got.Images) != 0 {
		t.Errorf("lesson = %+v", got)
	}
	if got.Document != docWithoutHints {
		t.Errorf("document changed: %q", got.Document)
	}

	traces, _ := svc.ListTraces(context.Background(), storage.ListOptions{})
	if len(traces) != 1 || traces[0].Phase != domain.TracePhaseText {
		t.Errorf("expected only the text trace, got %+v", traces)
	}
}
