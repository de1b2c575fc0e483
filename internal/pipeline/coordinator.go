package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/deepuonthemove/lessonforge/internal/assets"
	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/trace"
	"github.com/deepuonthemove/lessonforge/internal/visual"
)

// Coordinator fans the hints out in two parallel stages: generation, then
// upload. Each hint is isolated; one failure degrades only its own slot.
// Slot indexing keeps the surviving images in hint order regardless of
// completion order.
type Coordinator struct {
	engine      *ImageEngine
	store       assets.Store
	maxConcepts int
	logger      *slog.Logger
}

// NewCoordinator creates a coordinator over the image engine and asset store.
func NewCoordinator(engine *ImageEngine, store assets.Store, maxConcepts int, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{engine: engine, store: store, maxConcepts: maxConcepts, logger: logger}
}

// ImageResult is the outcome of one image phase.
type ImageResult struct {
	// Images are the uploaded survivors, in hint order.
	Images []domain.UploadedImage

	// Degraded is true when hints existed but not one image survived both
	// stages. Partial loss is not degradation.
	Degraded bool

	// FailureMessage carries the per-hint errors when the phase degraded.
	FailureMessage string
}

// Run executes generation and upload for all hints and returns the
// surviving images. It never returns an error; the image phase cannot fail
// the run.
func (c *Coordinator) Run(ctx context.Context, doc string, hints []domain.Hint, rec *trace.Recorder) ImageResult {
	if len(hints) == 0 {
		return ImageResult{}
	}

	var (
		errMu    sync.Mutex
		failures []string
	)
	recordFailure := func(err error) {
		errMu.Lock()
		failures = append(failures, err.Error())
		errMu.Unlock()
	}

	// Stage one: generate all hints in parallel.
	generated := make([]*domain.GeneratedImage, len(hints))
	var wg sync.WaitGroup
	for i, hint := range hints {
		wg.Add(1)
		go func(i int, hint domain.Hint) {
			defer wg.Done()

			prompt := visual.BuildPrompt(hint, doc, c.maxConcepts)
			img, err := c.engine.Generate(ctx, hint, prompt, rec)
			if err != nil {
				c.logger.Warn("hint dropped at generation stage",
					slog.String("hint", hint.Text),
					slog.String("error", err.Error()),
				)
				recordFailure(err)
				return
			}
			generated[i] = img
		}(i, hint)
	}
	wg.Wait()

	// Stage two: upload the survivors in parallel.
	uploaded := make([]*domain.UploadedImage, len(hints))
	for i, img := range generated {
		if img == nil {
			continue
		}
		wg.Add(1)
		go func(i int, img *domain.GeneratedImage) {
			defer wg.Done()

			url, err := c.store.Upload(ctx, img.Payload, img.Hint.Text)
			if err != nil {
				upErr := &domain.UploadError{Hint: img.Hint.Text, Err: err}
				c.logger.Warn("hint dropped at upload stage",
					slog.String("hint", img.Hint.Text),
					slog.String("error", err.Error()),
				)
				recordFailure(upErr)
				return
			}
			uploaded[i] = &domain.UploadedImage{
				URL:         url,
				Prompt:      img.Prompt,
				HintText:    img.Hint.Text,
				MatchedLine: img.Hint.MatchedLine,
			}
		}(i, img)
	}
	wg.Wait()

	result := ImageResult{}
	for _, u := range uploaded {
		if u != nil {
			result.Images = append(result.Images, *u)
		}
	}

	if len(result.Images) == 0 {
		result.Degraded = true
		result.FailureMessage = strings.Join(failures, "; ")
	}
	return result
}
