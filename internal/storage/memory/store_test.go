package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/storage"
)

func TestLessonCRUD(t *testing.T) {
	store := New()
	ctx := context.Background()

	lesson := &domain.Lesson{
		ID:      "lesson_1",
		Outline: "Photosynthesis basics",
		Status:  domain.LessonStatusGenerating,
	}
	if err := store.CreateLesson(ctx, lesson); err != nil {
		t.Fatalf("CreateLesson() error = %v", err)
	}

	got, err := store.GetLesson(ctx, "lesson_1")
	if err != nil {
		t.Fatalf("GetLesson() error = %v", err)
	}
	if got.Outline != lesson.Outline || got.Status != domain.LessonStatusGenerating {
		t.Errorf("got %+v", got)
	}

	status := domain.LessonStatusGenerated
	doc := "# Final document"
	provider := "openai-primary"
	degraded := false
	err = store.UpdateLesson(ctx, "lesson_1", storage.LessonUpdate{
		Status:       &status,
		Document:     &doc,
		ProviderUsed: &provider,
		Degraded:     &degraded,
		Images: []domain.UploadedImage{
			{URL: "http://assets.local/a.png", HintText: "a"},
		},
	})
	if err != nil {
		t.Fatalf("UpdateLesson() error = %v", err)
	}

	got, _ = store.GetLesson(ctx, "lesson_1")
	if got.Status != domain.LessonStatusGenerated || got.Document != doc {
		t.Errorf("update not applied: %+v", got)
	}
	if got.ProviderUsed != provider || len(got.Images) != 1 {
		t.Errorf("update not applied: %+v", got)
	}
	// Outline untouched by partial update.
	if got.Outline != lesson.Outline {
		t.Errorf("Outline changed: %q", got.Outline)
	}

	if err := store.DeleteLesson(ctx, "lesson_1"); err != nil {
		t.Fatalf("DeleteLesson() error = %v", err)
	}

	var notFound *storage.NotFoundError
	if _, err := store.GetLesson(ctx, "lesson_1"); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestGetLessonReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	_ = store.CreateLesson(ctx, &domain.Lesson{ID: "l", Outline: "original"})

	got, _ := store.GetLesson(ctx, "l")
	got.Outline = "mutated"

	again, _ := store.GetLesson(ctx, "l")
	if again.Outline != "original" {
		t.Errorf("caller mutation leaked into store: %q", again.Outline)
	}
}

func TestListLessonsNewestFirst(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = store.CreateLesson(ctx, &domain.Lesson{ID: fmt.Sprintf("l%d", i)})
		time.Sleep(2 * time.Millisecond)
	}

	lessons, err := store.ListLessons(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListLessons() error = %v", err)
	}
	if len(lessons) != 3 {
		t.Fatalf("got %d lessons, want 3", len(lessons))
	}
	if lessons[0].ID != "l2" || lessons[2].ID != "l0" {
		t.Errorf("not newest first: %s, %s, %s", lessons[0].ID, lessons[1].ID, lessons[2].ID)
	}

	page, _ := store.ListLessons(ctx, storage.ListOptions{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].ID != "l1" {
		t.Errorf("pagination wrong: %+v", page)
	}
}

func TestTraceUpsert(t *testing.T) {
	store := New()
	ctx := context.Background()

	tr := &domain.Trace{
		ID:        "trace_1",
		SubjectID: "lesson_1",
		Phase:     domain.TracePhaseText,
		Status:    domain.TraceStatusStarted,
		CreatedAt: time.Now(),
	}
	if err := store.SaveTrace(ctx, tr); err != nil {
		t.Fatalf("SaveTrace() error = %v", err)
	}

	tr.Status = domain.TraceStatusCompleted
	tr.Attempts = []domain.Attempt{{Provider: "p", Success: true}}
	if err := store.SaveTrace(ctx, tr); err != nil {
		t.Fatalf("SaveTrace() upsert error = %v", err)
	}

	got, err := store.GetTrace(ctx, "trace_1")
	if err != nil {
		t.Fatalf("GetTrace() error = %v", err)
	}
	if got.Status != domain.TraceStatusCompleted || len(got.Attempts) != 1 {
		t.Errorf("upsert not applied: %+v", got)
	}

	traces, _ := store.ListTraces(ctx, storage.ListOptions{})
	if len(traces) != 1 {
		t.Errorf("upsert created a second row: %d traces", len(traces))
	}
}

func TestDeleteAllTraces(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = store.SaveTrace(ctx, &domain.Trace{ID: fmt.Sprintf("trace_%d", i)})
	}

	deleted, err := store.DeleteAllTraces(ctx)
	if err != nil {
		t.Fatalf("DeleteAllTraces() error = %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}

	traces, _ := store.ListTraces(ctx, storage.ListOptions{})
	if len(traces) != 0 {
		t.Errorf("traces remain after bulk delete: %d", len(traces))
	}
}
