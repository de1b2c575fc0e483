// Package storage defines the persistence interfaces for lessons and traces.
package storage

import (
	"context"

	"github.com/deepuonthemove/lessonforge/internal/domain"
)

// ListOptions controls pagination for listing queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// LessonUpdate is a partial update applied to a lesson row. Nil fields are
// left unchanged; Images replaces the stored list when non-nil.
type LessonUpdate struct {
	Status         *string
	Document       *string
	ProviderUsed   *string
	Images         []domain.UploadedImage
	Degraded       *bool
	FailureMessage *string
}

// LessonStore persists lesson rows. Listing is ordered by created_at
// descending.
type LessonStore interface {
	CreateLesson(ctx context.Context, lesson *domain.Lesson) error
	GetLesson(ctx context.Context, id string) (*domain.Lesson, error)
	UpdateLesson(ctx context.Context, id string, upd LessonUpdate) error
	DeleteLesson(ctx context.Context, id string) error
	ListLessons(ctx context.Context, opts ListOptions) ([]*domain.Lesson, error)
}

// TraceStore persists run traces. SaveTrace upserts: the recorder creates
// the row at run start and rewrites it at terminal lifecycle points.
type TraceStore interface {
	SaveTrace(ctx context.Context, trace *domain.Trace) error
	GetTrace(ctx context.Context, id string) (*domain.Trace, error)
	ListTraces(ctx context.Context, opts ListOptions) ([]*domain.Trace, error)
	DeleteTrace(ctx context.Context, id string) error
	DeleteAllTraces(ctx context.Context) (int64, error)
}

// Store combines both persistence surfaces; the sqlite and memory
// implementations satisfy it.
type Store interface {
	LessonStore
	TraceStore
	Close() error
}

// NotFoundError reports a missing row.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " " + e.ID + " not found"
}
