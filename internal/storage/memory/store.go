package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/storage"
)

// Store is an in-memory implementation of LessonStore and TraceStore,
// used for tests and the storage.type=memory configuration.
type Store struct {
	mu      sync.RWMutex
	lessons map[string]*domain.Lesson
	traces  map[string]*domain.Trace
}

var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		lessons: make(map[string]*domain.Lesson),
		traces:  make(map[string]*domain.Trace),
	}
}

func (s *Store) CreateLesson(ctx context.Context, lesson *domain.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lesson.CreatedAt = time.Now()
	lesson.UpdatedAt = lesson.CreatedAt

	clone := *lesson
	s.lessons[lesson.ID] = &clone
	return nil
}

func (s *Store) GetLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lesson, exists := s.lessons[id]
	if !exists {
		return nil, &storage.NotFoundError{Kind: "lesson", ID: id}
	}

	clone := *lesson
	return &clone, nil
}

func (s *Store) UpdateLesson(ctx context.Context, id string, upd storage.LessonUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lesson, exists := s.lessons[id]
	if !exists {
		return &storage.NotFoundError{Kind: "lesson", ID: id}
	}

	if upd.Status != nil {
		lesson.Status = *upd.Status
	}
	if upd.Document != nil {
		lesson.Document = *upd.Document
	}
	if upd.ProviderUsed != nil {
		lesson.ProviderUsed = *upd.ProviderUsed
	}
	if upd.Images != nil {
		lesson.Images = append([]domain.UploadedImage(nil), upd.Images...)
	}
	if upd.Degraded != nil {
		lesson.Degraded = *upd.Degraded
	}
	if upd.FailureMessage != nil {
		lesson.FailureMessage = *upd.FailureMessage
	}
	lesson.UpdatedAt = time.Now()

	return nil
}

func (s *Store) DeleteLesson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lessons[id]; !exists {
		return &storage.NotFoundError{Kind: "lesson", ID: id}
	}

	delete(s.lessons, id)
	return nil
}

func (s *Store) ListLessons(ctx context.Context, opts storage.ListOptions) ([]*domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Lesson, 0, len(s.lessons))
	for _, lesson := range s.lessons {
		clone := *lesson
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts), nil
}

func (s *Store) SaveTrace(ctx context.Context, trace *domain.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *trace
	clone.Attempts = append([]domain.Attempt(nil), trace.Attempts...)
	s.traces[trace.ID] = &clone
	return nil
}

func (s *Store) GetTrace(ctx context.Context, id string) (*domain.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trace, exists := s.traces[id]
	if !exists {
		return nil, &storage.NotFoundError{Kind: "trace", ID: id}
	}

	clone := *trace
	clone.Attempts = append([]domain.Attempt(nil), trace.Attempts...)
	return &clone, nil
}

func (s *Store) ListTraces(ctx context.Context, opts storage.ListOptions) ([]*domain.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Trace, 0, len(s.traces))
	for _, trace := range s.traces {
		clone := *trace
		clone.Attempts = append([]domain.Attempt(nil), trace.Attempts...)
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts), nil
}

func (s *Store) DeleteTrace(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.traces[id]; !exists {
		return &storage.NotFoundError{Kind: "trace", ID: id}
	}

	delete(s.traces, id)
	return nil
}

func (s *Store) DeleteAllTraces(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := int64(len(s.traces))
	s.traces = make(map[string]*domain.Trace)
	return count, nil
}

func (s *Store) Close() error {
	return nil
}

// paginate applies simple offset/limit pagination.
func paginate[T any](items []T, opts storage.ListOptions) []T {
	start := opts.Offset
	if start >= len(items) {
		return []T{}
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(items) {
		end = len(items)
	}

	return items[start:end]
}
