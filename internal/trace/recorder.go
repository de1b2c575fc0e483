// Package trace implements the append-only run trace recorder shared by the
// text and image fallback engines.
package trace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/storage"
)

const persistTimeout = 5 * time.Second

// Recorder accumulates the attempts of one run phase under a mutex so
// parallel image tasks can append safely, and flushes to the trace store
// only at lifecycle points: start, completion, failure. Persistence is
// best-effort; a failing store never fails the pipeline.
type Recorder struct {
	mu     sync.Mutex
	store  storage.TraceStore
	logger *slog.Logger
	trace  domain.Trace
	done   bool
}

// Start creates a trace in the started state and persists it before any
// provider call is made.
func Start(ctx context.Context, store storage.TraceStore, subjectID, phase string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:  store,
		logger: logger,
		trace: domain.Trace{
			ID:        "trace_" + uuid.New().String(),
			SubjectID: subjectID,
			Phase:     phase,
			Status:    domain.TraceStatusStarted,
			CreatedAt: time.Now(),
		},
	}

	r.flush(ctx)
	return r
}

// Append adds one attempt in real call order. Safe for concurrent use;
// ordering across parallel hints is not guaranteed, only within one
// caller's own sequence.
func (r *Recorder) Append(a domain.Attempt) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.trace.Attempts = append(r.trace.Attempts, a)
}

// Complete transitions the trace to its terminal completed state.
func (r *Recorder) Complete(ctx context.Context) {
	r.finish(ctx, domain.TraceStatusCompleted, "")
}

// Fail transitions the trace to its terminal failed state, retaining the
// final error message.
func (r *Recorder) Fail(ctx context.Context, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.finish(ctx, domain.TraceStatusFailed, msg)
}

func (r *Recorder) finish(ctx context.Context, status domain.TraceStatus, errMsg string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	now := time.Now()
	r.trace.Status = status
	r.trace.Error = errMsg
	r.trace.CompletedAt = &now
	r.trace.TotalDurationMs = now.Sub(r.trace.CreatedAt).Milliseconds()
	r.mu.Unlock()

	r.flush(ctx)
}

// Snapshot returns a copy of the trace as recorded so far.
func (r *Recorder) Snapshot() domain.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.trace
	snap.Attempts = append([]domain.Attempt(nil), r.trace.Attempts...)
	return snap
}

// flush persists the current trace state. It detaches from the caller's
// context so a cancelled run still lands its terminal trace, with a short
// timeout of its own.
func (r *Recorder) flush(ctx context.Context) {
	if r.store == nil {
		return
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	snap := r.Snapshot()
	if err := r.store.SaveTrace(persistCtx, &snap); err != nil {
		r.logger.Error("failed to persist trace",
			slog.String("trace_id", snap.ID),
			slog.String("subject_id", snap.SubjectID),
			slog.String("phase", snap.Phase),
			slog.String("error", err.Error()),
		)
	}
}
