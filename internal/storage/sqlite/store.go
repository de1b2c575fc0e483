package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/deepuonthemove/lessonforge/internal/domain"
	"github.com/deepuonthemove/lessonforge/internal/storage"
)

// Store is a SQLite implementation of LessonStore and TraceStore.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			outline TEXT NOT NULL,
			content_options TEXT,
			status TEXT NOT NULL,
			document TEXT,
			provider_used TEXT,
			images TEXT,
			degraded INTEGER NOT NULL DEFAULT 0,
			failure_message TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS traces (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			attempts TEXT,
			status TEXT NOT NULL,
			error TEXT,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			total_duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_status ON lessons(status)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_created ON lessons(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_subject ON traces(subject_id)`,
		`CREATE INDEX IF NOT EXISTS idx_traces_status ON traces(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) CreateLesson(ctx context.Context, lesson *domain.Lesson) error {
	lesson.CreatedAt = time.Now()
	lesson.UpdatedAt = lesson.CreatedAt

	options, err := json.Marshal(lesson.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal content options: %w", err)
	}
	images, err := marshalImages(lesson.Images)
	if err != nil {
		return err
	}

	query := `INSERT INTO lessons (id, outline, content_options, status, document, provider_used, images, degraded, failure_message, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		lesson.ID, lesson.Outline, string(options), lesson.Status,
		lesson.Document, lesson.ProviderUsed, images, boolToInt(lesson.Degraded),
		lesson.FailureMessage, lesson.CreatedAt, lesson.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	return nil
}

func (s *Store) GetLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	query := `SELECT id, outline, content_options, status, document, provider_used, images, degraded, failure_message, created_at, updated_at
	          FROM lessons WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	lesson, err := scanLesson(row)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Kind: "lesson", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return lesson, nil
}

func (s *Store) UpdateLesson(ctx context.Context, id string, upd storage.LessonUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now()}

	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.Document != nil {
		sets = append(sets, "document = ?")
		args = append(args, *upd.Document)
	}
	if upd.ProviderUsed != nil {
		sets = append(sets, "provider_used = ?")
		args = append(args, *upd.ProviderUsed)
	}
	if upd.Images != nil {
		images, err := marshalImages(upd.Images)
		if err != nil {
			return err
		}
		sets = append(sets, "images = ?")
		args = append(args, images)
	}
	if upd.Degraded != nil {
		sets = append(sets, "degraded = ?")
		args = append(args, boolToInt(*upd.Degraded))
	}
	if upd.FailureMessage != nil {
		sets = append(sets, "failure_message = ?")
		args = append(args, *upd.FailureMessage)
	}

	args = append(args, id)
	query := "UPDATE lessons SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &storage.NotFoundError{Kind: "lesson", ID: id}
	}

	return nil
}

func (s *Store) DeleteLesson(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &storage.NotFoundError{Kind: "lesson", ID: id}
	}

	return nil
}

func (s *Store) ListLessons(ctx context.Context, opts storage.ListOptions) ([]*domain.Lesson, error) {
	query := `SELECT id, outline, content_options, status, document, provider_used, images, degraded, failure_message, created_at, updated_at
	          FROM lessons
	          ORDER BY created_at DESC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit == 0 {
		limit = 100 // default limit
	}

	rows, err := s.db.QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*domain.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}

	return lessons, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLesson(row scanner) (*domain.Lesson, error) {
	var lesson domain.Lesson
	var options, document, providerUsed, images, failureMessage sql.NullString
	var degraded int

	err := row.Scan(&lesson.ID, &lesson.Outline, &options, &lesson.Status,
		&document, &providerUsed, &images, &degraded, &failureMessage,
		&lesson.CreatedAt, &lesson.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &lesson.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content options: %w", err)
		}
	}
	if images.Valid && images.String != "" {
		if err := json.Unmarshal([]byte(images.String), &lesson.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal images: %w", err)
		}
	}
	lesson.Document = document.String
	lesson.ProviderUsed = providerUsed.String
	lesson.FailureMessage = failureMessage.String
	lesson.Degraded = degraded != 0

	return &lesson, nil
}

func (s *Store) SaveTrace(ctx context.Context, trace *domain.Trace) error {
	attempts, err := json.Marshal(trace.Attempts)
	if err != nil {
		return fmt.Errorf("failed to marshal attempts: %w", err)
	}

	query := `INSERT INTO traces (id, subject_id, phase, attempts, status, error, created_at, completed_at, total_duration_ms)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	            attempts = excluded.attempts,
	            status = excluded.status,
	            error = excluded.error,
	            completed_at = excluded.completed_at,
	            total_duration_ms = excluded.total_duration_ms`

	_, err = s.db.ExecContext(ctx, query,
		trace.ID, trace.SubjectID, trace.Phase, string(attempts), string(trace.Status),
		trace.Error, trace.CreatedAt, trace.CompletedAt, trace.TotalDurationMs)

	if err != nil {
		return fmt.Errorf("failed to save trace: %w", err)
	}

	return nil
}

func (s *Store) GetTrace(ctx context.Context, id string) (*domain.Trace, error) {
	query := `SELECT id, subject_id, phase, attempts, status, error, created_at, completed_at, total_duration_ms
	          FROM traces WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	trace, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return nil, &storage.NotFoundError{Kind: "trace", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}
	return trace, nil
}

func (s *Store) ListTraces(ctx context.Context, opts storage.ListOptions) ([]*domain.Trace, error) {
	query := `SELECT id, subject_id, phase, attempts, status, error, created_at, completed_at, total_duration_ms
	          FROM traces
	          ORDER BY created_at DESC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit == 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var traces []*domain.Trace
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		traces = append(traces, trace)
	}

	return traces, rows.Err()
}

func scanTrace(row scanner) (*domain.Trace, error) {
	var trace domain.Trace
	var attempts, errMsg sql.NullString
	var status string
	var completedAt sql.NullTime
	var totalDuration sql.NullInt64

	err := row.Scan(&trace.ID, &trace.SubjectID, &trace.Phase, &attempts,
		&status, &errMsg, &trace.CreatedAt, &completedAt, &totalDuration)
	if err != nil {
		return nil, err
	}

	if attempts.Valid && attempts.String != "" {
		if err := json.Unmarshal([]byte(attempts.String), &trace.Attempts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempts: %w", err)
		}
	}
	trace.Status = domain.TraceStatus(status)
	trace.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		trace.CompletedAt = &t
	}
	trace.TotalDurationMs = totalDuration.Int64

	return &trace, nil
}

func (s *Store) DeleteTrace(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM traces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trace: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return &storage.NotFoundError{Kind: "trace", ID: id}
	}

	return nil
}

func (s *Store) DeleteAllTraces(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM traces`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete traces: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func marshalImages(images []domain.UploadedImage) (string, error) {
	if images == nil {
		return "", nil
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("failed to marshal images: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
