package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

// LessonRepository handles lesson persistence and ordering within modules.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// ListByModule returns lessons of a module ordered by position.
func (r *LessonRepository) ListByModule(ctx context.Context, moduleID string) ([]models.Lesson, error) {
	const query = `SELECT id, module_id, title, content, duration_minutes, position, created_at, updated_at FROM lessons WHERE module_id = $1 ORDER BY position`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, moduleID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// FindByID returns a lesson by identifier.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	const query = `SELECT id, module_id, title, content, duration_minutes, position, created_at, updated_at FROM lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ResolveContext walks a lesson up to its module and course.
func (r *LessonRepository) ResolveContext(ctx context.Context, lessonID string) (*models.LessonContext, error) {
	const query = `SELECT l.id AS lesson_id, l.module_id, m.course_id
        FROM lessons l
        JOIN course_modules m ON m.id = l.module_id
        WHERE l.id = $1`
	var chain models.LessonContext
	if err := r.db.GetContext(ctx, &chain, query, lessonID); err != nil {
		return nil, err
	}
	return &chain, nil
}

// MaxPosition returns the highest position used within a module, -1 when empty.
func (r *LessonRepository) MaxPosition(ctx context.Context, moduleID string) (int, error) {
	const query = `SELECT COALESCE(MAX(position), -1) FROM lessons WHERE module_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, moduleID); err != nil {
		return 0, fmt.Errorf("max lesson position: %w", err)
	}
	return max, nil
}

// Insert adds a lesson at its position, shifting later siblings up by one.
func (r *LessonRepository) Insert(ctx context.Context, lesson *models.Lesson) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const shift = `UPDATE lessons SET position = position + 1, updated_at = $3 WHERE module_id = $1 AND position >= $2`
	if _, err := tx.ExecContext(ctx, shift, lesson.ModuleID, lesson.Position, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("shift lesson positions: %w", err)
	}

	const insert = `INSERT INTO lessons (id, module_id, title, content, duration_minutes, position, created_at, updated_at)
        VALUES (:id, :module_id, :title, :content, :duration_minutes, :position, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, lesson); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert lesson: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lesson insert: %w", err)
	}
	return nil
}

// Update applies metadata changes without touching position.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET title = :title, content = :content, duration_minutes = :duration_minutes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson and compacts the positions of later siblings.
func (r *LessonRepository) Delete(ctx context.Context, lesson *models.Lesson) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM lessons WHERE id = $1", lesson.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete lesson: %w", err)
	}
	const compact = `UPDATE lessons SET position = position - 1, updated_at = $3 WHERE module_id = $1 AND position > $2`
	if _, err := tx.ExecContext(ctx, compact, lesson.ModuleID, lesson.Position, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("compact lesson positions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lesson delete: %w", err)
	}
	return nil
}
