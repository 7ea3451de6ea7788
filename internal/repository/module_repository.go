package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

// ModuleRepository handles course module persistence and ordering.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository creates a new module repository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// ListByCourse returns modules of a course ordered by position.
func (r *ModuleRepository) ListByCourse(ctx context.Context, courseID string) ([]models.CourseModule, error) {
	const query = `SELECT id, course_id, title, summary, position, created_at, updated_at FROM course_modules WHERE course_id = $1 ORDER BY position`
	var modules []models.CourseModule
	if err := r.db.SelectContext(ctx, &modules, query, courseID); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// FindByID returns a module by identifier.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.CourseModule, error) {
	const query = `SELECT id, course_id, title, summary, position, created_at, updated_at FROM course_modules WHERE id = $1`
	var module models.CourseModule
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		return nil, err
	}
	return &module, nil
}

// MaxPosition returns the highest position used within a course, -1 when empty.
func (r *ModuleRepository) MaxPosition(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COALESCE(MAX(position), -1) FROM course_modules WHERE course_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, courseID); err != nil {
		return 0, fmt.Errorf("max module position: %w", err)
	}
	return max, nil
}

// Insert adds a module at its position, shifting later siblings up by one
// when the position is already taken.
func (r *ModuleRepository) Insert(ctx context.Context, module *models.CourseModule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if module.CreatedAt.IsZero() {
		module.CreatedAt = now
	}
	module.UpdatedAt = now

	const shift = `UPDATE course_modules SET position = position + 1, updated_at = $3 WHERE course_id = $1 AND position >= $2`
	if _, err := tx.ExecContext(ctx, shift, module.CourseID, module.Position, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("shift module positions: %w", err)
	}

	const insert = `INSERT INTO course_modules (id, course_id, title, summary, position, created_at, updated_at)
        VALUES (:id, :course_id, :title, :summary, :position, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, module); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert module: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit module insert: %w", err)
	}
	return nil
}

// Update applies metadata changes without touching position.
func (r *ModuleRepository) Update(ctx context.Context, module *models.CourseModule) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_modules SET title = :title, summary = :summary, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	return nil
}

// Move relocates a module to a new position, shifting the siblings in
// between in the appropriate direction.
func (r *ModuleRepository) Move(ctx context.Context, module *models.CourseModule, newPosition int) error {
	if newPosition == module.Position {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if newPosition > module.Position {
		const shiftDown = `UPDATE course_modules SET position = position - 1, updated_at = $4 WHERE course_id = $1 AND position > $2 AND position <= $3`
		if _, err := tx.ExecContext(ctx, shiftDown, module.CourseID, module.Position, newPosition, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("shift modules down: %w", err)
		}
	} else {
		const shiftUp = `UPDATE course_modules SET position = position + 1, updated_at = $4 WHERE course_id = $1 AND position >= $2 AND position < $3`
		if _, err := tx.ExecContext(ctx, shiftUp, module.CourseID, newPosition, module.Position, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("shift modules up: %w", err)
		}
	}
	const place = `UPDATE course_modules SET position = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, place, module.ID, newPosition, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("move module: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit module move: %w", err)
	}
	module.Position = newPosition
	return nil
}

// Delete removes a module and compacts the positions of later siblings.
func (r *ModuleRepository) Delete(ctx context.Context, module *models.CourseModule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM course_modules WHERE id = $1", module.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete module: %w", err)
	}
	const compact = `UPDATE course_modules SET position = position - 1, updated_at = $3 WHERE course_id = $1 AND position > $2`
	if _, err := tx.ExecContext(ctx, compact, module.CourseID, module.Position, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("compact module positions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit module delete: %w", err)
	}
	return nil
}
