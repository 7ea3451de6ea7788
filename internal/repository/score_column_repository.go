package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

const scoreColumnColumns = "id, lesson_id, module_id, course_id, kind, title, description, max_score, weight, position, is_required, is_active, created_at, updated_at"

// ScoreColumnRepository manages score column persistence.
type ScoreColumnRepository struct {
	db *sqlx.DB
}

// NewScoreColumnRepository creates a repository instance.
func NewScoreColumnRepository(db *sqlx.DB) *ScoreColumnRepository {
	return &ScoreColumnRepository{db: db}
}

func scopeColumn(kind models.ScopeKind) string {
	switch kind {
	case models.ScopeModule:
		return "module_id"
	case models.ScopeCourse:
		return "course_id"
	default:
		return "lesson_id"
	}
}

// ListByScope returns the columns of one scope ordered by position.
func (r *ScoreColumnRepository) ListByScope(ctx context.Context, scope models.ColumnScope) ([]models.ScoreColumn, error) {
	query := fmt.Sprintf("SELECT %s FROM score_columns WHERE %s = $1 ORDER BY position, created_at", scoreColumnColumns, scopeColumn(scope.Kind))
	var columns []models.ScoreColumn
	if err := r.db.SelectContext(ctx, &columns, query, scope.OwnerID); err != nil {
		return nil, fmt.Errorf("list score columns: %w", err)
	}
	return columns, nil
}

// FindByID returns a column by its identifier.
func (r *ScoreColumnRepository) FindByID(ctx context.Context, id string) (*models.ScoreColumn, error) {
	query := fmt.Sprintf("SELECT %s FROM score_columns WHERE id = $1", scoreColumnColumns)
	var column models.ScoreColumn
	if err := r.db.GetContext(ctx, &column, query, id); err != nil {
		return nil, err
	}
	return &column, nil
}

// Create inserts a new score column.
func (r *ScoreColumnRepository) Create(ctx context.Context, column *models.ScoreColumn) error {
	if column.ID == "" {
		column.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if column.CreatedAt.IsZero() {
		column.CreatedAt = now
	}
	column.UpdatedAt = now
	const query = `INSERT INTO score_columns (id, lesson_id, module_id, course_id, kind, title, description, max_score, weight, position, is_required, is_active, created_at, updated_at)
        VALUES (:id, :lesson_id, :module_id, :course_id, :kind, :title, :description, :max_score, :weight, :position, :is_required, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, column); err != nil {
		return fmt.Errorf("create score column: %w", err)
	}
	return nil
}

// Update applies changes to the mutable fields of a column. Scope FKs are
// immutable after creation.
func (r *ScoreColumnRepository) Update(ctx context.Context, column *models.ScoreColumn) error {
	column.UpdatedAt = time.Now().UTC()
	const query = `UPDATE score_columns SET kind = :kind, title = :title, description = :description, max_score = :max_score,
        weight = :weight, position = :position, is_required = :is_required, is_active = :is_active, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, column); err != nil {
		return fmt.Errorf("update score column: %w", err)
	}
	return nil
}

// Delete removes a column. Dependent scores cascade at the database level.
func (r *ScoreColumnRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM score_columns WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete score column: %w", err)
	}
	return nil
}
