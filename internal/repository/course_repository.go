package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

// CourseRepository handles course persistence.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter with total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	baseQuery := `FROM courses WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(slug) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Published != nil {
		conditions = append(conditions, fmt.Sprintf("published = $%d", len(args)+1))
		args = append(args, *filter.Published)
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"title": true, "created_at": true, "updated_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, title, slug, description, level, published, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, slug, description, level, published, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsBySlug checks whether a slug is already used.
func (r *CourseRepository) ExistsBySlug(ctx context.Context, slug string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE slug = $1"
	args := []interface{}{slug}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course slug: %w", err)
	}
	return true, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, slug, description, level, published, created_at, updated_at)
        VALUES (:id, :title, :slug, :description, :level, :published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update applies changes to course metadata.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, slug = :slug, description = :description, level = :level, published = :published, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course. Modules, lessons, columns and scores cascade at
// the database level.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}
