package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

// ReviewRepository handles course review persistence.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// ListByCourse returns reviews for a course, newest first.
func (r *ReviewRepository) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.ReviewDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT r.id, r.enrollment_id, r.rating, r.comment, r.created_at, r.updated_at,
        e.student_id, u.full_name AS student_name
        FROM reviews r
        JOIN enrollments e ON e.id = r.enrollment_id
        JOIN users u ON u.id = e.student_id
        WHERE e.course_id = $1
        ORDER BY r.created_at DESC
        LIMIT %d OFFSET %d`, pageSize, offset)
	var reviews []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &reviews, query, courseID); err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM reviews r
        JOIN enrollments e ON e.id = r.enrollment_id
        WHERE e.course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, courseID); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}
	return reviews, total, nil
}

// FindByEnrollment returns the review for an enrollment, or nil.
func (r *ReviewRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Review, error) {
	const query = `SELECT id, enrollment_id, rating, comment, created_at, updated_at
        FROM reviews WHERE enrollment_id = $1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	return &review, nil
}

// Upsert creates or replaces the single review for an enrollment.
func (r *ReviewRepository) Upsert(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	const query = `INSERT INTO reviews (id, enrollment_id, rating, comment, created_at, updated_at)
        VALUES (:id, :enrollment_id, :rating, :comment, :created_at, :updated_at)
        ON CONFLICT (enrollment_id)
        DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// Delete removes a review by id.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete review rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CourseRating aggregates the review count and average rating for a course.
func (r *ReviewRepository) CourseRating(ctx context.Context, courseID string) (*models.CourseRating, error) {
	const query = `SELECT $1::text AS course_id, COUNT(*) AS review_count, AVG(r.rating) AS average
        FROM reviews r
        JOIN enrollments e ON e.id = r.enrollment_id
        WHERE e.course_id = $1`
	var rating models.CourseRating
	if err := r.db.GetContext(ctx, &rating, query, courseID); err != nil {
		return nil, fmt.Errorf("course rating: %w", err)
	}
	return &rating, nil
}
