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

// TutorAssignmentRepository handles tutor-course assignment persistence.
type TutorAssignmentRepository struct {
	db *sqlx.DB
}

// NewTutorAssignmentRepository creates a new tutor assignment repository.
func NewTutorAssignmentRepository(db *sqlx.DB) *TutorAssignmentRepository {
	return &TutorAssignmentRepository{db: db}
}

// ListByCourse returns assignments for a course with tutor details.
func (r *TutorAssignmentRepository) ListByCourse(ctx context.Context, courseID string, activeOnly bool) ([]models.TutorAssignmentDetail, error) {
	query := `SELECT ta.id, ta.tutor_id, ta.course_id, ta.active, ta.assigned_at, ta.revoked_at,
        u.full_name AS tutor_name, u.email AS tutor_email, c.title AS course_title
        FROM tutor_assignments ta
        JOIN users u ON u.id = ta.tutor_id
        JOIN courses c ON c.id = ta.course_id
        WHERE ta.course_id = $1`
	if activeOnly {
		query += " AND ta.active = TRUE"
	}
	query += " ORDER BY ta.assigned_at DESC"
	var assignments []models.TutorAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list tutor assignments: %w", err)
	}
	return assignments, nil
}

// ListByTutor returns assignments for a tutor with course details.
func (r *TutorAssignmentRepository) ListByTutor(ctx context.Context, tutorID string, activeOnly bool) ([]models.TutorAssignmentDetail, error) {
	query := `SELECT ta.id, ta.tutor_id, ta.course_id, ta.active, ta.assigned_at, ta.revoked_at,
        u.full_name AS tutor_name, u.email AS tutor_email, c.title AS course_title
        FROM tutor_assignments ta
        JOIN users u ON u.id = ta.tutor_id
        JOIN courses c ON c.id = ta.course_id
        WHERE ta.tutor_id = $1`
	if activeOnly {
		query += " AND ta.active = TRUE"
	}
	query += " ORDER BY ta.assigned_at DESC"
	var assignments []models.TutorAssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, tutorID); err != nil {
		return nil, fmt.Errorf("list tutor assignments: %w", err)
	}
	return assignments, nil
}

// FindByID returns a single assignment.
func (r *TutorAssignmentRepository) FindByID(ctx context.Context, id string) (*models.TutorAssignment, error) {
	const query = `SELECT id, tutor_id, course_id, active, assigned_at, revoked_at
        FROM tutor_assignments WHERE id = $1`
	var assignment models.TutorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find tutor assignment: %w", err)
	}
	return &assignment, nil
}

// IsAssigned reports whether the tutor holds an active assignment on the course.
func (r *TutorAssignmentRepository) IsAssigned(ctx context.Context, tutorID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM tutor_assignments
        WHERE tutor_id = $1 AND course_id = $2 AND active = TRUE)`
	var assigned bool
	if err := r.db.GetContext(ctx, &assigned, query, tutorID, courseID); err != nil {
		return false, fmt.Errorf("check tutor assignment: %w", err)
	}
	return assigned, nil
}

// Create records a new active assignment. Re-assigning a tutor who already
// holds an active assignment on the course reactivates the existing row.
func (r *TutorAssignmentRepository) Create(ctx context.Context, assignment *models.TutorAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	assignment.Active = true
	const query = `INSERT INTO tutor_assignments (id, tutor_id, course_id, active, assigned_at, revoked_at)
        VALUES (:id, :tutor_id, :course_id, :active, :assigned_at, NULL)
        ON CONFLICT (tutor_id, course_id)
        DO UPDATE SET active = TRUE, assigned_at = EXCLUDED.assigned_at, revoked_at = NULL`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create tutor assignment: %w", err)
	}
	return nil
}

// Revoke deactivates an assignment, keeping the row for history.
func (r *TutorAssignmentRepository) Revoke(ctx context.Context, id string) error {
	const query = `UPDATE tutor_assignments
        SET active = FALSE, revoked_at = $2
        WHERE id = $1 AND active = TRUE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke tutor assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke tutor assignment rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
