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

// EnrollmentRepository handles enrollment persistence.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by identifier.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, session, status, enrolled_at, left_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndCourse resolves the active enrollment for a student in a course.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, session, status, enrolled_at, left_at
        FROM enrollments
        WHERE student_id = $1 AND course_id = $2 AND status = $3
        ORDER BY enrolled_at DESC LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns all enrollments of a student.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, session, status, enrolled_at, left_at FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments by student: %w", err)
	}
	return enrollments, nil
}

// List returns enrollments with student/course detail and total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	baseQuery := `FROM enrollments e
        JOIN users u ON u.id = e.student_id
        JOIN courses c ON c.id = e.course_id
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Session != "" {
		conditions = append(conditions, fmt.Sprintf("e.session = $%d", len(args)+1))
		args = append(args, filter.Session)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{"enrolled_at": "e.enrolled_at", "student_name": "u.full_name", "course_title": "c.title"}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "e.enrolled_at"
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

	listQuery := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.session, e.status, e.enrolled_at, e.left_at,
        u.full_name AS student_name, u.email AS student_email, c.title AS course_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, baseQuery, column, sortOrder, pageSize, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Exists checks for a duplicate (student, course, session) triple.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID, session string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND session = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, session); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, session, status, enrolled_at)
        VALUES (:id, :student_id, :course_id, :session, :status, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus changes an enrollment's lifecycle status.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, left_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, leftAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// Delete removes an enrollment. Scores, attendance and any review cascade.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}
