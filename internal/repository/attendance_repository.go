package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

// AttendanceRepository handles attendance persistence.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance records with student metadata and total count.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	baseQuery := `FROM attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN users u ON u.id = e.student_id
        LEFT JOIN lessons l ON l.id = a.lesson_id
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.LessonID != "" {
		conditions = append(conditions, fmt.Sprintf("a.lesson_id = $%d", len(args)+1))
		args = append(args, filter.LessonID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
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
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT a.id, a.enrollment_id, a.lesson_id, a.date, a.status, a.notes, a.recorder_id, a.created_at, a.updated_at,
        e.student_id, u.full_name AS student_name, e.course_id, l.title AS lesson_title
        %s ORDER BY a.date %s LIMIT %d OFFSET %d`, baseQuery, sortOrder, pageSize, offset)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// Upsert inserts or updates a single attendance row keyed by
// (enrollment_id, lesson_id, date).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, enrollment_id, lesson_id, date, status, notes, recorder_id, created_at, updated_at)
        VALUES (:id, :enrollment_id, :lesson_id, :date, :status, :notes, :recorder_id, :created_at, :updated_at)
        ON CONFLICT (enrollment_id, lesson_id, date)
        DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// BulkInsert writes attendance rows in one transaction. Existing rows are
// reported back as conflicts; in atomic mode the first conflict aborts.
func (r *AttendanceRepository) BulkInsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.Attendance, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk attendance: %w", err)
	}
	conflicts := make([]models.Attendance, 0)
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()
	query := `INSERT INTO attendance (id, enrollment_id, lesson_id, date, status, notes, recorder_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (enrollment_id, lesson_id, date) DO NOTHING RETURNING id`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var insertedID string
		if err := tx.QueryRowxContext(ctx, query, rec.ID, rec.EnrollmentID, rec.LessonID, rec.Date, rec.Status, rec.Notes, rec.RecorderID, rec.CreatedAt, rec.UpdatedAt).Scan(&insertedID); err != nil {
			if err == sql.ErrNoRows {
				conflicts = append(conflicts, *rec)
				if atomic {
					return nil, fmt.Errorf("bulk insert attendance: duplicate for enrollment %s on %s", rec.EnrollmentID, rec.Date.Format(time.RFC3339))
				}
				continue
			}
			return nil, fmt.Errorf("bulk insert attendance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk attendance: %w", err)
	}
	commit = true
	return conflicts, nil
}

// StudentSummary aggregates attendance counts for a student, optionally
// within one course. Rate is present/total*100 rounded to one decimal.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID, courseID string) (*models.AttendanceSummary, error) {
	query := `SELECT
        COUNT(*) FILTER (WHERE a.status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE a.status = 'ABSENT') AS absent,
        COUNT(*) FILTER (WHERE a.status = 'LATE') AS late,
        COUNT(*) FILTER (WHERE a.status = 'EXCUSED') AS excused,
        COUNT(*) AS total
        FROM attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        WHERE e.student_id = $1`
	args := []interface{}{studentID}
	if courseID != "" {
		query += " AND e.course_id = $2"
		args = append(args, courseID)
	}
	var summary models.AttendanceSummary
	row := r.db.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&summary.Present, &summary.Absent, &summary.Late, &summary.Excused, &summary.Total); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	if summary.Total > 0 {
		summary.Rate = math.Round(float64(summary.Present)/float64(summary.Total)*1000) / 10
	}
	return &summary, nil
}

// LessonReport returns attendance for one lesson and date.
func (r *AttendanceRepository) LessonReport(ctx context.Context, lessonID string, date time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT a.id, a.enrollment_id, a.lesson_id, a.date, a.status, a.notes, a.recorder_id, a.created_at, a.updated_at,
        e.student_id, u.full_name AS student_name, e.course_id, l.title AS lesson_title
        FROM attendance a
        JOIN enrollments e ON e.id = a.enrollment_id
        JOIN users u ON u.id = e.student_id
        LEFT JOIN lessons l ON l.id = a.lesson_id
        WHERE a.lesson_id = $1 AND a.date = $2
        ORDER BY u.full_name`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, lessonID, date); err != nil {
		return nil, fmt.Errorf("lesson attendance report: %w", err)
	}
	return records, nil
}
