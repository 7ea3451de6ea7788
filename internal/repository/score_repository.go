package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

// ScoreRepository handles score persistence.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// List returns scores matching the filter.
func (r *ScoreRepository) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	query := `SELECT id, enrollment_id, column_id, lesson_id, module_id, recorder_id, points, max_score, percentage, grade, weight, remarks, recorded_at, created_at, updated_at
        FROM scores WHERE 1=1`
	var args []interface{}
	if filter.EnrollmentID != "" {
		query += fmt.Sprintf(" AND enrollment_id = $%d", len(args)+1)
		args = append(args, filter.EnrollmentID)
	}
	if filter.ColumnID != "" {
		query += fmt.Sprintf(" AND column_id = $%d", len(args)+1)
		args = append(args, filter.ColumnID)
	}
	if filter.LessonID != "" {
		query += fmt.Sprintf(" AND lesson_id = $%d", len(args)+1)
		args = append(args, filter.LessonID)
	}
	if filter.ModuleID != "" {
		query += fmt.Sprintf(" AND module_id = $%d", len(args)+1)
		args = append(args, filter.ModuleID)
	}
	query += " ORDER BY updated_at DESC"
	var scores []models.Score
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}

// ExistingPairs returns the set of (enrollment_id, column_id) pairs that
// already have a score, keyed as "enrollment|column".
func (r *ScoreRepository) ExistingPairs(ctx context.Context, enrollmentIDs []string) (map[string]struct{}, error) {
	if len(enrollmentIDs) == 0 {
		return map[string]struct{}{}, nil
	}
	placeholders := make([]string, len(enrollmentIDs))
	args := make([]interface{}, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT enrollment_id, column_id FROM scores WHERE enrollment_id IN (%s)", strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch score pairs: %w", err)
	}
	defer rows.Close()
	pairs := make(map[string]struct{})
	for rows.Next() {
		var enrollmentID, columnID string
		if err := rows.Scan(&enrollmentID, &columnID); err != nil {
			return nil, fmt.Errorf("scan score pair: %w", err)
		}
		pairs[enrollmentID+"|"+columnID] = struct{}{}
	}
	return pairs, nil
}

// BulkUpsert writes all scores in a single transaction, keyed by the
// (enrollment_id, column_id) uniqueness constraint. Derived fields are
// expected to be computed by the caller before the write.
func (r *ScoreRepository) BulkUpsert(ctx context.Context, scores []models.Score) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range scores {
		if scores[i].ID == "" {
			scores[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if scores[i].CreatedAt.IsZero() {
			scores[i].CreatedAt = now
		}
		scores[i].UpdatedAt = now
		const query = `INSERT INTO scores (id, enrollment_id, column_id, lesson_id, module_id, recorder_id, points, max_score, percentage, grade, weight, remarks, recorded_at, created_at, updated_at)
                VALUES (:id, :enrollment_id, :column_id, :lesson_id, :module_id, :recorder_id, :points, :max_score, :percentage, :grade, :weight, :remarks, :recorded_at, :created_at, :updated_at)
                ON CONFLICT (enrollment_id, column_id)
                DO UPDATE SET points = EXCLUDED.points, max_score = EXCLUDED.max_score, percentage = EXCLUDED.percentage,
                        grade = EXCLUDED.grade, weight = EXCLUDED.weight, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, query, scores[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert score: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scores: %w", err)
	}
	return nil
}

// FetchByEnrollments returns scores keyed by enrollment ID.
func (r *ScoreRepository) FetchByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]models.Score, error) {
	if len(enrollmentIDs) == 0 {
		return map[string][]models.Score{}, nil
	}
	placeholders := make([]string, len(enrollmentIDs))
	args := make([]interface{}, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, enrollment_id, column_id, lesson_id, module_id, recorder_id, points, max_score, percentage, grade, weight, remarks, recorded_at, created_at, updated_at
        FROM scores WHERE enrollment_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]models.Score, len(enrollmentIDs))
	for rows.Next() {
		var score models.Score
		if err := rows.StructScan(&score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		result[score.EnrollmentID] = append(result[score.EnrollmentID], score)
	}
	return result, nil
}

// MonthlyTrend aggregates a student's score percentages per month.
func (r *ScoreRepository) MonthlyTrend(ctx context.Context, studentID string) ([]models.PerformanceTrendPoint, error) {
	const query = `SELECT to_char(s.recorded_at, 'YYYY-MM') AS month, AVG(s.percentage) AS average, COUNT(*) AS count
        FROM scores s
        JOIN enrollments e ON e.id = s.enrollment_id
        WHERE e.student_id = $1
        GROUP BY 1
        ORDER BY 1`
	var points []models.PerformanceTrendPoint
	if err := r.db.SelectContext(ctx, &points, query, studentID); err != nil {
		return nil, fmt.Errorf("monthly score trend: %w", err)
	}
	return points, nil
}
