package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/repository"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type scoreColumnRepo interface {
	ListByScope(ctx context.Context, scope models.ColumnScope) ([]models.ScoreColumn, error)
	FindByID(ctx context.Context, id string) (*models.ScoreColumn, error)
	Create(ctx context.Context, column *models.ScoreColumn) error
	Update(ctx context.Context, column *models.ScoreColumn) error
	Delete(ctx context.Context, id string) error
}

type scoreRepo interface {
	List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error)
	ExistingPairs(ctx context.Context, enrollmentIDs []string) (map[string]struct{}, error)
	BulkUpsert(ctx context.Context, scores []models.Score) error
}

type lessonContextResolver interface {
	ResolveContext(ctx context.Context, lessonID string) (*models.LessonContext, error)
}

type scoringEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

type assignmentChecker interface {
	IsAssigned(ctx context.Context, tutorID, courseID string) (bool, error)
}

type recorderReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ColumnEntry is one desired column in a reconcile payload. Entries whose ID
// matches a stored column update it; the rest create new columns and any
// client-side temp id is discarded.
type ColumnEntry struct {
	ID          string            `json:"id"`
	Kind        models.ColumnKind `json:"kind" validate:"required"`
	Title       string            `json:"title" validate:"required"`
	Description *string           `json:"description,omitempty"`
	MaxScore    float64           `json:"max_score" validate:"required,gt=0"`
	Weight      float64           `json:"weight" validate:"gte=0,lte=1"`
	Position    int               `json:"position" validate:"gte=0"`
	IsRequired  bool              `json:"is_required"`
}

// ScoreEntry is one student's result for one column.
type ScoreEntry struct {
	ColumnID string  `json:"column_id" validate:"required"`
	Points   float64 `json:"points"`
	Remarks  *string `json:"remarks,omitempty"`
}

// StudentScores groups a student's score entries. Either enrollment_id or
// student_id identifies the student; student_id is resolved through the
// active enrollment on the lesson's course.
type StudentScores struct {
	EnrollmentID string       `json:"enrollment_id"`
	StudentID    string       `json:"student_id"`
	Scores       []ScoreEntry `json:"scores" validate:"required,dive"`
}

// BulkScoresRequest submits columns and scores for one lesson.
type BulkScoresRequest struct {
	LessonID string          `json:"lesson_id" validate:"required"`
	Columns  []ColumnEntry   `json:"columns" validate:"omitempty,dive"`
	Students []StudentScores `json:"students" validate:"required,dive"`
}

// BulkScoreError captures one rejected row within a bulk submission.
type BulkScoreError struct {
	EnrollmentID string `json:"enrollment_id,omitempty"`
	StudentID    string `json:"student_id,omitempty"`
	ColumnID     string `json:"column_id,omitempty"`
	Reason       string `json:"reason"`
}

// BulkScoresResult summarises a bulk submission.
type BulkScoresResult struct {
	Created           int              `json:"created"`
	Updated           int              `json:"updated"`
	TotalProcessed    int              `json:"total_processed"`
	ColumnsConfigured int              `json:"columns_configured"`
	Errors            []BulkScoreError `json:"errors"`
}

// ScoringService orchestrates column reconciliation and bulk score entry.
type ScoringService struct {
	columns     scoreColumnRepo
	scores      scoreRepo
	lessons     lessonContextResolver
	enrollments scoringEnrollmentReader
	assignments assignmentChecker
	users       recorderReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScoringService constructs ScoringService.
func NewScoringService(columns scoreColumnRepo, scores scoreRepo, lessons lessonContextResolver, enrollments scoringEnrollmentReader, assignments assignmentChecker, users recorderReader, validate *validator.Validate, logger *zap.Logger) *ScoringService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringService{
		columns:     columns,
		scores:      scores,
		lessons:     lessons,
		enrollments: enrollments,
		assignments: assignments,
		users:       users,
		validator:   validate,
		logger:      logger,
	}
}

// Columns returns the ordered column list for a scope.
func (s *ScoringService) Columns(ctx context.Context, scope models.ColumnScope) ([]models.ScoreColumn, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid column scope")
	}
	columns, err := s.columns.ListByScope(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list score columns")
	}
	return columns, nil
}

// ReconcileColumns applies the desired column list to a scope. Entries with a
// matching stored id update its mutable fields, the rest create new columns,
// and stored columns absent from the list stay untouched. Returns the full
// ordered list for the scope.
func (s *ScoringService) ReconcileColumns(ctx context.Context, scope models.ColumnScope, desired []ColumnEntry) ([]models.ScoreColumn, error) {
	if !scope.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid column scope")
	}
	stored, err := s.columns.ListByScope(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list score columns")
	}
	storedByID := make(map[string]*models.ScoreColumn, len(stored))
	for i := range stored {
		storedByID[stored[i].ID] = &stored[i]
	}
	for _, entry := range desired {
		if err := s.validator.Struct(entry); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid column %q", entry.Title))
		}
		if !entry.Kind.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown column kind %q", entry.Kind))
		}
		if existing, ok := storedByID[entry.ID]; ok && entry.ID != "" {
			existing.Kind = entry.Kind
			existing.Title = entry.Title
			existing.Description = entry.Description
			existing.MaxScore = entry.MaxScore
			existing.Weight = entry.Weight
			existing.Position = entry.Position
			existing.IsRequired = entry.IsRequired
			if err := s.columns.Update(ctx, existing); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update score column")
			}
			continue
		}
		column := &models.ScoreColumn{
			Kind:        entry.Kind,
			Title:       entry.Title,
			Description: entry.Description,
			MaxScore:    entry.MaxScore,
			Weight:      entry.Weight,
			Position:    entry.Position,
			IsRequired:  entry.IsRequired,
			IsActive:    true,
		}
		column.SetScope(scope)
		if err := s.columns.Create(ctx, column); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create score column")
		}
	}
	columns, err := s.columns.ListByScope(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload score columns")
	}
	return columns, nil
}

// DeleteColumn removes a column and its scores.
func (s *ScoringService) DeleteColumn(ctx context.Context, id string) error {
	if _, err := s.columns.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "score column not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score column")
	}
	if err := s.columns.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete score column")
	}
	return nil
}

// ListScores returns score rows matching the filter.
func (s *ScoringService) ListScores(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	scores, err := s.scores.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}
	return scores, nil
}

// BulkUpsertScores records scores for a lesson in one pass: resolve the
// lesson's course chain, authorise the recorder, reconcile the column set,
// validate each row, then write all accepted rows in a single transaction.
// Row validation failures are collected and do not abort the batch.
func (s *ScoringService) BulkUpsertScores(ctx context.Context, recorderID string, req BulkScoresRequest) (*BulkScoresResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scores payload")
	}

	chain, err := s.lessons.ResolveContext(ctx, req.LessonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve lesson")
	}

	if err := s.authoriseRecorder(ctx, recorderID, chain.CourseID); err != nil {
		return nil, err
	}

	columns, err := s.ReconcileColumns(ctx, models.LessonScope(chain.LessonID), req.Columns)
	if err != nil {
		return nil, err
	}
	columnByID := make(map[string]*models.ScoreColumn, len(columns))
	for i := range columns {
		columnByID[columns[i].ID] = &columns[i]
	}

	result := &BulkScoresResult{ColumnsConfigured: len(columns), Errors: []BulkScoreError{}}
	now := time.Now().UTC()
	var pending []models.Score
	enrollmentIDs := make([]string, 0, len(req.Students))
	seenEnrollments := make(map[string]bool, len(req.Students))

	for _, student := range req.Students {
		enrollment, rowErr := s.resolveEnrollment(ctx, student, chain.CourseID)
		if rowErr != nil {
			result.Errors = append(result.Errors, BulkScoreError{EnrollmentID: student.EnrollmentID, StudentID: student.StudentID, Reason: rowErr.Error()})
			continue
		}
		if !seenEnrollments[enrollment.ID] {
			seenEnrollments[enrollment.ID] = true
			enrollmentIDs = append(enrollmentIDs, enrollment.ID)
		}
		for _, entry := range student.Scores {
			column, ok := columnByID[entry.ColumnID]
			if !ok {
				result.Errors = append(result.Errors, BulkScoreError{EnrollmentID: enrollment.ID, ColumnID: entry.ColumnID, Reason: "column not configured for lesson"})
				continue
			}
			if entry.Points < 0 || entry.Points > column.MaxScore {
				result.Errors = append(result.Errors, BulkScoreError{EnrollmentID: enrollment.ID, ColumnID: entry.ColumnID, Reason: fmt.Sprintf("points %.2f outside range 0-%.2f", entry.Points, column.MaxScore)})
				continue
			}
			percentage := 0.0
			if column.MaxScore > 0 {
				percentage = entry.Points / column.MaxScore * 100
			}
			lessonID := chain.LessonID
			moduleID := chain.ModuleID
			pending = append(pending, models.Score{
				EnrollmentID: enrollment.ID,
				ColumnID:     column.ID,
				LessonID:     &lessonID,
				ModuleID:     &moduleID,
				RecorderID:   recorderID,
				Points:       entry.Points,
				MaxScore:     column.MaxScore,
				Percentage:   percentage,
				Grade:        models.GradeForPercentage(percentage),
				Weight:       column.Weight,
				Remarks:      entry.Remarks,
				RecordedAt:   now,
			})
		}
	}

	existing, err := s.scores.ExistingPairs(ctx, enrollmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect existing scores")
	}
	for _, score := range pending {
		if _, ok := existing[score.EnrollmentID+"|"+score.ColumnID]; ok {
			result.Updated++
		} else {
			result.Created++
		}
	}
	if len(pending) > 0 {
		if err := s.scores.BulkUpsert(ctx, pending); err != nil {
			if repository.IsIntegrityViolation(err) {
				return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "score batch violates data integrity")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save scores")
		}
	}
	result.TotalProcessed = len(pending)
	s.logger.Info("bulk scores recorded",
		zap.String("lesson_id", req.LessonID),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("rejected", len(result.Errors)))
	return result, nil
}

func (s *ScoringService) authoriseRecorder(ctx context.Context, recorderID, courseID string) error {
	recorder, err := s.users.FindByID(ctx, recorderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrForbidden, "recorder not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recorder")
	}
	if recorder.Role == models.RoleAdmin {
		return nil
	}
	if recorder.Role == models.RoleTutor {
		assigned, err := s.assignments.IsAssigned(ctx, recorderID, courseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tutor assignment")
		}
		if assigned {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not permitted to record scores for this course")
}

func (s *ScoringService) resolveEnrollment(ctx context.Context, student StudentScores, courseID string) (*models.Enrollment, error) {
	if student.EnrollmentID != "" {
		enrollment, err := s.enrollments.FindByID(ctx, student.EnrollmentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("enrollment not found")
			}
			return nil, fmt.Errorf("failed to load enrollment")
		}
		if enrollment.CourseID != courseID {
			return nil, fmt.Errorf("enrollment belongs to another course")
		}
		return enrollment, nil
	}
	if student.StudentID == "" {
		return nil, fmt.Errorf("enrollment_id or student_id required")
	}
	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, student.StudentID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active enrollment for student")
		}
		return nil, fmt.Errorf("failed to resolve enrollment")
	}
	return enrollment, nil
}
