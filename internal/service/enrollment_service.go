package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/repository"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type enrollmentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	Exists(ctx context.Context, studentID, courseID, session string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// EnrollRequest registers a student on a course for a session.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Session   string `json:"session" validate:"required"`
}

// UpdateEnrollmentStatusRequest transitions an enrollment.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE COMPLETED DROPPED"`
}

// EnrollmentService manages course enrollments.
type EnrollmentService struct {
	enrollments enrollmentRepo
	courses     enrollmentCourseReader
	users       enrollmentUserReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepo, courses enrollmentCourseReader, users enrollmentUserReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{enrollments: enrollments, courses: courses, users: users, validator: validate, logger: logger}
}

// List returns enrollment details matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll creates an ACTIVE enrollment. Duplicate (student, course, session)
// combinations are rejected with a conflict.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students can be enrolled")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	exists, err := s.enrollments.Exists(ctx, req.StudentID, req.CourseID, req.Session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled for this session")
	}
	enrollment := &models.Enrollment{
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		Session:    req.Session,
		Status:     models.EnrollmentStatusActive,
		EnrolledAt: time.Now().UTC(),
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if repository.IsIntegrityViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled for this session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// UpdateStatus transitions an enrollment; leaving statuses stamp left_at.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req UpdateEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var leftAt *time.Time
	if req.Status == models.EnrollmentStatusCompleted || req.Status == models.EnrollmentStatusDropped {
		now := time.Now().UTC()
		leftAt = &now
	}
	if err := s.enrollments.UpdateStatus(ctx, id, req.Status, leftAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	enrollment.Status = req.Status
	enrollment.LeftAt = leftAt
	return enrollment, nil
}

// Delete removes an enrollment and its dependent records.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.enrollments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}
