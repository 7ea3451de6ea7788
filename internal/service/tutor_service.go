package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type tutorAssignmentRepo interface {
	ListByCourse(ctx context.Context, courseID string, activeOnly bool) ([]models.TutorAssignmentDetail, error)
	ListByTutor(ctx context.Context, tutorID string, activeOnly bool) ([]models.TutorAssignmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.TutorAssignment, error)
	IsAssigned(ctx context.Context, tutorID, courseID string) (bool, error)
	Create(ctx context.Context, assignment *models.TutorAssignment) error
	Revoke(ctx context.Context, id string) error
}

type tutorUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type tutorCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// AssignTutorRequest links a tutor to a course.
type AssignTutorRequest struct {
	TutorID  string `json:"tutor_id" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
}

// TutorService manages tutor-course assignments.
type TutorService struct {
	assignments tutorAssignmentRepo
	users       tutorUserReader
	courses     tutorCourseReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTutorService constructs TutorService.
func NewTutorService(assignments tutorAssignmentRepo, users tutorUserReader, courses tutorCourseReader, validate *validator.Validate, logger *zap.Logger) *TutorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorService{assignments: assignments, users: users, courses: courses, validator: validate, logger: logger}
}

// ListByCourse returns a course's tutor assignments.
func (s *TutorService) ListByCourse(ctx context.Context, courseID string, activeOnly bool) ([]models.TutorAssignmentDetail, error) {
	assignments, err := s.assignments.ListByCourse(ctx, courseID, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ListByTutor returns a tutor's course assignments.
func (s *TutorService) ListByTutor(ctx context.Context, tutorID string, activeOnly bool) ([]models.TutorAssignmentDetail, error) {
	assignments, err := s.assignments.ListByTutor(ctx, tutorID, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// IsTutorAssigned reports whether the tutor holds an active assignment
// on the course.
func (s *TutorService) IsTutorAssigned(ctx context.Context, tutorID, courseID string) (bool, error) {
	assigned, err := s.assignments.IsAssigned(ctx, tutorID, courseID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	return assigned, nil
}

// Assign activates a tutor on a course. Assigning an already active tutor
// is idempotent.
func (s *TutorService) Assign(ctx context.Context, req AssignTutorRequest) (*models.TutorAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	tutor, err := s.users.FindByID(ctx, req.TutorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	if tutor.Role != models.RoleTutor {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a tutor")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	assignment := &models.TutorAssignment{TutorID: req.TutorID, CourseID: req.CourseID}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Revoke deactivates an assignment.
func (s *TutorService) Revoke(ctx context.Context, id string) error {
	if err := s.assignments.Revoke(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "active assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke assignment")
	}
	return nil
}
