package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type reviewRepo interface {
	ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.ReviewDetail, int, error)
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Review, error)
	Upsert(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id string) error
	CourseRating(ctx context.Context, courseID string) (*models.CourseRating, error)
}

type reviewEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// SubmitReviewRequest creates or replaces the review for an enrollment.
type SubmitReviewRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	Rating       int     `json:"rating" validate:"required,gte=1,lte=5"`
	Comment      *string `json:"comment,omitempty"`
}

// ReviewService manages course reviews and ratings.
type ReviewService struct {
	reviews     reviewRepo
	enrollments reviewEnrollmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(reviews reviewRepo, enrollments reviewEnrollmentReader, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{reviews: reviews, enrollments: enrollments, validator: validate, logger: logger}
}

// ListByCourse returns reviews for a course, newest first.
func (s *ReviewService) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.ReviewDetail, int, error) {
	reviews, total, err := s.reviews.ListByCourse(ctx, courseID, page, pageSize)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, total, nil
}

// Submit creates or updates the single review for an enrollment. The caller
// must be the student who holds the enrollment.
func (s *ReviewService) Submit(ctx context.Context, studentID string, req SubmitReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	existing, err := s.reviews.FindByEnrollment(ctx, req.EnrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing review")
	}
	review := &models.Review{
		EnrollmentID: req.EnrollmentID,
		Rating:       req.Rating,
		Comment:      req.Comment,
	}
	if existing != nil {
		review.ID = existing.ID
		review.CreatedAt = existing.CreatedAt
	}
	if err := s.reviews.Upsert(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save review")
	}
	return review, nil
}

// Delete removes a review. Students may remove their own; admins any.
func (s *ReviewService) Delete(ctx context.Context, actor *models.User, reviewID, enrollmentID string) error {
	review, err := s.reviews.FindByEnrollment(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	if review == nil || review.ID != reviewID {
		return appErrors.Clone(appErrors.ErrNotFound, "review not found")
	}
	if actor.Role != models.RoleAdmin {
		enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}
		if enrollment.StudentID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "review belongs to another student")
		}
	}
	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	return nil
}

// CourseRating aggregates review count and average for a course.
func (s *ReviewService) CourseRating(ctx context.Context, courseID string) (*models.CourseRating, error) {
	rating, err := s.reviews.CourseRating(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate course rating")
	}
	return rating, nil
}
