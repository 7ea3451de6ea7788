package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type mockReviewRepo struct {
	byEnrollment map[string]*models.Review
	nextID       int
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{byEnrollment: make(map[string]*models.Review)}
}

func (m *mockReviewRepo) ListByCourse(ctx context.Context, courseID string, page, pageSize int) ([]models.ReviewDetail, int, error) {
	return nil, 0, nil
}

func (m *mockReviewRepo) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Review, error) {
	review, ok := m.byEnrollment[enrollmentID]
	if !ok {
		return nil, nil
	}
	copied := *review
	return &copied, nil
}

func (m *mockReviewRepo) Upsert(ctx context.Context, review *models.Review) error {
	now := time.Now().UTC()
	if review.ID == "" {
		m.nextID++
		review.ID = fmt.Sprintf("rev-%d", m.nextID)
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	stored := *review
	m.byEnrollment[review.EnrollmentID] = &stored
	return nil
}

func (m *mockReviewRepo) Delete(ctx context.Context, id string) error {
	for enrollmentID, review := range m.byEnrollment {
		if review.ID == id {
			delete(m.byEnrollment, enrollmentID)
			return nil
		}
	}
	return nil
}

func (m *mockReviewRepo) CourseRating(ctx context.Context, courseID string) (*models.CourseRating, error) {
	rating := &models.CourseRating{CourseID: courseID}
	var sum float64
	for _, review := range m.byEnrollment {
		rating.ReviewCount++
		sum += float64(review.Rating)
	}
	if rating.ReviewCount > 0 {
		avg := sum / float64(rating.ReviewCount)
		rating.Average = &avg
	}
	return rating, nil
}

func newReviewFixture() (*ReviewService, *mockReviewRepo) {
	repo := newMockReviewRepo()
	enrollments := &mockEnrollmentReader{enrollments: map[string]*models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusActive},
		"e2": {ID: "e2", StudentID: "s2", CourseID: "c1", Status: models.EnrollmentStatusActive},
	}}
	svc := NewReviewService(repo, enrollments, validator.New(), zap.NewNop())
	return svc, repo
}

func TestSubmitReviewCreates(t *testing.T) {
	svc, _ := newReviewFixture()

	comment := "Great pacing"
	review, err := svc.Submit(context.Background(), "s1", SubmitReviewRequest{EnrollmentID: "e1", Rating: 5, Comment: &comment})
	require.NoError(t, err)
	assert.NotEmpty(t, review.ID)
	assert.Equal(t, 5, review.Rating)
}

func TestSubmitReviewReplacesExisting(t *testing.T) {
	svc, repo := newReviewFixture()

	first, err := svc.Submit(context.Background(), "s1", SubmitReviewRequest{EnrollmentID: "e1", Rating: 3})
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), "s1", SubmitReviewRequest{EnrollmentID: "e1", Rating: 5})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 5, repo.byEnrollment["e1"].Rating)
	assert.Len(t, repo.byEnrollment, 1)
}

func TestSubmitReviewRejectsOtherStudent(t *testing.T) {
	svc, _ := newReviewFixture()

	_, err := svc.Submit(context.Background(), "s2", SubmitReviewRequest{EnrollmentID: "e1", Rating: 4})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitReviewRejectsRatingOutOfRange(t *testing.T) {
	svc, _ := newReviewFixture()

	_, err := svc.Submit(context.Background(), "s1", SubmitReviewRequest{EnrollmentID: "e1", Rating: 6})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteReviewByOwner(t *testing.T) {
	svc, repo := newReviewFixture()
	review, err := svc.Submit(context.Background(), "s1", SubmitReviewRequest{EnrollmentID: "e1", Rating: 4})
	require.NoError(t, err)

	owner := &models.User{ID: "s1", Role: models.RoleStudent}
	require.NoError(t, svc.Delete(context.Background(), owner, review.ID, "e1"))
	assert.Empty(t, repo.byEnrollment)
}

func TestDeleteReviewByAdmin(t *testing.T) {
	svc, repo := newReviewFixture()
	review, err := svc.Submit(context.Background(), "s1", SubmitReviewRequest{EnrollmentID: "e1", Rating: 4})
	require.NoError(t, err)

	admin := &models.User{ID: "a1", Role: models.RoleAdmin}
	require.NoError(t, svc.Delete(context.Background(), admin, review.ID, "e1"))
	assert.Empty(t, repo.byEnrollment)
}

func TestDeleteReviewForbiddenForOtherStudent(t *testing.T) {
	svc, _ := newReviewFixture()
	review, err := svc.Submit(context.Background(), "s1", SubmitReviewRequest{EnrollmentID: "e1", Rating: 4})
	require.NoError(t, err)

	stranger := &models.User{ID: "s2", Role: models.RoleStudent}
	err = svc.Delete(context.Background(), stranger, review.ID, "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDeleteReviewNotFound(t *testing.T) {
	svc, _ := newReviewFixture()

	admin := &models.User{ID: "a1", Role: models.RoleAdmin}
	err := svc.Delete(context.Background(), admin, "ghost", "e1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseRatingAverages(t *testing.T) {
	svc, _ := newReviewFixture()

	_, err := svc.Submit(context.Background(), "s1", SubmitReviewRequest{EnrollmentID: "e1", Rating: 5})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "s2", SubmitReviewRequest{EnrollmentID: "e2", Rating: 2})
	require.NoError(t, err)

	rating, err := svc.CourseRating(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, rating.ReviewCount)
	require.NotNil(t, rating.Average)
	assert.InDelta(t, 3.5, *rating.Average, 0.001)
}
