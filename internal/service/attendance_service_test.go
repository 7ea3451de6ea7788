package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type mockAttendanceRepo struct {
	stored     map[string]models.Attendance
	lastAtomic bool
	summary    *models.AttendanceSummary
	lessonRows []models.AttendanceRecord
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{stored: make(map[string]models.Attendance)}
}

func attendanceKey(enrollmentID, lessonID string, date time.Time) string {
	return enrollmentID + "|" + lessonID + "|" + date.Format("2006-01-02")
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) error {
	m.stored[attendanceKey(record.EnrollmentID, record.LessonID, record.Date)] = *record
	return nil
}

func (m *mockAttendanceRepo) BulkInsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.Attendance, error) {
	m.lastAtomic = atomic
	var conflicts []models.Attendance
	for _, record := range records {
		key := attendanceKey(record.EnrollmentID, record.LessonID, record.Date)
		if _, exists := m.stored[key]; exists {
			if atomic {
				return nil, errors.New("duplicate attendance")
			}
			conflicts = append(conflicts, record)
			continue
		}
		m.stored[key] = record
	}
	return conflicts, nil
}

func (m *mockAttendanceRepo) StudentSummary(ctx context.Context, studentID, courseID string) (*models.AttendanceSummary, error) {
	if m.summary != nil {
		return m.summary, nil
	}
	return &models.AttendanceSummary{}, nil
}

func (m *mockAttendanceRepo) LessonReport(ctx context.Context, lessonID string, date time.Time) ([]models.AttendanceRecord, error) {
	return m.lessonRows, nil
}

type attendanceFixture struct {
	repo *mockAttendanceRepo
	svc  *AttendanceService
}

func newAttendanceFixture() *attendanceFixture {
	repo := newMockAttendanceRepo()
	lessons := &mockLessonResolver{chain: &models.LessonContext{LessonID: "l1", ModuleID: "m1", CourseID: "c1"}}
	enrollments := &mockEnrollmentReader{enrollments: map[string]*models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusActive},
		"e2": {ID: "e2", StudentID: "s2", CourseID: "c1", Status: models.EnrollmentStatusActive},
		"e9": {ID: "e9", StudentID: "s9", CourseID: "other", Status: models.EnrollmentStatusActive},
	}}
	assignments := &mockAssignments{assigned: map[string]bool{"tutor1|c1": true}}
	users := &mockUserReader{users: map[string]*models.User{
		"admin1": {ID: "admin1", Role: models.RoleAdmin, Active: true},
		"tutor1": {ID: "tutor1", Role: models.RoleTutor, Active: true},
		"tutor2": {ID: "tutor2", Role: models.RoleTutor, Active: true},
	}}
	svc := NewAttendanceService(repo, enrollments, lessons, assignments, users, validator.New(), zap.NewNop())
	return &attendanceFixture{repo: repo, svc: svc}
}

func TestAttendanceMark(t *testing.T) {
	f := newAttendanceFixture()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	record, err := f.svc.Mark(context.Background(), "tutor1", MarkAttendanceRequest{
		EnrollmentID: "e1",
		LessonID:     "l1",
		Date:         date,
		Status:       models.AttendanceStatusPresent,
	})
	require.NoError(t, err)
	assert.Equal(t, "tutor1", record.RecorderID)
	assert.Len(t, f.repo.stored, 1)
}

func TestAttendanceMarkWrongCourse(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.Mark(context.Background(), "admin1", MarkAttendanceRequest{
		EnrollmentID: "e9",
		LessonID:     "l1",
		Date:         time.Now(),
		Status:       models.AttendanceStatusPresent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceBulkMarkAtomicDefault(t *testing.T) {
	f := newAttendanceFixture()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	result, err := f.svc.BulkMark(context.Background(), "tutor1", BulkAttendanceRequest{
		LessonID: "l1",
		Date:     date,
		Items: []BulkAttendanceItem{
			{EnrollmentID: "e1", Status: models.AttendanceStatusPresent},
			{EnrollmentID: "e2", Status: models.AttendanceStatusLate},
		},
	})
	require.NoError(t, err)
	assert.True(t, f.repo.lastAtomic)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Empty(t, result.Conflicts)
}

func TestAttendanceBulkMarkAtomicDuplicateAborts(t *testing.T) {
	f := newAttendanceFixture()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f.repo.stored[attendanceKey("e1", "l1", date)] = models.Attendance{EnrollmentID: "e1"}

	_, err := f.svc.BulkMark(context.Background(), "tutor1", BulkAttendanceRequest{
		LessonID: "l1",
		Date:     date,
		Mode:     models.BulkModeAtomic,
		Items: []BulkAttendanceItem{
			{EnrollmentID: "e1", Status: models.AttendanceStatusPresent},
			{EnrollmentID: "e2", Status: models.AttendanceStatusPresent},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAttendanceBulkMarkPartialCollectsConflicts(t *testing.T) {
	f := newAttendanceFixture()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f.repo.stored[attendanceKey("e1", "l1", date)] = models.Attendance{EnrollmentID: "e1"}

	result, err := f.svc.BulkMark(context.Background(), "tutor1", BulkAttendanceRequest{
		LessonID: "l1",
		Date:     date,
		Mode:     models.BulkModePartialOnError,
		Items: []BulkAttendanceItem{
			{EnrollmentID: "e1", Status: models.AttendanceStatusPresent},
			{EnrollmentID: "e2", Status: models.AttendanceStatusPresent},
		},
	})
	require.NoError(t, err)
	assert.False(t, f.repo.lastAtomic)
	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "e1", result.Conflicts[0].EnrollmentID)
}

func TestAttendanceBulkMarkUnassignedTutor(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.BulkMark(context.Background(), "tutor2", BulkAttendanceRequest{
		LessonID: "l1",
		Date:     time.Now(),
		Items:    []BulkAttendanceItem{{EnrollmentID: "e1", Status: models.AttendanceStatusPresent}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceLessonReportUnknownLesson(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.LessonReport(context.Background(), "ghost", time.Now())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
