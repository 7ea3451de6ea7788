package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type attendanceRepo interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Upsert(ctx context.Context, record *models.Attendance) error
	BulkInsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.Attendance, error)
	StudentSummary(ctx context.Context, studentID, courseID string) (*models.AttendanceSummary, error)
	LessonReport(ctx context.Context, lessonID string, date time.Time) ([]models.AttendanceRecord, error)
}

type attendanceEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// MarkAttendanceRequest records one student's attendance for a lesson date.
type MarkAttendanceRequest struct {
	EnrollmentID string                  `json:"enrollment_id" validate:"required"`
	LessonID     string                  `json:"lesson_id" validate:"required"`
	Date         time.Time               `json:"date" validate:"required"`
	Status       models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Notes        *string                 `json:"notes,omitempty"`
}

// BulkAttendanceItem is one row in a bulk attendance payload.
type BulkAttendanceItem struct {
	EnrollmentID string                  `json:"enrollment_id" validate:"required"`
	Status       models.AttendanceStatus `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Notes        *string                 `json:"notes,omitempty"`
}

// BulkAttendanceRequest records attendance for many students at once.
type BulkAttendanceRequest struct {
	LessonID string                   `json:"lesson_id" validate:"required"`
	Date     time.Time                `json:"date" validate:"required"`
	Mode     models.BulkOperationMode `json:"mode" validate:"omitempty,oneof=atomic partialOnError"`
	Items    []BulkAttendanceItem     `json:"items" validate:"required,min=1,dive"`
}

// BulkAttendanceResult summarises a bulk attendance submission.
type BulkAttendanceResult struct {
	SuccessCount int                             `json:"success_count"`
	Conflicts    []models.AttendanceBulkConflict `json:"conflicts,omitempty"`
}

// AttendanceService manages attendance marking and reporting.
type AttendanceService struct {
	attendance  attendanceRepo
	enrollments attendanceEnrollmentReader
	lessons     lessonContextResolver
	assignments assignmentChecker
	users       recorderReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(attendance attendanceRepo, enrollments attendanceEnrollmentReader, lessons lessonContextResolver, assignments assignmentChecker, users recorderReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		attendance:  attendance,
		enrollments: enrollments,
		lessons:     lessons,
		assignments: assignments,
		users:       users,
		validator:   validate,
		logger:      logger,
	}
}

// List returns attendance records matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	records, total, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, total, nil
}

// Mark records or overwrites one attendance row.
func (s *AttendanceService) Mark(ctx context.Context, recorderID string, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	chain, err := s.resolveLesson(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}
	if err := s.authoriseRecorder(ctx, recorderID, chain.CourseID); err != nil {
		return nil, err
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.CourseID != chain.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment belongs to another course")
	}
	record := &models.Attendance{
		EnrollmentID: req.EnrollmentID,
		LessonID:     req.LessonID,
		Date:         req.Date,
		Status:       req.Status,
		Notes:        req.Notes,
		RecorderID:   recorderID,
	}
	if err := s.attendance.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	return record, nil
}

// BulkMark records attendance for a whole lesson in one call. In atomic
// mode a duplicate aborts everything; in partialOnError mode duplicates
// are collected as conflicts and the rest commit.
func (s *AttendanceService) BulkMark(ctx context.Context, recorderID string, req BulkAttendanceRequest) (*BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}
	chain, err := s.resolveLesson(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}
	if err := s.authoriseRecorder(ctx, recorderID, chain.CourseID); err != nil {
		return nil, err
	}
	records := make([]models.Attendance, 0, len(req.Items))
	for _, item := range req.Items {
		records = append(records, models.Attendance{
			EnrollmentID: item.EnrollmentID,
			LessonID:     req.LessonID,
			Date:         req.Date,
			Status:       item.Status,
			Notes:        item.Notes,
			RecorderID:   recorderID,
		})
	}
	atomic := req.Mode == "" || req.Mode == models.BulkModeAtomic
	conflicts, err := s.attendance.BulkInsert(ctx, records, atomic)
	if err != nil {
		if atomic {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "attendance already recorded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	result := &BulkAttendanceResult{SuccessCount: len(records) - len(conflicts)}
	for _, conflict := range conflicts {
		result.Conflicts = append(result.Conflicts, models.AttendanceBulkConflict{
			EnrollmentID: conflict.EnrollmentID,
			LessonID:     conflict.LessonID,
			Date:         conflict.Date,
			Reason:       "attendance already recorded for this date",
		})
	}
	return result, nil
}

// LessonReport returns attendance for a lesson on a given date.
func (s *AttendanceService) LessonReport(ctx context.Context, lessonID string, date time.Time) ([]models.AttendanceRecord, error) {
	if _, err := s.resolveLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	records, err := s.attendance.LessonReport(ctx, lessonID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance report")
	}
	return records, nil
}

// StudentSummary aggregates a student's attendance, optionally per course.
func (s *AttendanceService) StudentSummary(ctx context.Context, studentID, courseID string) (*models.AttendanceSummary, error) {
	summary, err := s.attendance.StudentSummary(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

func (s *AttendanceService) resolveLesson(ctx context.Context, lessonID string) (*models.LessonContext, error) {
	chain, err := s.lessons.ResolveContext(ctx, lessonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve lesson")
	}
	return chain, nil
}

func (s *AttendanceService) authoriseRecorder(ctx context.Context, recorderID, courseID string) error {
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
	return appErrors.Clone(appErrors.ErrForbidden, "not permitted to record attendance for this course")
}
