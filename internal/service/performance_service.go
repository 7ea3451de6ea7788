package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
	"github.com/russiantech/score-app-server-sub000/pkg/export"
)

type performanceScoreReader interface {
	FetchByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string][]models.Score, error)
	MonthlyTrend(ctx context.Context, studentID string) ([]models.PerformanceTrendPoint, error)
}

type performanceEnrollmentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

type performanceCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type performanceAttendanceReader interface {
	StudentSummary(ctx context.Context, studentID, courseID string) (*models.AttendanceSummary, error)
}

// PerformanceConfig controls report caching.
type PerformanceConfig struct {
	CacheTTL time.Duration
}

// PerformanceService aggregates scores, attendance and trends into student
// reports, with Redis caching and CSV/PDF export.
type PerformanceService struct {
	scores      performanceScoreReader
	enrollments performanceEnrollmentReader
	courses     performanceCourseReader
	attendance  performanceAttendanceReader
	cache       *CacheService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	config      PerformanceConfig
	logger      *zap.Logger
}

// NewPerformanceService constructs PerformanceService.
func NewPerformanceService(scores performanceScoreReader, enrollments performanceEnrollmentReader, courses performanceCourseReader, attendance performanceAttendanceReader, cache *CacheService, config PerformanceConfig, logger *zap.Logger) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	return &PerformanceService{
		scores:      scores,
		enrollments: enrollments,
		courses:     courses,
		attendance:  attendance,
		cache:       cache,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		config:      config,
		logger:      logger,
	}
}

func performanceCacheKey(studentID string) string {
	return "performance:student:" + studentID
}

// GetStudentPerformance builds (or serves from cache) the full performance
// report for a student. Course averages are the unweighted mean of the
// stored score percentages.
func (s *PerformanceService) GetStudentPerformance(ctx context.Context, studentID string) (*models.StudentPerformance, error) {
	if s.cache.Enabled() {
		var cached models.StudentPerformance
		if hit, err := s.cache.Get(ctx, performanceCacheKey(studentID), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	enrollmentIDs := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		enrollmentIDs = append(enrollmentIDs, enrollment.ID)
	}
	scoresByEnrollment, err := s.scores.FetchByEnrollments(ctx, enrollmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch scores")
	}

	report := &models.StudentPerformance{
		StudentID:   studentID,
		Courses:     make([]models.CoursePerformance, 0, len(enrollments)),
		GeneratedAt: time.Now().UTC(),
	}
	totalSum := 0.0
	totalCount := 0
	for _, enrollment := range enrollments {
		scores := scoresByEnrollment[enrollment.ID]
		sum := 0.0
		for _, score := range scores {
			sum += score.Percentage
		}
		average := 0.0
		if len(scores) > 0 {
			average = roundTwo(sum / float64(len(scores)))
		}
		title := enrollment.CourseID
		if course, err := s.courses.FindByID(ctx, enrollment.CourseID); err == nil {
			title = course.Title
		} else if err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		report.Courses = append(report.Courses, models.CoursePerformance{
			CourseID:    enrollment.CourseID,
			CourseTitle: title,
			Session:     enrollment.Session,
			ScoreCount:  len(scores),
			Average:     average,
			Grade:       models.GradeForPercentage(average),
		})
		totalSum += sum
		totalCount += len(scores)
	}

	overall := 0.0
	if totalCount > 0 {
		overall = roundTwo(totalSum / float64(totalCount))
	}
	report.Summary = models.PerformanceSummary{
		CourseCount:    len(enrollments),
		ScoreCount:     totalCount,
		OverallAverage: overall,
		OverallGrade:   models.GradeForPercentage(overall),
	}

	attendance, err := s.attendance.StudentSummary(ctx, studentID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	report.Attendance = *attendance

	trends, err := s.scores.MonthlyTrend(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trends")
	}
	report.Trends = trends

	if err := s.cache.Set(ctx, performanceCacheKey(studentID), report, s.config.CacheTTL); err != nil {
		s.logger.Warn("failed to cache performance report", zap.Error(err))
	}
	return report, nil
}

// InvalidateStudent drops the cached report after new scores or attendance.
func (s *PerformanceService) InvalidateStudent(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, performanceCacheKey(studentID)); err != nil {
		s.logger.Warn("failed to invalidate performance cache", zap.Error(err))
	}
}

// ExportCSV renders the student report as a CSV document.
func (s *PerformanceService) ExportCSV(ctx context.Context, studentID string) ([]byte, error) {
	report, err := s.GetStudentPerformance(ctx, studentID)
	if err != nil {
		return nil, err
	}
	payload, err := s.csv.Render(performanceDataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, nil
}

// ExportPDF renders the student report as a PDF document.
func (s *PerformanceService) ExportPDF(ctx context.Context, studentID string) ([]byte, error) {
	report, err := s.GetStudentPerformance(ctx, studentID)
	if err != nil {
		return nil, err
	}
	payload, err := s.pdf.Render(performanceDataset(report), "Student Performance Report")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return payload, nil
}

func performanceDataset(report *models.StudentPerformance) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Course", "Session", "Scores", "Average", "Grade"},
	}
	for _, course := range report.Courses {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course":  course.CourseTitle,
			"Session": course.Session,
			"Scores":  fmt.Sprintf("%d", course.ScoreCount),
			"Average": fmt.Sprintf("%.2f", course.Average),
			"Grade":   course.Grade,
		})
	}
	dataset.Rows = append(dataset.Rows, map[string]string{
		"Course":  "OVERALL",
		"Session": "",
		"Scores":  fmt.Sprintf("%d", report.Summary.ScoreCount),
		"Average": fmt.Sprintf("%.2f", report.Summary.OverallAverage),
		"Grade":   report.Summary.OverallGrade,
	})
	return dataset
}

func roundTwo(v float64) float64 {
	return math.Round(v*100) / 100
}
