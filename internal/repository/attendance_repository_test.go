package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendance").
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.Attendance{
		EnrollmentID: "enr-1",
		LessonID:     "les-1",
		Date:         time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Status:       models.AttendanceStatusPresent,
		RecorderID:   "tutor-1",
	}
	require.NoError(t, repo.Upsert(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkInsertCollectsConflicts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("att-1"))
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	records := []models.Attendance{
		{EnrollmentID: "enr-1", LessonID: "les-1", Date: date, Status: models.AttendanceStatusPresent, RecorderID: "tutor-1"},
		{EnrollmentID: "enr-2", LessonID: "les-1", Date: date, Status: models.AttendanceStatusAbsent, RecorderID: "tutor-1"},
	}
	conflicts, err := repo.BulkInsert(context.Background(), records, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "enr-2", conflicts[0].EnrollmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkInsertAtomicAbortsOnConflict(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	records := []models.Attendance{
		{EnrollmentID: "enr-1", LessonID: "les-1", Date: date, Status: models.AttendanceStatusPresent, RecorderID: "tutor-1"},
	}
	_, err := repo.BulkInsert(context.Background(), records, true)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentSummary(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"present", "absent", "late", "excused", "total"}).
		AddRow(9, 1, 0, 0, 10)
	mock.ExpectQuery("SELECT(.|\n)+FROM attendance a(.|\n)+WHERE e.student_id = \\$1$").
		WithArgs("stu-1").
		WillReturnRows(rows)

	summary, err := repo.StudentSummary(context.Background(), "stu-1", "")
	require.NoError(t, err)
	assert.Equal(t, 9, summary.Present)
	assert.Equal(t, 10, summary.Total)
	assert.InDelta(t, 90.0, summary.Rate, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStudentSummaryScopedToCourse(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"present", "absent", "late", "excused", "total"}).
		AddRow(0, 0, 0, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("AND e.course_id = $2")).
		WithArgs("stu-1", "course-1").
		WillReturnRows(rows)

	summary, err := repo.StudentSummary(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Rate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryLessonReport(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "lesson_id", "date", "status", "notes", "recorder_id", "created_at", "updated_at", "student_id", "student_name", "course_id", "lesson_title"}).
		AddRow("att-1", "enr-1", "les-1", date, models.AttendanceStatusPresent, nil, "tutor-1", time.Now(), time.Now(), "stu-1", "Ada Obi", "course-1", "Numbers")
	mock.ExpectQuery("WHERE a.lesson_id = \\$1 AND a.date = \\$2").
		WithArgs("les-1", date).
		WillReturnRows(rows)

	records, err := repo.LessonReport(context.Background(), "les-1", date)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ada Obi", records[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
