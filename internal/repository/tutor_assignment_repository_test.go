package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

func newTutorAssignmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTutorAssignmentRepositoryListByCourseActiveOnly(t *testing.T) {
	db, mock, cleanup := newTutorAssignmentMock(t)
	defer cleanup()
	repo := NewTutorAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "tutor_id", "course_id", "active", "assigned_at", "revoked_at", "tutor_name", "tutor_email", "course_title"}).
		AddRow("asg-1", "tutor-1", "course-1", true, time.Now(), nil, "Tutor One", "tutor@example.com", "Algebra")
	mock.ExpectQuery("WHERE ta.course_id = \\$1 AND ta.active = TRUE ORDER BY ta.assigned_at DESC").
		WithArgs("course-1").
		WillReturnRows(rows)

	assignments, err := repo.ListByCourse(context.Background(), "course-1", true)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "Tutor One", assignments[0].TutorName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorAssignmentRepositoryIsAssigned(t *testing.T) {
	db, mock, cleanup := newTutorAssignmentMock(t)
	defer cleanup()
	repo := NewTutorAssignmentRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tutor-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	assigned, err := repo.IsAssigned(context.Background(), "tutor-1", "course-1")
	require.NoError(t, err)
	assert.True(t, assigned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorAssignmentRepositoryCreateUpsertsActive(t *testing.T) {
	db, mock, cleanup := newTutorAssignmentMock(t)
	defer cleanup()
	repo := NewTutorAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO tutor_assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.TutorAssignment{TutorID: "tutor-1", CourseID: "course-1"}
	require.NoError(t, repo.Create(context.Background(), assignment))
	assert.NotEmpty(t, assignment.ID)
	assert.True(t, assignment.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorAssignmentRepositoryRevoke(t *testing.T) {
	db, mock, cleanup := newTutorAssignmentMock(t)
	defer cleanup()
	repo := NewTutorAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tutor_assignments")).
		WithArgs("asg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Revoke(context.Background(), "asg-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorAssignmentRepositoryRevokeInactiveReturnsNoRows(t *testing.T) {
	db, mock, cleanup := newTutorAssignmentMock(t)
	defer cleanup()
	repo := NewTutorAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tutor_assignments")).
		WithArgs("asg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Revoke(context.Background(), "asg-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
