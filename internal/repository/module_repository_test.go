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

func newModuleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestModuleRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newModuleRepoMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "title", "summary", "position", "created_at", "updated_at"}).
		AddRow("mod-1", "course-1", "Basics", nil, 0, time.Now(), time.Now()).
		AddRow("mod-2", "course-1", "Equations", nil, 1, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, title, summary, position, created_at, updated_at FROM course_modules WHERE course_id = $1 ORDER BY position")).
		WithArgs("course-1").
		WillReturnRows(rows)

	modules, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "Basics", modules[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepositoryMaxPositionEmptyCourse(t *testing.T) {
	db, mock, cleanup := newModuleRepoMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position), -1) FROM course_modules WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(-1))

	max, err := repo.MaxPosition(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, -1, max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepositoryInsertShiftsSiblings(t *testing.T) {
	db, mock, cleanup := newModuleRepoMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_modules SET position = position + 1, updated_at = $3 WHERE course_id = $1 AND position >= $2")).
		WithArgs("course-1", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO course_modules").
		WithArgs(sqlmock.AnyArg(), "course-1", "Intro", nil, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	module := &models.CourseModule{CourseID: "course-1", Title: "Intro", Position: 0}
	require.NoError(t, repo.Insert(context.Background(), module))
	assert.NotEmpty(t, module.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepositoryMoveForward(t *testing.T) {
	db, mock, cleanup := newModuleRepoMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_modules SET position = position - 1, updated_at = $4 WHERE course_id = $1 AND position > $2 AND position <= $3")).
		WithArgs("course-1", 0, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_modules SET position = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("mod-1", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	module := &models.CourseModule{ID: "mod-1", CourseID: "course-1", Position: 0}
	require.NoError(t, repo.Move(context.Background(), module, 2))
	assert.Equal(t, 2, module.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepositoryMoveBackward(t *testing.T) {
	db, mock, cleanup := newModuleRepoMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_modules SET position = position + 1, updated_at = $4 WHERE course_id = $1 AND position >= $2 AND position < $3")).
		WithArgs("course-1", 0, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_modules SET position = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("mod-3", 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	module := &models.CourseModule{ID: "mod-3", CourseID: "course-1", Position: 2}
	require.NoError(t, repo.Move(context.Background(), module, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepositoryMoveSamePositionIsNoop(t *testing.T) {
	db, mock, cleanup := newModuleRepoMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	module := &models.CourseModule{ID: "mod-1", CourseID: "course-1", Position: 1}
	require.NoError(t, repo.Move(context.Background(), module, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepositoryDeleteCompacts(t *testing.T) {
	db, mock, cleanup := newModuleRepoMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_modules WHERE id = $1")).
		WithArgs("mod-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_modules SET position = position - 1, updated_at = $3 WHERE course_id = $1 AND position > $2")).
		WithArgs("course-1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	module := &models.CourseModule{ID: "mod-2", CourseID: "course-1", Position: 1}
	require.NoError(t, repo.Delete(context.Background(), module))
	assert.NoError(t, mock.ExpectationsWereMet())
}
