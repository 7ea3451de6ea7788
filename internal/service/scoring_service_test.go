package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type mockColumnRepo struct {
	columns map[string]*models.ScoreColumn
	nextID  int
}

func newMockColumnRepo() *mockColumnRepo {
	return &mockColumnRepo{columns: make(map[string]*models.ScoreColumn)}
}

func (m *mockColumnRepo) ListByScope(ctx context.Context, scope models.ColumnScope) ([]models.ScoreColumn, error) {
	var out []models.ScoreColumn
	for _, col := range m.columns {
		if col.Scope() == scope {
			out = append(out, *col)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *mockColumnRepo) FindByID(ctx context.Context, id string) (*models.ScoreColumn, error) {
	col, ok := m.columns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return col, nil
}

func (m *mockColumnRepo) Create(ctx context.Context, column *models.ScoreColumn) error {
	m.nextID++
	column.ID = fmt.Sprintf("col-%d", m.nextID)
	stored := *column
	m.columns[column.ID] = &stored
	return nil
}

func (m *mockColumnRepo) Update(ctx context.Context, column *models.ScoreColumn) error {
	if _, ok := m.columns[column.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *column
	m.columns[column.ID] = &stored
	return nil
}

func (m *mockColumnRepo) Delete(ctx context.Context, id string) error {
	delete(m.columns, id)
	return nil
}

type mockScoreRepo struct {
	stored map[string]models.Score
}

func newMockScoreRepo() *mockScoreRepo {
	return &mockScoreRepo{stored: make(map[string]models.Score)}
}

func (m *mockScoreRepo) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	var out []models.Score
	for _, score := range m.stored {
		if filter.EnrollmentID != "" && score.EnrollmentID != filter.EnrollmentID {
			continue
		}
		out = append(out, score)
	}
	return out, nil
}

func (m *mockScoreRepo) ExistingPairs(ctx context.Context, enrollmentIDs []string) (map[string]struct{}, error) {
	pairs := make(map[string]struct{})
	for _, id := range enrollmentIDs {
		for key, score := range m.stored {
			if score.EnrollmentID == id {
				pairs[key] = struct{}{}
			}
		}
	}
	return pairs, nil
}

func (m *mockScoreRepo) BulkUpsert(ctx context.Context, scores []models.Score) error {
	for _, score := range scores {
		m.stored[score.EnrollmentID+"|"+score.ColumnID] = score
	}
	return nil
}

type mockLessonResolver struct {
	chain *models.LessonContext
}

func (m *mockLessonResolver) ResolveContext(ctx context.Context, lessonID string) (*models.LessonContext, error) {
	if m.chain == nil || m.chain.LessonID != lessonID {
		return nil, sql.ErrNoRows
	}
	return m.chain, nil
}

type mockEnrollmentReader struct {
	enrollments map[string]*models.Enrollment
}

func (m *mockEnrollmentReader) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return enrollment, nil
}

func (m *mockEnrollmentReader) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	for _, enrollment := range m.enrollments {
		if enrollment.StudentID == studentID && enrollment.CourseID == courseID && enrollment.Status == models.EnrollmentStatusActive {
			return enrollment, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockAssignments struct {
	assigned map[string]bool
}

func (m *mockAssignments) IsAssigned(ctx context.Context, tutorID, courseID string) (bool, error) {
	return m.assigned[tutorID+"|"+courseID], nil
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type scoringFixture struct {
	columns     *mockColumnRepo
	scores      *mockScoreRepo
	lessons     *mockLessonResolver
	enrollments *mockEnrollmentReader
	assignments *mockAssignments
	users       *mockUserReader
	svc         *ScoringService
}

func newScoringFixture() *scoringFixture {
	f := &scoringFixture{
		columns:     newMockColumnRepo(),
		scores:      newMockScoreRepo(),
		lessons:     &mockLessonResolver{chain: &models.LessonContext{LessonID: "l1", ModuleID: "m1", CourseID: "c1"}},
		enrollments: &mockEnrollmentReader{enrollments: map[string]*models.Enrollment{
			"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Status: models.EnrollmentStatusActive},
			"e2": {ID: "e2", StudentID: "s2", CourseID: "c1", Status: models.EnrollmentStatusActive},
			"e9": {ID: "e9", StudentID: "s9", CourseID: "other", Status: models.EnrollmentStatusActive},
		}},
		assignments: &mockAssignments{assigned: map[string]bool{"tutor1|c1": true}},
		users: &mockUserReader{users: map[string]*models.User{
			"admin1": {ID: "admin1", Role: models.RoleAdmin, Active: true},
			"tutor1": {ID: "tutor1", Role: models.RoleTutor, Active: true},
			"tutor2": {ID: "tutor2", Role: models.RoleTutor, Active: true},
			"stud1":  {ID: "stud1", Role: models.RoleStudent, Active: true},
		}},
	}
	f.svc = NewScoringService(f.columns, f.scores, f.lessons, f.enrollments, f.assignments, f.users, validator.New(), zap.NewNop())
	return f
}

func TestGradeBandBoundaries(t *testing.T) {
	cases := []struct {
		percentage float64
		grade      string
	}{
		{100, "A+"},
		{90, "A+"},
		{89.99, "A"},
		{80, "A"},
		{79.99, "B+"},
		{75, "B+"},
		{70, "B"},
		{65, "C+"},
		{60, "C"},
		{55, "D+"},
		{50, "D"},
		{49.99, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, models.GradeForPercentage(tc.percentage), "percentage %.2f", tc.percentage)
	}
}

func TestReconcileColumnsCreatesAndUpdates(t *testing.T) {
	f := newScoringFixture()
	scope := models.LessonScope("l1")

	columns, err := f.svc.ReconcileColumns(context.Background(), scope, []ColumnEntry{
		{Kind: models.ColumnKindQuiz, Title: "Quiz 1", MaxScore: 30, Weight: 0.3, Position: 0},
		{Kind: models.ColumnKindExam, Title: "Exam", MaxScore: 70, Weight: 0.7, Position: 1},
	})
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "Quiz 1", columns[0].Title)

	// Rename the quiz via its stored id and add a third column. The exam is
	// absent from the payload and must stay untouched.
	columns, err = f.svc.ReconcileColumns(context.Background(), scope, []ColumnEntry{
		{ID: columns[0].ID, Kind: models.ColumnKindQuiz, Title: "Quiz 1 (retake)", MaxScore: 40, Weight: 0.3, Position: 0},
		{Kind: models.ColumnKindHomework, Title: "Homework", MaxScore: 10, Weight: 0.1, Position: 2},
	})
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t, "Quiz 1 (retake)", columns[0].Title)
	assert.Equal(t, 40.0, columns[0].MaxScore)
	assert.Equal(t, "Exam", columns[1].Title)
	assert.Equal(t, "Homework", columns[2].Title)
}

func TestReconcileColumnsUnknownTempIDCreates(t *testing.T) {
	f := newScoringFixture()
	scope := models.LessonScope("l1")

	columns, err := f.svc.ReconcileColumns(context.Background(), scope, []ColumnEntry{
		{ID: "tmp-1", Kind: models.ColumnKindQuiz, Title: "Quiz", MaxScore: 20, Weight: 0.2},
	})
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.NotEqual(t, "tmp-1", columns[0].ID)
}

func TestReconcileColumnsRejectsInvalidEntries(t *testing.T) {
	f := newScoringFixture()
	scope := models.LessonScope("l1")

	_, err := f.svc.ReconcileColumns(context.Background(), scope, []ColumnEntry{
		{Kind: models.ColumnKindQuiz, Title: "Quiz", MaxScore: 0, Weight: 0.2},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.ReconcileColumns(context.Background(), scope, []ColumnEntry{
		{Kind: models.ColumnKindQuiz, Title: "Quiz", MaxScore: 10, Weight: 1.5},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.ReconcileColumns(context.Background(), scope, []ColumnEntry{
		{Kind: "essay", Title: "Essay", MaxScore: 10, Weight: 0.1},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBulkUpsertScoresCreates(t *testing.T) {
	f := newScoringFixture()

	result, err := f.svc.BulkUpsertScores(context.Background(), "tutor1", BulkScoresRequest{
		LessonID: "l1",
		Columns: []ColumnEntry{
			{Kind: models.ColumnKindQuiz, Title: "Quiz", MaxScore: 30, Weight: 0.3},
		},
		Students: []StudentScores{
			{EnrollmentID: "e1", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 27}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.TotalProcessed)
	assert.Equal(t, 1, result.ColumnsConfigured)
	assert.Empty(t, result.Errors)

	stored := f.scores.stored["e1|col-1"]
	assert.InDelta(t, 90.0, stored.Percentage, 0.001)
	assert.Equal(t, "A+", stored.Grade)
	assert.Equal(t, 0.3, stored.Weight)
	assert.Equal(t, "tutor1", stored.RecorderID)
	require.NotNil(t, stored.LessonID)
	assert.Equal(t, "l1", *stored.LessonID)
}

func TestBulkUpsertScoresResubmitCountsUpdated(t *testing.T) {
	f := newScoringFixture()

	req := BulkScoresRequest{
		LessonID: "l1",
		Columns: []ColumnEntry{
			{Kind: models.ColumnKindQuiz, Title: "Quiz", MaxScore: 30, Weight: 0.3},
		},
		Students: []StudentScores{
			{EnrollmentID: "e1", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 27}}},
		},
	}
	_, err := f.svc.BulkUpsertScores(context.Background(), "tutor1", req)
	require.NoError(t, err)

	req.Students[0].Scores[0].Points = 25
	result, err := f.svc.BulkUpsertScores(context.Background(), "tutor1", req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)

	stored := f.scores.stored["e1|col-1"]
	assert.InDelta(t, 83.333, stored.Percentage, 0.01)
	assert.Equal(t, "A", stored.Grade)
}

func TestBulkUpsertScoresRowErrorsDoNotAbort(t *testing.T) {
	f := newScoringFixture()

	result, err := f.svc.BulkUpsertScores(context.Background(), "admin1", BulkScoresRequest{
		LessonID: "l1",
		Columns: []ColumnEntry{
			{Kind: models.ColumnKindQuiz, Title: "Quiz", MaxScore: 30, Weight: 0.3},
		},
		Students: []StudentScores{
			{EnrollmentID: "e1", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 35}}},
			{EnrollmentID: "e2", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 21}}},
			{EnrollmentID: "missing", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 10}}},
			{EnrollmentID: "e9", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 10}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.TotalProcessed)
	require.Len(t, result.Errors, 3)

	reasons := make([]string, 0, len(result.Errors))
	for _, rowErr := range result.Errors {
		reasons = append(reasons, rowErr.Reason)
	}
	assert.Contains(t, reasons, "points 35.00 outside range 0-30.00")
	assert.Contains(t, reasons, "enrollment not found")
	assert.Contains(t, reasons, "enrollment belongs to another course")

	_, ok := f.scores.stored["e2|col-1"]
	assert.True(t, ok)
	_, ok = f.scores.stored["e1|col-1"]
	assert.False(t, ok)
}

func TestBulkUpsertScoresResolvesStudentID(t *testing.T) {
	f := newScoringFixture()

	result, err := f.svc.BulkUpsertScores(context.Background(), "tutor1", BulkScoresRequest{
		LessonID: "l1",
		Columns: []ColumnEntry{
			{Kind: models.ColumnKindQuiz, Title: "Quiz", MaxScore: 10, Weight: 0.1},
		},
		Students: []StudentScores{
			{StudentID: "s2", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 8}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	_, ok := f.scores.stored["e2|col-1"]
	assert.True(t, ok)
}

func TestBulkUpsertScoresUnconfiguredColumn(t *testing.T) {
	f := newScoringFixture()

	result, err := f.svc.BulkUpsertScores(context.Background(), "tutor1", BulkScoresRequest{
		LessonID: "l1",
		Students: []StudentScores{
			{EnrollmentID: "e1", Scores: []ScoreEntry{{ColumnID: "ghost", Points: 5}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalProcessed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "column not configured for lesson", result.Errors[0].Reason)
}

func TestBulkUpsertScoresLessonNotFound(t *testing.T) {
	f := newScoringFixture()

	_, err := f.svc.BulkUpsertScores(context.Background(), "admin1", BulkScoresRequest{
		LessonID: "ghost",
		Students: []StudentScores{
			{EnrollmentID: "e1", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 5}}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBulkUpsertScoresUnassignedTutorForbidden(t *testing.T) {
	f := newScoringFixture()

	_, err := f.svc.BulkUpsertScores(context.Background(), "tutor2", BulkScoresRequest{
		LessonID: "l1",
		Students: []StudentScores{
			{EnrollmentID: "e1", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 5}}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestBulkUpsertScoresStudentForbidden(t *testing.T) {
	f := newScoringFixture()

	_, err := f.svc.BulkUpsertScores(context.Background(), "stud1", BulkScoresRequest{
		LessonID: "l1",
		Students: []StudentScores{
			{EnrollmentID: "e1", Scores: []ScoreEntry{{ColumnID: "col-1", Points: 5}}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestColumnScopeExclusivity(t *testing.T) {
	col := &models.ScoreColumn{}
	col.SetScope(models.LessonScope("l1"))
	require.NotNil(t, col.LessonID)
	assert.Nil(t, col.ModuleID)
	assert.Nil(t, col.CourseID)

	col.SetScope(models.CourseScope("c1"))
	assert.Nil(t, col.LessonID)
	assert.Nil(t, col.ModuleID)
	require.NotNil(t, col.CourseID)

	moduleID := "m1"
	courseID := "c1"
	broken := &models.ScoreColumn{ModuleID: &moduleID, CourseID: &courseID}
	assert.False(t, broken.Scope().Valid())
}

func TestDeleteColumnNotFound(t *testing.T) {
	f := newScoringFixture()
	err := f.svc.DeleteColumn(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
