package models

import "time"

// ColumnKind categorises what a score column assesses.
type ColumnKind string

const (
	ColumnKindHomework      ColumnKind = "homework"
	ColumnKindClasswork     ColumnKind = "classwork"
	ColumnKindQuiz          ColumnKind = "quiz"
	ColumnKindExam          ColumnKind = "exam"
	ColumnKindProject       ColumnKind = "project"
	ColumnKindParticipation ColumnKind = "participation"
)

// Valid reports whether the kind is a supported assessment type.
func (k ColumnKind) Valid() bool {
	switch k {
	case ColumnKindHomework, ColumnKindClasswork, ColumnKindQuiz, ColumnKindExam, ColumnKindProject, ColumnKindParticipation:
		return true
	default:
		return false
	}
}

// ScopeKind identifies which entity owns a score column.
type ScopeKind string

const (
	ScopeLesson ScopeKind = "lesson"
	ScopeModule ScopeKind = "module"
	ScopeCourse ScopeKind = "course"
)

// Valid reports whether the scope kind is supported.
func (k ScopeKind) Valid() bool {
	return k == ScopeLesson || k == ScopeModule || k == ScopeCourse
}

// ColumnScope is the tagged owner of a score column: exactly one of
// lesson, module or course. Persisted as three nullable FK columns.
type ColumnScope struct {
	Kind    ScopeKind `json:"kind"`
	OwnerID string    `json:"owner_id"`
}

// LessonScope builds a lesson-owned scope.
func LessonScope(lessonID string) ColumnScope {
	return ColumnScope{Kind: ScopeLesson, OwnerID: lessonID}
}

// ModuleScope builds a module-owned scope.
func ModuleScope(moduleID string) ColumnScope {
	return ColumnScope{Kind: ScopeModule, OwnerID: moduleID}
}

// CourseScope builds a course-owned scope.
func CourseScope(courseID string) ColumnScope {
	return ColumnScope{Kind: ScopeCourse, OwnerID: courseID}
}

// Valid reports whether the scope names a supported kind and a non-empty owner.
func (s ColumnScope) Valid() bool {
	return s.Kind.Valid() && s.OwnerID != ""
}

// ScoreColumn is a named, weighted grading bucket scoped to exactly one of
// lesson, module or course.
type ScoreColumn struct {
	ID          string     `db:"id" json:"id"`
	LessonID    *string    `db:"lesson_id" json:"lesson_id,omitempty"`
	ModuleID    *string    `db:"module_id" json:"module_id,omitempty"`
	CourseID    *string    `db:"course_id" json:"course_id,omitempty"`
	Kind        ColumnKind `db:"kind" json:"kind"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	MaxScore    float64    `db:"max_score" json:"max_score"`
	Weight      float64    `db:"weight" json:"weight"`
	Position    int        `db:"position" json:"position"`
	IsRequired  bool       `db:"is_required" json:"is_required"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Scope derives the tagged scope from the FK columns. The zero value is
// returned when none or more than one FK is set.
func (c *ScoreColumn) Scope() ColumnScope {
	set := 0
	var scope ColumnScope
	if c.LessonID != nil {
		set++
		scope = LessonScope(*c.LessonID)
	}
	if c.ModuleID != nil {
		set++
		scope = ModuleScope(*c.ModuleID)
	}
	if c.CourseID != nil {
		set++
		scope = CourseScope(*c.CourseID)
	}
	if set != 1 {
		return ColumnScope{}
	}
	return scope
}

// SetScope assigns exactly one FK column from the tagged scope, clearing
// the others.
func (c *ScoreColumn) SetScope(scope ColumnScope) {
	c.LessonID, c.ModuleID, c.CourseID = nil, nil, nil
	owner := scope.OwnerID
	switch scope.Kind {
	case ScopeLesson:
		c.LessonID = &owner
	case ScopeModule:
		c.ModuleID = &owner
	case ScopeCourse:
		c.CourseID = &owner
	}
}

// Score is one student's result for one column within one enrollment.
// Percentage and grade are always derived from points and max score at
// write time; max score and weight are copied from the column.
type Score struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	ColumnID     string    `db:"column_id" json:"column_id"`
	LessonID     *string   `db:"lesson_id" json:"lesson_id,omitempty"`
	ModuleID     *string   `db:"module_id" json:"module_id,omitempty"`
	RecorderID   string    `db:"recorder_id" json:"recorder_id"`
	Points       float64   `db:"points" json:"points"`
	MaxScore     float64   `db:"max_score" json:"max_score"`
	Percentage   float64   `db:"percentage" json:"percentage"`
	Grade        string    `db:"grade" json:"grade"`
	Weight       float64   `db:"weight" json:"weight"`
	Remarks      *string   `db:"remarks" json:"remarks,omitempty"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreFilter scopes score listing queries.
type ScoreFilter struct {
	EnrollmentID string
	ColumnID     string
	LessonID     string
	ModuleID     string
}

// GradeForPercentage maps a percentage to its letter grade. Thresholds are
// inclusive lower bounds.
func GradeForPercentage(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 75:
		return "B+"
	case percentage >= 70:
		return "B"
	case percentage >= 65:
		return "C+"
	case percentage >= 60:
		return "C"
	case percentage >= 55:
		return "D+"
	case percentage >= 50:
		return "D"
	default:
		return "F"
	}
}
