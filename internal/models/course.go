package models

import "time"

// Course is the top-level container for modules and lessons.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Slug        string    `db:"slug" json:"slug"`
	Description *string   `db:"description" json:"description,omitempty"`
	Level       *string   `db:"level" json:"level,omitempty"`
	Published   bool      `db:"published" json:"published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseModule is an ordered section within a course. Position is unique
// within the owning course and maintained via shift-on-insert semantics.
type CourseModule struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	Summary   *string   `db:"summary" json:"summary,omitempty"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Lesson belongs to exactly one module. Position is unique within the module.
type Lesson struct {
	ID              string    `db:"id" json:"id"`
	ModuleID        string    `db:"module_id" json:"module_id"`
	Title           string    `db:"title" json:"title"`
	Content         *string   `db:"content" json:"content,omitempty"`
	DurationMinutes *int      `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Position        int       `db:"position" json:"position"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// LessonContext resolves a lesson up its ownership chain to the course.
type LessonContext struct {
	LessonID string `db:"lesson_id" json:"lesson_id"`
	ModuleID string `db:"module_id" json:"module_id"`
	CourseID string `db:"course_id" json:"course_id"`
}

// CourseFilter scopes course listing queries.
type CourseFilter struct {
	Search    string
	Published *bool
	Level     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
