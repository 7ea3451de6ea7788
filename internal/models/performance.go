package models

import "time"

// CoursePerformance aggregates one enrollment's standing in a course.
// The average is the unweighted mean of stored score percentages; column
// weights are combined only at reporting time.
type CoursePerformance struct {
	CourseID    string  `json:"course_id"`
	CourseTitle string  `json:"course_title"`
	Session     string  `json:"session"`
	ScoreCount  int     `json:"score_count"`
	Average     float64 `json:"average"`
	Grade       string  `json:"grade"`
}

// PerformanceTrendPoint is one month of averaged score percentages.
type PerformanceTrendPoint struct {
	Month   string  `db:"month" json:"month"`
	Average float64 `db:"average" json:"average"`
	Count   int     `db:"count" json:"count"`
}

// PerformanceSummary rolls all courses into overall numbers.
type PerformanceSummary struct {
	CourseCount    int     `json:"course_count"`
	ScoreCount     int     `json:"score_count"`
	OverallAverage float64 `json:"overall_average"`
	OverallGrade   string  `json:"overall_grade"`
}

// StudentPerformance is the report returned to reporting consumers.
type StudentPerformance struct {
	StudentID   string                  `json:"student_id"`
	Summary     PerformanceSummary      `json:"summary"`
	Courses     []CoursePerformance     `json:"courses"`
	Attendance  AttendanceSummary       `json:"attendance"`
	Trends      []PerformanceTrendPoint `json:"trends"`
	GeneratedAt time.Time               `json:"generated_at"`
}
