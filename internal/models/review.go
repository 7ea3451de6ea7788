package models

import "time"

// Review is a student's rating of a course, at most one per enrollment.
type Review struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Rating       int       `db:"rating" json:"rating"`
	Comment      *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewDetail enriches a review with student info for course listings.
type ReviewDetail struct {
	Review
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
}

// CourseRating aggregates review scores for a course.
type CourseRating struct {
	CourseID    string   `db:"course_id" json:"course_id"`
	ReviewCount int      `db:"review_count" json:"review_count"`
	Average     *float64 `db:"average" json:"average,omitempty"`
}
