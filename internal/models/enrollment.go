package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
)

// Enrollment captures a student's registration to a course for a session.
// It anchors the student's scores, attendance records and review.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Session    string           `db:"session" json:"session"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	LeftAt     *time.Time       `db:"left_at" json:"left_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	CourseTitle  string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Session   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
