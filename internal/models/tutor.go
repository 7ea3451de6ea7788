package models

import "time"

// TutorAssignment links a tutor to a course. Active assignments are the
// permission anchor for recording scores and attendance.
type TutorAssignment struct {
	ID         string     `db:"id" json:"id"`
	TutorID    string     `db:"tutor_id" json:"tutor_id"`
	CourseID   string     `db:"course_id" json:"course_id"`
	Active     bool       `db:"active" json:"active"`
	AssignedAt time.Time  `db:"assigned_at" json:"assigned_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// TutorAssignmentDetail enriches the assignment with tutor and course info.
type TutorAssignmentDetail struct {
	TutorAssignment
	TutorName   string `db:"tutor_name" json:"tutor_name"`
	TutorEmail  string `db:"tutor_email" json:"tutor_email"`
	CourseTitle string `db:"course_title" json:"course_title"`
}
