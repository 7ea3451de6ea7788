package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// BulkOperationMode controls how bulk writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// Attendance represents a single attendance row for a lesson date.
type Attendance struct {
	ID           string           `db:"id" json:"id"`
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	LessonID     string           `db:"lesson_id" json:"lesson_id"`
	Date         time.Time        `db:"date" json:"date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	RecorderID   string           `db:"recorder_id" json:"recorder_id"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the model with student metadata.
type AttendanceRecord struct {
	Attendance
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	CourseID    string  `db:"course_id" json:"course_id"`
	LessonTitle *string `db:"lesson_title" json:"lesson_title,omitempty"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	CourseID  string
	LessonID  string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	StudentID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendanceSummary summarises counts for an enrollment or student.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Late    int     `json:"late"`
	Excused int     `json:"excused"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// AttendanceBulkConflict captures failed bulk operations.
type AttendanceBulkConflict struct {
	EnrollmentID string    `json:"enrollment_id"`
	LessonID     string    `json:"lesson_id"`
	Date         time.Time `json:"date"`
	Reason       string    `json:"reason"`
}
