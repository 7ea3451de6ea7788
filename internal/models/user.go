package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTutor   UserRole = "TUTOR"
	RoleStudent UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	Role          UserRole   `db:"role" json:"role"`
	Active        bool       `db:"active" json:"active"`
	EmailVerified bool       `db:"email_verified" json:"email_verified"`
	PhoneVerified bool       `db:"phone_verified" json:"phone_verified"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
