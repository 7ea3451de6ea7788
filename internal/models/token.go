package models

import "time"

// RefreshToken represents a persisted refresh token session.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}

// VerificationChannel identifies how a verification code is delivered.
type VerificationChannel string

const (
	VerificationChannelEmail VerificationChannel = "email"
	VerificationChannelSMS   VerificationChannel = "sms"
)

// Valid reports whether the channel is supported.
func (c VerificationChannel) Valid() bool {
	return c == VerificationChannelEmail || c == VerificationChannelSMS
}

// VerificationCode is a short-lived code issued for email/SMS verification.
type VerificationCode struct {
	ID         string              `db:"id" json:"id"`
	UserID     string              `db:"user_id" json:"user_id"`
	Channel    VerificationChannel `db:"channel" json:"channel"`
	Code       string              `db:"code" json:"-"`
	ExpiresAt  time.Time           `db:"expires_at" json:"expires_at"`
	ConsumedAt *time.Time          `db:"consumed_at" json:"consumed_at,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
}
