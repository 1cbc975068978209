package account

import "time"

// User mirrors the users table. The OTP and reset token columns hold
// hex SHA-256 digests of the raw values, never the raw values themselves.
type User struct {
	ID               string
	Email            string
	PasswordHash     *string
	OTP              *string
	OTPExpiry        *time.Time
	ResetToken       *string
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
