package users

import "time"

// User is an account that can own documents. Role is one of
// admin|editor|viewer; the password is stored as a bcrypt hash.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}
