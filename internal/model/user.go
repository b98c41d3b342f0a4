package model

import "time"

// User is a registered account with its password verifier
type User struct {
	Username     string    // login username (immutable)
	PasswordHash string    // bcrypt hash
	CreatedAt    time.Time
}
