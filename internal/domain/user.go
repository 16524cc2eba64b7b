package domain

import "time"

// User represents a registered account. Users are never modified or deleted.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
