package domain

import "time"

// Session binds an opaque token to a username until ExpiresAt.
type Session struct {
	Token     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
