package domain

import "time"

// Session binds an opaque bearer token to a user until ExpiresAt.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidAt reports whether the session is still usable at now.
// The boundary is exclusive: a session is invalid at exactly ExpiresAt.
func (s *Session) ValidAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
