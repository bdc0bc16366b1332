package domain

import "time"

// Session is one signed-in device. Tokens carry its id; revoking the session
// invalidates every token issued for it.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Password is the provider recorded for email/password sign-ins.
const Password = "password"

// Expired reports whether the session is dead at now. A nil session is expired.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !s.ExpiresAt.After(now)
}
