package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Principal is the authenticated caller resolved from a session token.
type Principal struct {
	ID    string
	Email string
	Role  string
}

// Session is a stored login session. Tokens are never persisted in the
// clear; only the SHA-256 hash is kept.
type Session struct {
	TokenHash string
	UserID    string
	Email     string
	Role      string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// ClientContext carries best-effort request origin details for audit rows.
type ClientContext struct {
	IP        string
	UserAgent string
}
