package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/tourhive/backoffice/internal/core/domain"
	"github.com/tourhive/backoffice/internal/core/ports"
)

// AuthService resolves session tokens to principals and gates privileged
// operations. Any failure resolving a session or role denies access.
type AuthService struct {
	sessions ports.SessionRepository
	now      func() time.Time
}

func NewAuthService(sessions ports.SessionRepository) *AuthService {
	return &AuthService{sessions: sessions, now: time.Now}
}

// Verify resolves token to a Principal. Every failure mode denies with
// domain.ErrUnauthorized: missing, unknown, revoked, and expired tokens,
// and also session-store failures. A caller that cannot be verified is
// not authenticated, whatever the reason; the underlying store error is
// logged here and never surfaced.
func (s *AuthService) Verify(ctx context.Context, token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	session, err := s.sessions.FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Printf("session lookup: %v", err)
		}
		return domain.Principal{}, domain.ErrUnauthorized
	}
	if session.Revoked || session.Expired(s.now().UTC()) {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	return domain.Principal{ID: session.UserID, Email: session.Email, Role: session.Role}, nil
}

// HasRole reports whether the principal satisfies the required role.
// Admins satisfy every role; an empty requirement passes everyone.
func (s *AuthService) HasRole(p domain.Principal, required string) bool {
	if required == "" {
		return true
	}
	if p.Role == domain.RoleAdmin {
		return true
	}
	return p.Role == required
}

// SignOut revokes the session behind token. Revoking an unknown token is
// not an error.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrUnauthorized
	}
	return s.sessions.Revoke(ctx, HashToken(token))
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
