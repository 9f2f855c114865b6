package ports

import (
	"context"

	"github.com/tourhive/backoffice/internal/core/domain"
)

type SessionRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error)
	Upsert(ctx context.Context, session domain.Session) error
	Revoke(ctx context.Context, tokenHash string) error
}
