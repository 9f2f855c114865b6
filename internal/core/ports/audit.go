package ports

import (
	"context"

	"github.com/tourhive/backoffice/internal/core/domain"
)

type AuditRepository interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error)
}
