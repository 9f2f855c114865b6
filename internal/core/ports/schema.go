package ports

import (
	"context"

	"github.com/tourhive/backoffice/internal/core/domain"
)

type EntityDocumentRepository interface {
	Upsert(ctx context.Context, doc domain.EntityDocument) (domain.EntityDocument, error)
	Get(ctx context.Context, entity string) (domain.EntityDocument, error)
	Delete(ctx context.Context, entity string) (bool, error)
}
