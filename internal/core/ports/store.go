package ports

import (
	"context"

	"github.com/tourhive/backoffice/internal/core/domain"
)

// EntityStore performs table-addressed CRUD for registered entities.
// Update and Delete return the prior row so callers can audit it; both
// run the pre-read and the write in one transaction. Uniqueness
// violations surface as domain.ErrConflict, missing rows as
// domain.ErrNotFound.
type EntityStore interface {
	Create(ctx context.Context, schema domain.EntitySchema, fields map[string]any) (domain.Row, error)
	Get(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error)
	Update(ctx context.Context, schema domain.EntitySchema, id int64, fields map[string]any) (old, updated domain.Row, err error)
	Delete(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error)
	DeleteByNaturalKey(ctx context.Context, schema domain.EntitySchema, key map[string]any) (domain.Row, error)
	List(ctx context.Context, schema domain.EntitySchema, query domain.ListQuery) ([]domain.Row, int64, error)
}
