package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tourhive/backoffice/internal/adapters/sqlite/gormsqlite"
	"github.com/tourhive/backoffice/internal/core/domain"
)

// EntityStore implements generic table-addressed CRUD for the registered
// back-office entities. Table and column names come from the entity
// registry, never from request input.
type EntityStore struct {
	db *gormsqlite.DB
}

func NewEntityStore(db *gormsqlite.DB) *EntityStore {
	return &EntityStore{db: db}
}

func (s *EntityStore) Create(ctx context.Context, schema domain.EntitySchema, fields map[string]any) (domain.Row, error) {
	now := time.Now().UTC()
	row := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		row[k] = v
	}
	row["created_at"] = now
	row["updated_at"] = now

	var created domain.Row
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Table(schema.Table).Create(row).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return fmt.Errorf("insert %s: %w", schema.Name, err)
		}

		var id int64
		if err := tx.Raw("SELECT last_insert_rowid()").Scan(&id).Error; err != nil {
			return fmt.Errorf("resolve %s insert id: %w", schema.Name, err)
		}

		loaded, err := loadRow(tx, schema.Table, "id = ?", id)
		if err != nil {
			return fmt.Errorf("load inserted %s: %w", schema.Name, err)
		}
		created = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *EntityStore) Get(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error) {
	var row domain.Row
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		loaded, err := loadRow(tx, schema.Table, "id = ?", id)
		if err != nil {
			return err
		}
		row = loaded
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", schema.Name, err)
	}
	return row, nil
}

// Update reads the prior row and applies the changes in one transaction,
// so the returned old snapshot is the row the update actually replaced.
func (s *EntityStore) Update(ctx context.Context, schema domain.EntitySchema, id int64, fields map[string]any) (domain.Row, domain.Row, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = time.Now().UTC()

	var old, updated domain.Row
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		prior, err := loadRow(tx, schema.Table, "id = ?", id)
		if err != nil {
			return err
		}
		old = prior

		if err := tx.Table(schema.Table).Where("id = ?", id).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return fmt.Errorf("update %s %d: %w", schema.Name, id, err)
		}

		after, err := loadRow(tx, schema.Table, "id = ?", id)
		if err != nil {
			return fmt.Errorf("load updated %s %d: %w", schema.Name, id, err)
		}
		updated = after
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return old, updated, nil
}

// Delete removes a row by surrogate id, returning the prior row for
// audit use. The pre-read and the delete share one transaction.
func (s *EntityStore) Delete(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error) {
	var old domain.Row
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		prior, err := loadRow(tx, schema.Table, "id = ?", id)
		if err != nil {
			return err
		}
		old = prior

		if err := tx.Exec("DELETE FROM "+schema.Table+" WHERE id = ?", id).Error; err != nil {
			return fmt.Errorf("delete %s %d: %w", schema.Name, id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

// DeleteByNaturalKey removes the row addressed by the entity's composite
// key columns.
func (s *EntityStore) DeleteByNaturalKey(ctx context.Context, schema domain.EntitySchema, key map[string]any) (domain.Row, error) {
	conds := make([]string, 0, len(schema.NaturalKey))
	args := make([]any, 0, len(schema.NaturalKey))
	for _, col := range schema.NaturalKey {
		conds = append(conds, col+" = ?")
		args = append(args, key[col])
	}
	where := strings.Join(conds, " AND ")

	var old domain.Row
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		prior, err := loadRow(tx, schema.Table, where, args...)
		if err != nil {
			return err
		}
		old = prior

		if err := tx.Exec("DELETE FROM "+schema.Table+" WHERE "+where, args...).Error; err != nil {
			return fmt.Errorf("delete %s by natural key: %w", schema.Name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}

// List returns one page of rows and the total match count. The count is
// taken from the same conditions but ignores the page bounds.
func (s *EntityStore) List(ctx context.Context, schema domain.EntitySchema, query domain.ListQuery) ([]domain.Row, int64, error) {
	var (
		rows  []map[string]any
		total int64
	)
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		base := func() *gorm.DB {
			q := tx.Table(schema.Table)
			for name, value := range query.Filters {
				q = q.Where(schema.Table+"."+name+" = ?", value)
			}
			if query.From != nil {
				q = q.Where(schema.TimeField+" >= ?", *query.From)
			}
			if query.To != nil {
				q = q.Where(schema.TimeField+" <= ?", *query.To)
			}
			return q
		}

		if err := base().Count(&total).Error; err != nil {
			return fmt.Errorf("count %s: %w", schema.Name, err)
		}

		return base().
			Order(orderClause(query.Order)).
			Limit(query.Limit).
			Offset(query.Offset).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", schema.Name, err)
	}

	result := make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		result = append(result, normalizeRow(row))
	}
	return result, total, nil
}

// orderClause renders the requested ordering with a trailing id tiebreak
// so pages stay disjoint under pagination.
func orderClause(order []domain.OrderBy) string {
	parts := make([]string, 0, len(order)+1)
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, o.Field+" "+dir)
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", ")
}

func loadRow(tx *gormsqlite.Tx, table, where string, args ...any) (domain.Row, error) {
	row := map[string]any{}
	err := tx.Table(table).Where(where, args...).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return normalizeRow(row), nil
}

// normalizeRow makes scanned values JSON-friendly: byte slices become
// strings, everything else passes through.
func normalizeRow(row map[string]any) domain.Row {
	out := make(domain.Row, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			out[k] = string(b)
			continue
		}
		out[k] = v
	}
	return out
}

// isUniqueViolation detects the store's duplicate-key signal. The modernc
// driver bypasses gorm's error translator, so the message text is checked
// alongside the translated sentinel.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
