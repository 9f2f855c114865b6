package domain

import "time"

// OrderBy sorts by one declared-sortable column.
type OrderBy struct {
	Field string
	Desc  bool
}

// ListQuery addresses a filtered, ordered, paginated read. Equality
// filters apply to declared-filterable columns; From/To bound the
// entity's timestamp column inclusively.
type ListQuery struct {
	Filters map[string]any
	From    *time.Time
	To      *time.Time
	Order   []OrderBy
	Limit   int
	Offset  int
}

// Validate rejects filter and order columns the schema does not declare.
func (q ListQuery) Validate(schema EntitySchema) error {
	for name := range q.Filters {
		if !schema.IsFilterable(name) {
			return newValidationError(name, "is not filterable")
		}
	}
	for _, o := range q.Order {
		if !schema.IsSortable(o.Field) {
			return newValidationError(o.Field, "is not sortable")
		}
	}
	if (q.From != nil || q.To != nil) && schema.TimeField == "" {
		return newValidationError("", schema.Name+" has no timestamp column to filter on")
	}
	if q.Limit < 0 {
		return newValidationError("limit", "must not be negative")
	}
	if q.Offset < 0 {
		return newValidationError("offset", "must not be negative")
	}
	return nil
}

// Row is one persisted record, keyed by column name.
type Row map[string]any
