package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tourhive/backoffice/internal/core/domain"
)

const dateOnly = "2006-01-02"

// parseListQuery builds a ListQuery from query parameters: equality
// filters on declared-filterable columns, `from`/`to` (or a single
// `date`) bounds on the entity's timestamp column, `order` as a
// comma-separated list with a `-` prefix for descending, and
// `limit`/`offset` paging.
func parseListQuery(r *http.Request, schema domain.EntitySchema) (domain.ListQuery, error) {
	values := r.URL.Query()
	query := domain.ListQuery{Filters: map[string]any{}}

	for _, f := range schema.Fields {
		if !f.Filterable {
			continue
		}
		if raw := values.Get(f.Name); raw != "" {
			query.Filters[f.Name] = raw
		}
	}

	var err error
	if query.Limit, err = intParam(values.Get("limit"), "limit"); err != nil {
		return domain.ListQuery{}, err
	}
	if query.Offset, err = intParam(values.Get("offset"), "offset"); err != nil {
		return domain.ListQuery{}, err
	}

	if raw := values.Get("order"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			order := domain.OrderBy{Field: part}
			if strings.HasPrefix(part, "-") {
				order = domain.OrderBy{Field: part[1:], Desc: true}
			}
			query.Order = append(query.Order, order)
		}
	}

	if raw := values.Get("date"); raw != "" {
		day, parseErr := time.Parse(dateOnly, raw)
		if parseErr != nil {
			return domain.ListQuery{}, &domain.ValidationError{Field: "date", Reason: "must be a YYYY-MM-DD date"}
		}
		from := day
		to := day.Add(24*time.Hour - time.Second)
		query.From = &from
		query.To = &to
		return query, nil
	}

	if raw := values.Get("from"); raw != "" {
		from, parseErr := parseBound(raw, false)
		if parseErr != nil {
			return domain.ListQuery{}, &domain.ValidationError{Field: "from", Reason: "must be a date or RFC 3339 timestamp"}
		}
		query.From = &from
	}
	if raw := values.Get("to"); raw != "" {
		to, parseErr := parseBound(raw, true)
		if parseErr != nil {
			return domain.ListQuery{}, &domain.ValidationError{Field: "to", Reason: "must be a date or RFC 3339 timestamp"}
		}
		query.To = &to
	}

	return query, nil
}

// parseBound accepts a bare date or a full RFC 3339 timestamp. Bare
// dates expand to the start of the day for lower bounds and the last
// second of the day for upper bounds, keeping both ends inclusive.
func parseBound(raw string, upper bool) (time.Time, error) {
	if t, err := time.Parse(dateOnly, raw); err == nil {
		if upper {
			return t.Add(24*time.Hour - time.Second), nil
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return value, nil
}
