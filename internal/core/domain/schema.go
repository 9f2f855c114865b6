package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrSchemaViolation is returned when a payload passes the built-in field
// rules but fails the entity's configured JSON schema. The Errors field
// contains machine-readable details.
type ErrSchemaViolation struct {
	Errors []string
}

func (e *ErrSchemaViolation) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Errors, "; "))
}

// EntityDocument holds an optional JSON Schema document configured for an
// entity type, applied on top of the declarative field rules.
type EntityDocument struct {
	Entity    string
	Schema    json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
