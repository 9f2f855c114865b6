package domain

import "strings"

// FieldSpec declares validation rules for one entity field. Declaration
// order matters: presence checks run over all fields first, then value
// checks, each in the order fields are listed, and the first failure wins.
type FieldSpec struct {
	Name       string
	Required   bool
	Enum       []string
	Default    any
	Integer    bool
	Filterable bool
	Sortable   bool
}

// EntitySchema describes one persisted entity type: its table, its field
// rules, and how rows are addressed. NaturalKey lists the columns that
// together identify a row when no surrogate id is supplied (composite-key
// deletes). TimeField names the timestamp column range filters apply to.
// WriteRole, when set, restricts mutations to principals with that role.
type EntitySchema struct {
	Name       string
	Table      string
	Fields     []FieldSpec
	NaturalKey []string
	TimeField  string
	WriteRole  string
}

func (s EntitySchema) field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// isAbsent reports whether a field value counts as missing for presence
// checks. Empty string and nil are absent; false and 0 are not.
func isAbsent(fields map[string]any, name string) bool {
	v, ok := fields[name]
	if !ok || v == nil {
		return true
	}
	if s, isStr := v.(string); isStr && s == "" {
		return true
	}
	return false
}

// ValidateCreate checks fields against the schema and returns a copy with
// declared defaults applied. Required-presence failures are reported
// before any value failure.
func (s EntitySchema) ValidateCreate(fields map[string]any) (map[string]any, error) {
	for _, f := range s.Fields {
		if f.Required && isAbsent(fields, f.Name) {
			return nil, newValidationError(f.Name, "is required")
		}
	}
	if err := s.checkValues(fields); err != nil {
		return nil, err
	}
	if err := s.checkUnknown(fields); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, f := range s.Fields {
		if f.Default != nil && isAbsent(out, f.Name) {
			out[f.Name] = f.Default
		}
	}
	return out, nil
}

// ValidateUpdate checks a partial field set. Presence is not enforced,
// but a declared-required field cannot be cleared.
func (s EntitySchema) ValidateUpdate(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, newValidationError("", "no fields to update")
	}
	for _, f := range s.Fields {
		if _, ok := fields[f.Name]; !ok {
			continue
		}
		if f.Required && isAbsent(fields, f.Name) {
			return nil, newValidationError(f.Name, "cannot be empty")
		}
	}
	if err := s.checkValues(fields); err != nil {
		return nil, err
	}
	if err := s.checkUnknown(fields); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out, nil
}

// ValidateNaturalKey checks a composite-key address: every declared
// natural-key column must be present and nothing else may be.
func (s EntitySchema) ValidateNaturalKey(key map[string]any) error {
	if len(s.NaturalKey) == 0 {
		return newValidationError("", s.Name+" has no composite key")
	}
	for _, name := range s.NaturalKey {
		if isAbsent(key, name) {
			return newValidationError(name, "is required")
		}
	}
	for name := range key {
		known := false
		for _, k := range s.NaturalKey {
			if k == name {
				known = true
				break
			}
		}
		if !known {
			return newValidationError(name, "is not part of the composite key")
		}
	}
	return nil
}

func (s EntitySchema) checkValues(fields map[string]any) error {
	for _, f := range s.Fields {
		if isAbsent(fields, f.Name) {
			continue
		}
		v := fields[f.Name]
		if len(f.Enum) > 0 {
			str, ok := v.(string)
			if !ok || !contains(f.Enum, str) {
				return newValidationError(f.Name, "must be one of "+strings.Join(f.Enum, ", "))
			}
		}
		if f.Integer && !integral(v) {
			return newValidationError(f.Name, "must be an integer")
		}
	}
	return nil
}

func (s EntitySchema) checkUnknown(fields map[string]any) error {
	for name := range fields {
		if _, ok := s.field(name); !ok {
			return newValidationError(name, "is not a known field")
		}
	}
	return nil
}

// EnumValues returns the accepted values for a field, or nil when the
// field is unconstrained.
func (s EntitySchema) EnumValues(name string) []string {
	f, ok := s.field(name)
	if !ok {
		return nil
	}
	return f.Enum
}

func (s EntitySchema) IsFilterable(name string) bool {
	f, ok := s.field(name)
	return ok && f.Filterable
}

func (s EntitySchema) IsSortable(name string) bool {
	f, ok := s.field(name)
	return ok && f.Sortable
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// integral accepts JSON numbers without a fractional part and native ints.
func integral(v any) bool {
	switch n := v.(type) {
	case float64:
		return n == float64(int64(n))
	case float32:
		return n == float32(int64(n))
	case int, int32, int64, uint, uint32, uint64:
		return true
	default:
		return false
	}
}
