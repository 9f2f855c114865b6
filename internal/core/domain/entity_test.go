package domain

import (
	"errors"
	"testing"
)

func testSchema() EntitySchema {
	return EntitySchema{
		Name:  "guide_assignments",
		Table: "guide_assignments",
		Fields: []FieldSpec{
			{Name: "guide_id", Required: true, Filterable: true, Sortable: true},
			{Name: "slot_id", Required: true, Filterable: true, Sortable: true},
			{Name: "status", Enum: []string{"confirmed", "extra", "to_be_confirmed"}, Default: "to_be_confirmed"},
			{Name: "pax", Integer: true},
			{Name: "notes"},
		},
		NaturalKey: []string{"guide_id", "slot_id"},
		TimeField:  "created_at",
	}
}

func validationField(t *testing.T, err error) string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return ve.Field
}

func TestValidateCreateRequiredFieldsFirst(t *testing.T) {
	schema := testSchema()

	// slot_id is missing and status is bogus; the presence failure must
	// win because presence checks run before value checks.
	_, err := schema.ValidateCreate(map[string]any{
		"guide_id": "g1",
		"status":   "bogus",
	})
	if got := validationField(t, err); got != "slot_id" {
		t.Fatalf("expected slot_id failure, got %q", got)
	}
}

func TestValidateCreateDeclarationOrderWins(t *testing.T) {
	schema := testSchema()

	_, err := schema.ValidateCreate(map[string]any{})
	if got := validationField(t, err); got != "guide_id" {
		t.Fatalf("expected first declared field to fail, got %q", got)
	}
}

func TestValidateCreateEmptyStringIsAbsent(t *testing.T) {
	schema := testSchema()

	_, err := schema.ValidateCreate(map[string]any{
		"guide_id": "",
		"slot_id":  "s1",
	})
	if got := validationField(t, err); got != "guide_id" {
		t.Fatalf("expected guide_id failure, got %q", got)
	}
}

func TestValidateCreateFalseAndZeroAreNotAbsent(t *testing.T) {
	schema := EntitySchema{
		Name: "flags",
		Fields: []FieldSpec{
			{Name: "enabled", Required: true},
			{Name: "count", Required: true},
		},
	}

	if _, err := schema.ValidateCreate(map[string]any{"enabled": false, "count": 0}); err != nil {
		t.Fatalf("false/zero should satisfy required fields: %v", err)
	}
}

func TestValidateCreateEnumRejection(t *testing.T) {
	schema := testSchema()

	_, err := schema.ValidateCreate(map[string]any{
		"guide_id": "g1",
		"slot_id":  "s1",
		"status":   "bogus",
	})
	if got := validationField(t, err); got != "status" {
		t.Fatalf("expected status failure, got %q", got)
	}
}

func TestValidateCreateAppliesDefaults(t *testing.T) {
	schema := testSchema()

	out, err := schema.ValidateCreate(map[string]any{
		"guide_id": "g1",
		"slot_id":  "s1",
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out["status"] != "to_be_confirmed" {
		t.Fatalf("expected default status, got %v", out["status"])
	}
}

func TestValidateCreateIntegerField(t *testing.T) {
	schema := testSchema()

	base := map[string]any{"guide_id": "g1", "slot_id": "s1"}

	withPax := func(v any) map[string]any {
		fields := map[string]any{"pax": v}
		for k, val := range base {
			fields[k] = val
		}
		return fields
	}

	// JSON numbers decode as float64; whole values pass.
	if _, err := schema.ValidateCreate(withPax(float64(4))); err != nil {
		t.Fatalf("whole float should pass: %v", err)
	}
	if _, err := schema.ValidateCreate(withPax(4.5)); err == nil {
		t.Fatal("fractional value should fail")
	}
	if _, err := schema.ValidateCreate(withPax("four")); err == nil {
		t.Fatal("string value should fail")
	}
}

func TestValidateCreateUnknownField(t *testing.T) {
	schema := testSchema()

	_, err := schema.ValidateCreate(map[string]any{
		"guide_id": "g1",
		"slot_id":  "s1",
		"surprise": 1,
	})
	if got := validationField(t, err); got != "surprise" {
		t.Fatalf("expected surprise failure, got %q", got)
	}
}

func TestValidateUpdateRejectsEmptyAndClearing(t *testing.T) {
	schema := testSchema()

	if _, err := schema.ValidateUpdate(map[string]any{}); err == nil {
		t.Fatal("empty update should fail")
	}
	_, err := schema.ValidateUpdate(map[string]any{"guide_id": ""})
	if got := validationField(t, err); got != "guide_id" {
		t.Fatalf("expected guide_id failure, got %q", got)
	}
}

func TestValidateUpdatePartialEnum(t *testing.T) {
	schema := testSchema()

	if _, err := schema.ValidateUpdate(map[string]any{"status": "confirmed"}); err != nil {
		t.Fatalf("valid enum update: %v", err)
	}
	if _, err := schema.ValidateUpdate(map[string]any{"status": "bogus"}); err == nil {
		t.Fatal("invalid enum update should fail")
	}
}

func TestValidateNaturalKey(t *testing.T) {
	schema := testSchema()

	if err := schema.ValidateNaturalKey(map[string]any{"guide_id": "g1", "slot_id": "s1"}); err != nil {
		t.Fatalf("full key: %v", err)
	}
	if err := schema.ValidateNaturalKey(map[string]any{"guide_id": "g1"}); err == nil {
		t.Fatal("partial key should fail")
	}
	if err := schema.ValidateNaturalKey(map[string]any{"guide_id": "g1", "slot_id": "s1", "extra": "x"}); err == nil {
		t.Fatal("extra column should fail")
	}

	noKey := EntitySchema{Name: "activity_bookings"}
	if err := noKey.ValidateNaturalKey(map[string]any{"a": "b"}); err == nil {
		t.Fatal("entity without composite key should fail")
	}
}

func TestListQueryValidate(t *testing.T) {
	schema := testSchema()

	if err := (ListQuery{Filters: map[string]any{"guide_id": "g1"}}).Validate(schema); err != nil {
		t.Fatalf("filterable column: %v", err)
	}
	if err := (ListQuery{Filters: map[string]any{"notes": "x"}}).Validate(schema); err == nil {
		t.Fatal("non-filterable column should fail")
	}
	if err := (ListQuery{Order: []OrderBy{{Field: "notes"}}}).Validate(schema); err == nil {
		t.Fatal("non-sortable column should fail")
	}
	if err := (ListQuery{Limit: -1}).Validate(schema); err == nil {
		t.Fatal("negative limit should fail")
	}
}

func TestEntityRegistryContainsAssignmentStatuses(t *testing.T) {
	reg := EntityRegistry()
	schema, ok := reg["escort_assignments"]
	if !ok {
		t.Fatal("escort_assignments not registered")
	}
	enum := schema.EnumValues("status")
	if len(enum) != 3 {
		t.Fatalf("expected 3 status values, got %v", enum)
	}
	for _, want := range []string{"confirmed", "extra", "to_be_confirmed"} {
		if !contains(enum, want) {
			t.Fatalf("missing status %q", want)
		}
	}
}
