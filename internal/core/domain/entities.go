package domain

// Assignment status values accepted for guide and escort assignments.
const (
	StatusConfirmed     = "confirmed"
	StatusExtra         = "extra"
	StatusToBeConfirmed = "to_be_confirmed"
)

var assignmentStatuses = []string{StatusConfirmed, StatusExtra, StatusToBeConfirmed}

// Entities returns the back-office entity registry. Unique constraints are
// enforced by the store's schema; this layer only declares addressing and
// field rules.
func Entities() []EntitySchema {
	return []EntitySchema{
		{
			Name:  "partner_activity_mappings",
			Table: "partner_activity_mappings",
			Fields: []FieldSpec{
				{Name: "partner_id", Required: true, Filterable: true, Sortable: true},
				{Name: "activity_id", Required: true, Filterable: true, Sortable: true},
				{Name: "commission_rate"},
				{Name: "notes"},
			},
			NaturalKey: []string{"partner_id", "activity_id"},
		},
		{
			Name:  "guide_assignments",
			Table: "guide_assignments",
			Fields: []FieldSpec{
				{Name: "guide_id", Required: true, Filterable: true, Sortable: true},
				{Name: "slot_id", Required: true, Filterable: true, Sortable: true},
				{Name: "status", Enum: assignmentStatuses, Default: StatusToBeConfirmed, Filterable: true, Sortable: true},
				{Name: "notes"},
			},
			NaturalKey: []string{"guide_id", "slot_id"},
			TimeField:  "created_at",
		},
		{
			Name:  "escort_assignments",
			Table: "escort_assignments",
			Fields: []FieldSpec{
				{Name: "escort_id", Required: true, Filterable: true, Sortable: true},
				{Name: "slot_id", Required: true, Filterable: true, Sortable: true},
				{Name: "status", Enum: assignmentStatuses, Default: StatusToBeConfirmed, Filterable: true, Sortable: true},
				{Name: "notes"},
			},
			NaturalKey: []string{"escort_id", "slot_id"},
			TimeField:  "created_at",
		},
		{
			Name:  "activity_bookings",
			Table: "activity_bookings",
			Fields: []FieldSpec{
				{Name: "booking_id", Required: true, Filterable: true, Sortable: true},
				{Name: "activity_name", Required: true, Filterable: true, Sortable: true},
				{Name: "status", Enum: []string{"pending", "confirmed", "cancelled", "no_show"}, Default: "pending", Filterable: true, Sortable: true},
				{Name: "pax", Integer: true, Sortable: true},
				{Name: "channel", Filterable: true},
			},
			TimeField: "created_at",
		},
		{
			Name:  "calendar_settings",
			Table: "calendar_settings",
			Fields: []FieldSpec{
				{Name: "calendar_date", Required: true, Filterable: true, Sortable: true},
				{Name: "closed"},
				{Name: "capacity_override", Integer: true},
				{Name: "note"},
			},
		},
		{
			Name:      "push_subscriptions",
			Table:     "push_subscriptions",
			WriteRole: RoleAdmin,
			Fields: []FieldSpec{
				{Name: "endpoint", Required: true, Filterable: true, Sortable: true},
				{Name: "p256dh_key", Required: true},
				{Name: "auth_key", Required: true},
				{Name: "label"},
			},
		},
	}
}

// EntityRegistry indexes schemas by entity name.
func EntityRegistry() map[string]EntitySchema {
	reg := make(map[string]EntitySchema)
	for _, s := range Entities() {
		reg[s.Name] = s
	}
	return reg
}
