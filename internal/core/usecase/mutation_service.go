package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tourhive/backoffice/internal/core/domain"
	"github.com/tourhive/backoffice/internal/core/ports"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// MutationService is the shared validate/execute/audit pipeline behind
// every entity route. Validation failures stop the request before any
// store access; audit recording and outbox enqueueing run after the
// mutation commits and never affect its outcome.
type MutationService struct {
	store  ports.EntityStore
	audit  ports.AuditRepository
	outbox ports.OutboxRepository
	docs   *SchemaService
}

func NewMutationService(store ports.EntityStore, audit ports.AuditRepository, outbox ports.OutboxRepository, docs *SchemaService) *MutationService {
	return &MutationService{store: store, audit: audit, outbox: outbox, docs: docs}
}

func (s *MutationService) Create(ctx context.Context, schema domain.EntitySchema, fields map[string]any, actor domain.Principal, client domain.ClientContext) (domain.Row, error) {
	clean, err := schema.ValidateCreate(fields)
	if err != nil {
		return nil, err
	}
	if err := s.validateDocument(ctx, schema.Name, clean); err != nil {
		return nil, err
	}

	row, err := s.store.Create(ctx, schema, clean)
	if err != nil {
		return nil, err
	}

	s.recordMutation(ctx, schema, "created", rowID(row), nil, row, actor, client)
	return row, nil
}

func (s *MutationService) Get(ctx context.Context, schema domain.EntitySchema, id int64) (domain.Row, error) {
	return s.store.Get(ctx, schema, id)
}

func (s *MutationService) Update(ctx context.Context, schema domain.EntitySchema, id int64, fields map[string]any, actor domain.Principal, client domain.ClientContext) (domain.Row, error) {
	clean, err := schema.ValidateUpdate(fields)
	if err != nil {
		return nil, err
	}
	if err := s.validateMergedDocument(ctx, schema, id, clean); err != nil {
		return nil, err
	}

	old, updated, err := s.store.Update(ctx, schema, id, clean)
	if err != nil {
		return nil, err
	}

	s.recordMutation(ctx, schema, "updated", strconv.FormatInt(id, 10), old, updated, actor, client)
	return updated, nil
}

func (s *MutationService) Delete(ctx context.Context, schema domain.EntitySchema, id int64, actor domain.Principal, client domain.ClientContext) (domain.Row, error) {
	old, err := s.store.Delete(ctx, schema, id)
	if err != nil {
		return nil, err
	}

	s.recordMutation(ctx, schema, "deleted", strconv.FormatInt(id, 10), old, nil, actor, client)
	return old, nil
}

// DeleteByNaturalKey removes the row addressed by the entity's composite
// key, for callers that hold no surrogate id.
func (s *MutationService) DeleteByNaturalKey(ctx context.Context, schema domain.EntitySchema, key map[string]any, actor domain.Principal, client domain.ClientContext) (domain.Row, error) {
	if err := schema.ValidateNaturalKey(key); err != nil {
		return nil, err
	}

	old, err := s.store.DeleteByNaturalKey(ctx, schema, key)
	if err != nil {
		return nil, err
	}

	s.recordMutation(ctx, schema, "deleted", rowID(old), old, nil, actor, client)
	return old, nil
}

// List returns one page of rows plus the total match count, which is
// computed independently of the page bounds.
func (s *MutationService) List(ctx context.Context, schema domain.EntitySchema, query domain.ListQuery) ([]domain.Row, int64, error) {
	if err := query.Validate(schema); err != nil {
		return nil, 0, err
	}
	if query.Limit == 0 {
		query.Limit = defaultPageSize
	}
	if query.Limit > maxPageSize {
		query.Limit = maxPageSize
	}
	return s.store.List(ctx, schema, query)
}

// validateDocument applies the entity's configured JSON schema, if any.
func (s *MutationService) validateDocument(ctx context.Context, entity string, fields map[string]any) error {
	if s.docs == nil {
		return nil
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	return s.docs.Validate(ctx, entity, payload)
}

// validateMergedDocument checks a partial update against the configured
// JSON schema by overlaying the changed fields on the current row. The
// store re-reads the row inside the update transaction, so this read is
// advisory only.
func (s *MutationService) validateMergedDocument(ctx context.Context, schema domain.EntitySchema, id int64, fields map[string]any) error {
	if s.docs == nil || !s.docs.Configured(ctx, schema.Name) {
		return nil
	}
	current, err := s.store.Get(ctx, schema, id)
	if err != nil {
		return err
	}
	merged := make(map[string]any, len(current)+len(fields))
	for _, f := range schema.Fields {
		if v, ok := current[f.Name]; ok {
			merged[f.Name] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return s.validateDocument(ctx, schema.Name, merged)
}

// recordMutation writes the audit row and enqueues the outbox event.
// Failures here are logged and swallowed: the mutation has already
// committed and its response must not depend on the audit subsystem.
func (s *MutationService) recordMutation(ctx context.Context, schema domain.EntitySchema, action, entityID string, old, updated domain.Row, actor domain.Principal, client domain.ClientContext) {
	now := time.Now().UTC()

	entry := domain.AuditEntry{
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Action:     action,
		EntityType: schema.Name,
		EntityID:   entityID,
		OldValue:   marshalRow(old),
		NewValue:   marshalRow(updated),
		ClientIP:   client.IP,
		UserAgent:  client.UserAgent,
		CreatedAt:  now,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		log.Printf("audit record %s %s/%s: %v", action, schema.Name, entityID, err)
	}

	if s.outbox == nil {
		return
	}
	envelope := domain.EventEnvelope{
		EventID:    uuid.NewString(),
		EventType:  schema.Name + "." + action,
		EntityType: schema.Name,
		EntityID:   entityID,
		Actor:      actor.Email,
		OccurredAt: now,
		Payload:    eventPayload(old, updated),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("marshal outbox event %s: %v", envelope.EventID, err)
		return
	}
	err = s.outbox.Enqueue(ctx, domain.OutboxEvent{
		EventID:       envelope.EventID,
		Topic:         "events." + schema.Name + "." + action,
		PayloadJSON:   payload,
		Status:        "pending",
		NextAttemptAt: now,
		CreatedAt:     now,
	})
	if err != nil {
		log.Printf("enqueue outbox event %s: %v", envelope.EventID, err)
	}
}

func eventPayload(old, updated domain.Row) json.RawMessage {
	body := map[string]any{}
	if old != nil {
		body["old"] = old
	}
	if updated != nil {
		body["new"] = updated
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return payload
}

func marshalRow(row domain.Row) json.RawMessage {
	if row == nil {
		return nil
	}
	data, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	return data
}

// rowID renders a row's surrogate key for audit addressing.
func rowID(row domain.Row) string {
	switch v := row["id"].(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case string:
		return v
	default:
		return ""
	}
}
