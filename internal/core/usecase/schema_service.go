package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tourhive/backoffice/internal/core/domain"
	"github.com/tourhive/backoffice/internal/core/ports"
)

// SchemaService manages optional per-entity JSON Schema documents and
// validates mutation payloads against them. The built-in field rules run
// first; these documents add stricter, admin-configured constraints.
type SchemaService struct {
	repo  ports.EntityDocumentRepository
	cache sync.Map // entity name -> *santhosh.Schema
}

func NewSchemaService(repo ports.EntityDocumentRepository) *SchemaService {
	return &SchemaService{repo: repo}
}

func (s *SchemaService) Upsert(ctx context.Context, entity string, schemaJSON json.RawMessage) (domain.EntityDocument, error) {
	if !json.Valid(schemaJSON) {
		return domain.EntityDocument{}, &domain.ValidationError{Field: "schema", Reason: "must be valid json"}
	}
	if _, err := compileSchema(schemaJSON); err != nil {
		return domain.EntityDocument{}, &domain.ValidationError{Field: "schema", Reason: fmt.Sprintf("invalid json schema: %v", err)}
	}
	s.cache.Delete(entity)
	return s.repo.Upsert(ctx, domain.EntityDocument{Entity: entity, Schema: schemaJSON})
}

func (s *SchemaService) Get(ctx context.Context, entity string) (domain.EntityDocument, error) {
	return s.repo.Get(ctx, entity)
}

func (s *SchemaService) Delete(ctx context.Context, entity string) (bool, error) {
	s.cache.Delete(entity)
	return s.repo.Delete(ctx, entity)
}

// Configured reports whether a schema document exists for the entity.
func (s *SchemaService) Configured(ctx context.Context, entity string) bool {
	if _, ok := s.cache.Load(entity); ok {
		return true
	}
	_, err := s.repo.Get(ctx, entity)
	return err == nil
}

// Validate checks data against the entity's configured schema. Entities
// with no document always pass. Returns *domain.ErrSchemaViolation on
// failure.
func (s *SchemaService) Validate(ctx context.Context, entity string, data json.RawMessage) error {
	if cached, ok := s.cache.Load(entity); ok {
		return runValidation(cached.(*santhosh.Schema), data)
	}

	doc, err := s.repo.Get(ctx, entity)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load entity schema: %w", err)
	}

	compiled, err := compileSchema(doc.Schema)
	if err != nil {
		return fmt.Errorf("compile entity schema: %w", err)
	}
	s.cache.Store(entity, compiled)
	return runValidation(compiled, data)
}

func compileSchema(schemaJSON json.RawMessage) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func runValidation(sch *santhosh.Schema, data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return &domain.ErrSchemaViolation{Errors: collectValidationErrors(ve)}
		}
		return &domain.ErrSchemaViolation{Errors: []string{err.Error()}}
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
