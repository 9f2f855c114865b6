package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tourhive/backoffice/internal/adapters/sqlite/gormsqlite"
	"github.com/tourhive/backoffice/internal/core/domain"
)

type entityDocumentModel struct {
	Entity     string    `gorm:"column:entity;primaryKey"`
	SchemaJSON string    `gorm:"column:schema_json;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (entityDocumentModel) TableName() string {
	return "entity_schemas"
}

type SchemaRepository struct {
	db *gormsqlite.DB
}

func NewSchemaRepository(db *gormsqlite.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

func (r *SchemaRepository) Upsert(ctx context.Context, doc domain.EntityDocument) (domain.EntityDocument, error) {
	now := time.Now().UTC()
	model := entityDocumentModel{
		Entity:     doc.Entity,
		SchemaJSON: string(doc.Schema),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var out domain.EntityDocument
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity"}},
			DoUpdates: clause.AssignmentColumns([]string{"schema_json", "updated_at"}),
		}).Create(&model).Error
		if err != nil {
			return fmt.Errorf("upsert entity schema: %w", err)
		}

		var saved entityDocumentModel
		if err := tx.Where("entity = ?", doc.Entity).First(&saved).Error; err != nil {
			return fmt.Errorf("load upserted entity schema: %w", err)
		}
		out = toDocumentDomain(saved)
		return nil
	})
	if err != nil {
		return domain.EntityDocument{}, err
	}
	return out, nil
}

func (r *SchemaRepository) Get(ctx context.Context, entity string) (domain.EntityDocument, error) {
	var model entityDocumentModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("entity = ?", entity).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EntityDocument{}, domain.ErrNotFound
		}
		return domain.EntityDocument{}, fmt.Errorf("get entity schema: %w", err)
	}
	return toDocumentDomain(model), nil
}

func (r *SchemaRepository) Delete(ctx context.Context, entity string) (bool, error) {
	deleted := false
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("entity = ?", entity).Delete(&entityDocumentModel{})
		if res.Error != nil {
			return fmt.Errorf("delete entity schema: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func toDocumentDomain(model entityDocumentModel) domain.EntityDocument {
	return domain.EntityDocument{
		Entity:    model.Entity,
		Schema:    json.RawMessage(model.SchemaJSON),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
