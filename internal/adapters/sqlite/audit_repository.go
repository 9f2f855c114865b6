package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tourhive/backoffice/internal/adapters/sqlite/gormsqlite"
	"github.com/tourhive/backoffice/internal/core/domain"
	"gorm.io/gorm"
)

type auditModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ActorID    string    `gorm:"column:actor_id;not null"`
	ActorEmail string    `gorm:"column:actor_email;not null"`
	Action     string    `gorm:"column:action;not null"`
	EntityType string    `gorm:"column:entity_type;not null"`
	EntityID   string    `gorm:"column:entity_id;not null"`
	OldValue   string    `gorm:"column:old_value"`
	NewValue   string    `gorm:"column:new_value"`
	ClientIP   string    `gorm:"column:client_ip"`
	UserAgent  string    `gorm:"column:user_agent"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (auditModel) TableName() string {
	return "audit_log"
}

// AuditRepository persists and lists audit entries. Rows are only ever
// inserted; nothing in this codebase updates or deletes them.
type AuditRepository struct {
	db *gormsqlite.DB
}

func NewAuditRepository(db *gormsqlite.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, entry domain.AuditEntry) error {
	model := auditModel{
		ActorID:    entry.ActorID,
		ActorEmail: entry.ActorEmail,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		OldValue:   string(entry.OldValue),
		NewValue:   string(entry.NewValue),
		ClientIP:   entry.ClientIP,
		UserAgent:  entry.UserAgent,
		CreatedAt:  entry.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	var (
		rows  []auditModel
		total int64
	)
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		base := func() *gorm.DB {
			q := tx.Model(&auditModel{})
			if filter.EntityType != "" {
				q = q.Where("entity_type = ?", filter.EntityType)
			}
			if filter.EntityID != "" {
				q = q.Where("entity_id = ?", filter.EntityID)
			}
			if filter.Action != "" {
				q = q.Where("action = ?", filter.Action)
			}
			if filter.ActorID != "" {
				q = q.Where("actor_id = ?", filter.ActorID)
			}
			return q
		}

		if err := base().Count(&total).Error; err != nil {
			return err
		}
		return base().Order("id DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&rows).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}

	result := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.AuditEntry{
			ID:         row.ID,
			ActorID:    row.ActorID,
			ActorEmail: row.ActorEmail,
			Action:     row.Action,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			OldValue:   json.RawMessage(row.OldValue),
			NewValue:   json.RawMessage(row.NewValue),
			ClientIP:   row.ClientIP,
			UserAgent:  row.UserAgent,
			CreatedAt:  row.CreatedAt,
		})
	}
	return result, total, nil
}
