package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tourhive/backoffice/internal/adapters/sqlite/gormsqlite"
	"github.com/tourhive/backoffice/internal/core/domain"
)

type sessionModel struct {
	TokenHash string    `gorm:"column:token_hash;primaryKey"`
	UserID    string    `gorm:"column:user_id;not null"`
	Email     string    `gorm:"column:email;not null"`
	Role      string    `gorm:"column:role;not null"`
	Revoked   bool      `gorm:"column:revoked;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (sessionModel) TableName() string {
	return "sessions"
}

type SessionRepository struct {
	db *gormsqlite.DB
}

func NewSessionRepository(db *gormsqlite.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	var model sessionModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("token_hash = ?", tokenHash).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("find session: %w", err)
	}

	return domain.Session{
		TokenHash: model.TokenHash,
		UserID:    model.UserID,
		Email:     model.Email,
		Role:      model.Role,
		Revoked:   model.Revoked,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
	}, nil
}

func (r *SessionRepository) Upsert(ctx context.Context, session domain.Session) error {
	model := sessionModel{
		TokenHash: session.TokenHash,
		UserID:    session.UserID,
		Email:     session.Email,
		Role:      session.Role,
		Revoked:   session.Revoked,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "email", "role", "revoked", "expires_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Revoke(ctx context.Context, tokenHash string) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&sessionModel{}).
			Where("token_hash = ?", tokenHash).
			Update("revoked", true).Error
	})
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
