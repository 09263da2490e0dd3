package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// APIKey stores hashed agent credentials scoped to a workspace.
type APIKey struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	WorkspaceID snowflake.ID `gorm:"column:workspace_id;not null;index"`
	KeyID       string       `gorm:"column:key_id;type:text;not null;uniqueIndex"`
	Name        string       `gorm:"type:text;not null"`
	KeyHash     string       `gorm:"column:key_hash;type:text;not null;uniqueIndex"`
	IsActive    bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastUsedAt  *time.Time   `gorm:"column:last_used_at"`
	ExpiresAt   *time.Time   `gorm:"column:expires_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// Identity is the resolved caller of an engine operation.
type Identity struct {
	APIKeyID    snowflake.ID
	WorkspaceID snowflake.ID
	Active      bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*APIKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

var (
	ErrNotFound = errors.New("api_key_not_found")
)
