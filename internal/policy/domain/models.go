package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AgentPolicy holds per-agent spending rules. Limits are minor units of the
// treasury token; nil means unlimited.
type AgentPolicy struct {
	ID           snowflake.ID   `gorm:"primaryKey"`
	WorkspaceID  snowflake.ID   `gorm:"column:workspace_id;not null;index"`
	APIKeyID     snowflake.ID   `gorm:"column:api_key_id;not null;uniqueIndex"`
	DailyLimit   *int64         `gorm:"column:daily_limit"`
	MonthlyLimit *int64         `gorm:"column:monthly_limit"`
	MaxRequest   *int64         `gorm:"column:max_request"`
	// AllowedProviders is a JSON array of provider hosts. Empty means all.
	AllowedProviders datatypes.JSON `gorm:"column:allowed_providers;type:jsonb"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AgentPolicy) TableName() string { return "agent_policies" }

// WorkspacePolicy caps aggregate spend for a workspace.
type WorkspacePolicy struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	WorkspaceID   snowflake.ID `gorm:"column:workspace_id;not null;uniqueIndex"`
	MonthlyBudget *int64       `gorm:"column:monthly_budget"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (WorkspacePolicy) TableName() string { return "workspace_policies" }

// Service reads policies and derives spend-to-date from the payments table.
// Spend is computed at query time so limits can never drift from the ledger.
// The sums count settled payments and in-flight pending ones; a pending
// payment has already debited the treasury and must hold its amount against
// the limits until it resolves.
type Service interface {
	GetAgentPolicy(ctx context.Context, apiKeyID snowflake.ID) (*AgentPolicy, error)
	GetWorkspacePolicy(ctx context.Context, workspaceID snowflake.ID) (*WorkspacePolicy, error)
	SumAgentSpend(ctx context.Context, apiKeyID snowflake.ID, since time.Time) (int64, error)
	SumWorkspaceSpend(ctx context.Context, workspaceID snowflake.ID, since time.Time) (int64, error)
}

var (
	ErrNotFound = errors.New("policy_not_found")
)
