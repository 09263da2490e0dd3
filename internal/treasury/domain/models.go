package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Balance is the authoritative treasury balance per workspace per token,
// in minor units. It is never negative.
type Balance struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	WorkspaceID snowflake.ID `gorm:"column:workspace_id;not null;uniqueIndex:ux_treasury_workspace_token,priority:1"`
	Token       string       `gorm:"type:text;not null;uniqueIndex:ux_treasury_workspace_token,priority:2"`
	Balance     int64        `gorm:"not null;default:0"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "treasury_balances" }

// DebitResult reports the outcome of a conditional debit.
type DebitResult struct {
	OK         bool
	NewBalance int64
}

// Repository mutates treasury balances. Debits are compare-and-swap updates
// so concurrent debits against one (workspace, token) row serialize at the
// database without cross-workspace locking. All methods accept the handle to
// run on so callers can compose them into a larger transaction.
type Repository interface {
	DebitIfSufficient(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, token string, amount int64) (DebitResult, error)
	Credit(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, token string, amount int64) (int64, error)
	Balance(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, token string) (int64, error)
}

// Service is the non-transactional surface for callers outside the engine.
type Service interface {
	Credit(ctx context.Context, workspaceID snowflake.ID, token string, amount int64) (int64, error)
	Balance(ctx context.Context, workspaceID snowflake.ID, token string) (int64, error)
}

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidToken  = errors.New("invalid_token")
)
