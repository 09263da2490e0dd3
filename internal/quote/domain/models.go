package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Quote is a short-lived capability to pay one invoice. It is idempotent per
// (workspace, invoice): re-quoting inside the validity window returns the
// existing row. A quote is consumed at most once.
type Quote struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	WorkspaceID      snowflake.ID `gorm:"column:workspace_id;not null;uniqueIndex:ux_quotes_workspace_invoice,priority:1"`
	APIKeyID         snowflake.ID `gorm:"column:api_key_id;not null;index"`
	InvoiceID        string       `gorm:"column:invoice_id;type:text;not null;uniqueIndex:ux_quotes_workspace_invoice,priority:2"`
	ProviderHost     string       `gorm:"column:provider_host;type:text;not null"`
	OriginalAmount   int64        `gorm:"column:original_amount;not null"`
	OriginalCurrency string       `gorm:"column:original_currency;type:text;not null"`
	OriginalNetwork  string       `gorm:"column:original_network;type:text;not null"`
	PayTo            string       `gorm:"column:pay_to;type:text;not null"`
	Description      string       `gorm:"type:text"`
	TreasuryAmount   int64        `gorm:"column:treasury_amount;not null"`
	TreasuryToken    string       `gorm:"column:treasury_token;type:text;not null"`
	FXRate           float64      `gorm:"column:fx_rate;not null"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null"`
	ConsumedAt       *time.Time   `gorm:"column:consumed_at"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Quote) TableName() string { return "quotes" }

func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

type Repository interface {
	// Insert persists a quote unless one already exists for the same
	// (workspace, invoice). Returns false when the existing row won.
	Insert(ctx context.Context, db *gorm.DB, quote *Quote) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quote, error)
	FindByInvoice(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, invoiceID string) (*Quote, error)
	// DeleteExpired removes an expired quote row so the invoice can be
	// re-quoted. Live rows are left untouched.
	DeleteExpired(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, invoiceID string, now time.Time) error
	// MarkConsumed claims the quote for a payment. Returns false if the
	// quote was already consumed.
	MarkConsumed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	// SumReserved totals treasury_amount over the agent's live quotes
	// (unconsumed, unexpired). Live quotes hold their amount against the
	// spending limits until they are paid or expire.
	SumReserved(ctx context.Context, db *gorm.DB, apiKeyID snowflake.ID, now time.Time) (int64, error)
	SumReservedByWorkspace(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, now time.Time) (int64, error)
}
