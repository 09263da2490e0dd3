package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionQuoteDenied          Action = "quote_denied"
	ActionPaymentFailed        Action = "payment_failed"
	ActionReconciliationNeeded Action = "reconciliation_needed"
)

// Record is an append-only audit row. Quote-time policy denials live here,
// not in the payments table; payments only record post-debit outcomes.
type Record struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	WorkspaceID snowflake.ID   `gorm:"column:workspace_id;not null;index"`
	APIKeyID    snowflake.ID   `gorm:"column:api_key_id;not null;index"`
	InvoiceID   string         `gorm:"column:invoice_id;type:text;index"`
	Action      Action         `gorm:"type:text;not null"`
	Reason      string         `gorm:"type:text;not null"`
	Detail      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "audit_records" }

type Service interface {
	Record(ctx context.Context, rec Record) error
}
