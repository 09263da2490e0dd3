package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PaymentStatus is the payment state machine. Transitions are monotonic:
// every payment starts pending; it then reaches exactly one of settled,
// failed or refund_pending. Policy denials never create a payment row.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusSettled PaymentStatus = "settled"
	StatusFailed  PaymentStatus = "failed"
	// StatusRefundPending marks a post-debit failure whose compensation
	// could not complete automatically (irreversible swap). Requires
	// manual reconciliation.
	StatusRefundPending PaymentStatus = "refund_pending"
)

// Payment is the durable record of a pay attempt. The engine is its only
// writer. invoice_id is unique, which is what makes Pay idempotent under
// concurrency: of two racing inserts exactly one wins.
type Payment struct {
	ID               snowflake.ID  `gorm:"primaryKey"`
	InvoiceID        string        `gorm:"column:invoice_id;type:text;not null;uniqueIndex:ux_payments_invoice"`
	QuoteID          snowflake.ID  `gorm:"column:quote_id;not null;index"`
	WorkspaceID      snowflake.ID  `gorm:"column:workspace_id;not null;index"`
	APIKeyID         snowflake.ID  `gorm:"column:api_key_id;not null;index"`
	ProviderHost     string        `gorm:"column:provider_host;type:text;not null"`
	PayTo            string        `gorm:"column:pay_to;type:text;not null"`
	OriginalAmount   int64         `gorm:"column:original_amount;not null"`
	OriginalCurrency string        `gorm:"column:original_currency;type:text;not null"`
	OriginalNetwork  string        `gorm:"column:original_network;type:text"`
	TreasuryAmount   int64         `gorm:"column:treasury_amount;not null"`
	TreasuryToken    string        `gorm:"column:treasury_token;type:text;not null"`
	SwapSellAmount   *int64        `gorm:"column:swap_sell_amount"`
	SwapSellToken    *string       `gorm:"column:swap_sell_token;type:text"`
	SwapBuyAmount    *int64        `gorm:"column:swap_buy_amount"`
	SwapBuyToken     *string       `gorm:"column:swap_buy_token;type:text"`
	SwapFee          *int64        `gorm:"column:swap_fee"`
	SwapTxHash       *string       `gorm:"column:swap_tx_hash;type:text"`
	Status           PaymentStatus `gorm:"type:text;not null;index"`
	TxHash           *string       `gorm:"column:tx_hash;type:text"`
	FailureReason    *string       `gorm:"column:failure_reason;type:text"`
	CreatedAt        time.Time     `gorm:"not null"`
	CompletedAt      *time.Time    `gorm:"column:completed_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// SwapRecord carries the executed swap sub-record onto the payment row.
type SwapRecord struct {
	SellAmount int64
	SellToken  string
	BuyAmount  int64
	BuyToken   string
	Fee        int64
	TxHash     string
}

type Repository interface {
	// InsertPending persists a pending payment unless one already exists
	// for the invoice. Returns false when the existing row won.
	InsertPending(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID string) (*Payment, error)
	MarkSettled(ctx context.Context, db *gorm.DB, id snowflake.ID, txHash string, swapRec *SwapRecord, completedAt time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, completedAt time.Time) error
	MarkRefundPending(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, swapRec *SwapRecord, completedAt time.Time) error
	ListStalePending(ctx context.Context, db *gorm.DB, olderThan time.Time) ([]Payment, error)
	ListByWorkspace(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, limit int) ([]Payment, error)
}
