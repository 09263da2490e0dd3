package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	quotedomain "github.com/tollgate-ai/tollgate/internal/quote/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() quotedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, quote *quotedomain.Quote) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO quotes (
			id, workspace_id, api_key_id, invoice_id, provider_host,
			original_amount, original_currency, original_network, pay_to, description,
			treasury_amount, treasury_token, fx_rate, expires_at, consumed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, invoice_id) DO NOTHING`,
		quote.ID,
		quote.WorkspaceID,
		quote.APIKeyID,
		quote.InvoiceID,
		quote.ProviderHost,
		quote.OriginalAmount,
		quote.OriginalCurrency,
		quote.OriginalNetwork,
		quote.PayTo,
		quote.Description,
		quote.TreasuryAmount,
		quote.TreasuryToken,
		quote.FXRate,
		quote.ExpiresAt,
		quote.ConsumedAt,
		quote.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*quotedomain.Quote, error) {
	var quote quotedomain.Quote
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM quotes WHERE id = ? LIMIT 1`,
		id,
	).Scan(&quote).Error
	if err != nil {
		return nil, err
	}
	if quote.ID == 0 {
		return nil, nil
	}
	return &quote, nil
}

func (r *repo) FindByInvoice(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, invoiceID string) (*quotedomain.Quote, error) {
	var quote quotedomain.Quote
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM quotes WHERE workspace_id = ? AND invoice_id = ? LIMIT 1`,
		workspaceID,
		invoiceID,
	).Scan(&quote).Error
	if err != nil {
		return nil, err
	}
	if quote.ID == 0 {
		return nil, nil
	}
	return &quote, nil
}

func (r *repo) DeleteExpired(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, invoiceID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM quotes WHERE workspace_id = ? AND invoice_id = ? AND expires_at < ? AND consumed_at IS NULL`,
		workspaceID,
		invoiceID,
		now,
	).Error
}

func (r *repo) SumReserved(ctx context.Context, db *gorm.DB, apiKeyID snowflake.ID, now time.Time) (int64, error) {
	var row struct {
		Total int64 `gorm:"column:total"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(treasury_amount), 0) AS total
		 FROM quotes
		 WHERE api_key_id = ? AND consumed_at IS NULL AND expires_at > ?`,
		apiKeyID,
		now,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Total, nil
}

func (r *repo) SumReservedByWorkspace(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, now time.Time) (int64, error) {
	var row struct {
		Total int64 `gorm:"column:total"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(treasury_amount), 0) AS total
		 FROM quotes
		 WHERE workspace_id = ? AND consumed_at IS NULL AND expires_at > ?`,
		workspaceID,
		now,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Total, nil
}

func (r *repo) MarkConsumed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE quotes SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		at,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
