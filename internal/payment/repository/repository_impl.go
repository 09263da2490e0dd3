package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/tollgate-ai/tollgate/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) InsertPending(ctx context.Context, db *gorm.DB, payment *paymentdomain.Payment) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, invoice_id, quote_id, workspace_id, api_key_id, provider_host, pay_to,
			original_amount, original_currency, original_network,
			treasury_amount, treasury_token, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (invoice_id) DO NOTHING`,
		payment.ID,
		payment.InvoiceID,
		payment.QuoteID,
		payment.WorkspaceID,
		payment.APIKeyID,
		payment.ProviderHost,
		payment.PayTo,
		payment.OriginalAmount,
		payment.OriginalCurrency,
		payment.OriginalNetwork,
		payment.TreasuryAmount,
		payment.TreasuryToken,
		paymentdomain.StatusPending,
		payment.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payments WHERE id = ? LIMIT 1`,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) FindByInvoiceID(ctx context.Context, db *gorm.DB, invoiceID string) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payments WHERE invoice_id = ? LIMIT 1`,
		invoiceID,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) MarkSettled(ctx context.Context, db *gorm.DB, id snowflake.ID, txHash string, swapRec *paymentdomain.SwapRecord, completedAt time.Time) error {
	if swapRec != nil {
		return db.WithContext(ctx).Exec(
			`UPDATE payments
			 SET status = ?, tx_hash = ?, completed_at = ?,
			     swap_sell_amount = ?, swap_sell_token = ?, swap_buy_amount = ?, swap_buy_token = ?, swap_fee = ?, swap_tx_hash = ?
			 WHERE id = ? AND status = ?`,
			paymentdomain.StatusSettled,
			txHash,
			completedAt,
			swapRec.SellAmount,
			swapRec.SellToken,
			swapRec.BuyAmount,
			swapRec.BuyToken,
			swapRec.Fee,
			swapRec.TxHash,
			id,
			paymentdomain.StatusPending,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, tx_hash = ?, completed_at = ? WHERE id = ? AND status = ?`,
		paymentdomain.StatusSettled,
		txHash,
		completedAt,
		id,
		paymentdomain.StatusPending,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, completedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, failure_reason = ?, completed_at = ? WHERE id = ? AND status = ?`,
		paymentdomain.StatusFailed,
		reason,
		completedAt,
		id,
		paymentdomain.StatusPending,
	).Error
}

func (r *repo) MarkRefundPending(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, swapRec *paymentdomain.SwapRecord, completedAt time.Time) error {
	if swapRec != nil {
		return db.WithContext(ctx).Exec(
			`UPDATE payments
			 SET status = ?, failure_reason = ?, completed_at = ?,
			     swap_sell_amount = ?, swap_sell_token = ?, swap_buy_amount = ?, swap_buy_token = ?, swap_fee = ?, swap_tx_hash = ?
			 WHERE id = ? AND status = ?`,
			paymentdomain.StatusRefundPending,
			reason,
			completedAt,
			swapRec.SellAmount,
			swapRec.SellToken,
			swapRec.BuyAmount,
			swapRec.BuyToken,
			swapRec.Fee,
			swapRec.TxHash,
			id,
			paymentdomain.StatusPending,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, failure_reason = ?, completed_at = ? WHERE id = ? AND status = ?`,
		paymentdomain.StatusRefundPending,
		reason,
		completedAt,
		id,
		paymentdomain.StatusPending,
	).Error
}

func (r *repo) ListStalePending(ctx context.Context, db *gorm.DB, olderThan time.Time) ([]paymentdomain.Payment, error) {
	var payments []paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payments WHERE status = ? AND created_at < ? ORDER BY created_at ASC`,
		paymentdomain.StatusPending,
		olderThan,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) ListByWorkspace(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, limit int) ([]paymentdomain.Payment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var payments []paymentdomain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payments WHERE workspace_id = ? ORDER BY created_at DESC LIMIT ?`,
		workspaceID,
		limit,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
