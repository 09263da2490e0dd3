package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	treasurydomain "github.com/tollgate-ai/tollgate/internal/treasury/domain"
	"gorm.io/gorm"
)

type repo struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) treasurydomain.Repository {
	return &repo{genID: genID}
}

func (r *repo) DebitIfSufficient(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, token string, amount int64) (treasurydomain.DebitResult, error) {
	if amount <= 0 {
		return treasurydomain.DebitResult{}, treasurydomain.ErrInvalidAmount
	}
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return treasurydomain.DebitResult{}, treasurydomain.ErrInvalidToken
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE treasury_balances
		 SET balance = balance - ?, updated_at = ?
		 WHERE workspace_id = ? AND token = ? AND balance >= ?`,
		amount,
		time.Now().UTC(),
		workspaceID,
		token,
		amount,
	)
	if result.Error != nil {
		return treasurydomain.DebitResult{}, result.Error
	}
	if result.RowsAffected == 0 {
		return treasurydomain.DebitResult{OK: false}, nil
	}

	balance, err := r.Balance(ctx, db, workspaceID, token)
	if err != nil {
		return treasurydomain.DebitResult{}, err
	}
	return treasurydomain.DebitResult{OK: true, NewBalance: balance}, nil
}

func (r *repo) Credit(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, token string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, treasurydomain.ErrInvalidAmount
	}
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return 0, treasurydomain.ErrInvalidToken
	}

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO treasury_balances (id, workspace_id, token, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workspace_id, token)
		 DO UPDATE SET balance = treasury_balances.balance + excluded.balance, updated_at = excluded.updated_at`,
		r.genID.Generate(),
		workspaceID,
		token,
		amount,
		now,
		now,
	).Error; err != nil {
		return 0, err
	}

	return r.Balance(ctx, db, workspaceID, token)
}

func (r *repo) Balance(ctx context.Context, db *gorm.DB, workspaceID snowflake.ID, token string) (int64, error) {
	var row struct {
		Balance int64 `gorm:"column:balance"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT balance FROM treasury_balances WHERE workspace_id = ? AND token = ? LIMIT 1`,
		workspaceID,
		strings.ToUpper(strings.TrimSpace(token)),
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Balance, nil
}
