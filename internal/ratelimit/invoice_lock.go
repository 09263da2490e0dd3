package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tollgate-ai/tollgate/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyInvoicePayLock = "pay:invoice:lock:%d:%s"

// InvoiceLocker serializes Pay calls per (workspace, invoice) across gateway
// replicas. It is an optimization that keeps racing callers from both
// reaching the settlement adapters; the payments table unique constraint
// remains the authoritative gate. Disabled when redis is not configured.
type InvoiceLocker struct {
	enabled bool
	locker  *Locker
	lockTTL time.Duration
}

func NewInvoiceLocker(cfg config.Config) *InvoiceLocker {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return &InvoiceLocker{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &InvoiceLocker{
		enabled: true,
		locker:  NewLocker(client),
		lockTTL: cfg.AdapterTimeout + 5*time.Second,
	}
}

func (l *InvoiceLocker) Enabled() bool {
	return l != nil && l.enabled
}

func (l *InvoiceLocker) TryLock(ctx context.Context, workspaceID int64, invoiceID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyInvoicePayLock, workspaceID, strings.TrimSpace(invoiceID))
	return l.locker.TryLock(ctx, key, l.lockTTL)
}

func (l *InvoiceLocker) Release(ctx context.Context, workspaceID int64, invoiceID, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyInvoicePayLock, workspaceID, strings.TrimSpace(invoiceID))
	return l.locker.Release(ctx, key, token)
}
