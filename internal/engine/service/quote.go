package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/tollgate-ai/tollgate/internal/audit/domain"
	enginedomain "github.com/tollgate-ai/tollgate/internal/engine/domain"
	policydomain "github.com/tollgate-ai/tollgate/internal/policy/domain"
	quotedomain "github.com/tollgate-ai/tollgate/internal/quote/domain"
	"github.com/tollgate-ai/tollgate/internal/rates"
	"go.uber.org/zap"
)

// Quote runs the policy checks for an invoice and, when they pass, mints a
// short-lived quote. Quoting has no effect on the treasury: the quote is a
// capability, not a ledger event. Re-quoting the same invoice inside the
// validity window returns the existing quote so retries don't double-count.
func (s *Service) Quote(ctx context.Context, req enginedomain.QuoteRequest) (*enginedomain.QuoteResult, error) {
	caller, err := s.identityFromContext(ctx)
	if err != nil {
		return nil, err
	}

	inv := req.Invoice
	inv.InvoiceID = strings.TrimSpace(inv.InvoiceID)
	inv.Currency = strings.ToUpper(strings.TrimSpace(inv.Currency))
	if inv.InvoiceID == "" || inv.Amount == "" || inv.Currency == "" || strings.TrimSpace(inv.PayTo) == "" {
		return nil, fmt.Errorf("%w: invoice fields missing", rates.ErrInvalidAmount)
	}

	now := s.clock.Now()

	key, err := s.apiKeyRepo.FindByID(ctx, s.db, caller.APIKeyID)
	if err != nil {
		return nil, err
	}
	if key == nil || !key.IsActive || (key.ExpiresAt != nil && key.ExpiresAt.Before(now)) {
		return s.deny(ctx, caller, inv, enginedomain.ReasonAgentDisabled)
	}

	policy, err := s.policySvc.GetAgentPolicy(ctx, caller.APIKeyID)
	if err != nil {
		if !errors.Is(err, policydomain.ErrNotFound) {
			return nil, err
		}
		// A missing policy row means no limits are configured.
		policy = nil
	}
	if policy != nil && !policy.IsActive {
		return s.deny(ctx, caller, inv, enginedomain.ReasonAgentDisabled)
	}

	host := providerHost(inv)
	if policy != nil && !policy.ProviderAllowed(host) {
		return s.deny(ctx, caller, inv, enginedomain.ReasonProviderNotAllowed)
	}

	// Idempotent re-quote: a live quote for this invoice wins over a fresh
	// evaluation, so a retried Quote cannot mint duplicates. A consumed
	// quote is never re-issued; the invoice already has a payment attempt
	// behind it.
	if existing, err := s.quoteRepo.FindByInvoice(ctx, s.db, caller.WorkspaceID, inv.InvoiceID); err != nil {
		return nil, err
	} else if existing != nil {
		if result := liveQuoteResult(existing, now); result != nil {
			s.recordQuote(true, "")
			return result, nil
		}
		if existing.ConsumedAt != nil {
			return nil, enginedomain.NewError(enginedomain.ReasonTransactionFailed, "invoice already has a payment attempt")
		}
		if err := s.quoteRepo.DeleteExpired(ctx, s.db, caller.WorkspaceID, inv.InvoiceID, now); err != nil {
			return nil, err
		}
	}

	originalMinor, err := rates.ParseAmount(inv.Currency, inv.Amount)
	if err != nil {
		return nil, err
	}

	treasuryAmount, fxRate, err := s.resolver.ToTreasury(ctx, inv.Currency, originalMinor)
	if err != nil {
		return nil, err
	}

	if policy != nil && policy.MaxRequest != nil && treasuryAmount > *policy.MaxRequest {
		return s.deny(ctx, caller, inv, enginedomain.ReasonAgentRequestLimit)
	}

	// Outstanding live quotes reserve their amount against the limits.
	// Without the reservation, two quotes issued back to back would each
	// see the pre-spend sum and both settle past the threshold.
	var reserved int64
	if policy != nil && (policy.DailyLimit != nil || policy.MonthlyLimit != nil) {
		reserved, err = s.quoteRepo.SumReserved(ctx, s.db, caller.APIKeyID, now)
		if err != nil {
			return nil, err
		}
	}

	if policy != nil && policy.DailyLimit != nil {
		spent, err := s.policySvc.SumAgentSpend(ctx, caller.APIKeyID, startOfDay(now))
		if err != nil {
			return nil, err
		}
		if spent+reserved+treasuryAmount > *policy.DailyLimit {
			return s.deny(ctx, caller, inv, enginedomain.ReasonAgentDailyLimit)
		}
	}

	if policy != nil && policy.MonthlyLimit != nil {
		spent, err := s.policySvc.SumAgentSpend(ctx, caller.APIKeyID, startOfMonth(now))
		if err != nil {
			return nil, err
		}
		if spent+reserved+treasuryAmount > *policy.MonthlyLimit {
			return s.deny(ctx, caller, inv, enginedomain.ReasonAgentMonthlyLimit)
		}
	}

	workspacePolicy, err := s.policySvc.GetWorkspacePolicy(ctx, caller.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if workspacePolicy != nil && workspacePolicy.MonthlyBudget != nil {
		spent, err := s.policySvc.SumWorkspaceSpend(ctx, caller.WorkspaceID, startOfMonth(now))
		if err != nil {
			return nil, err
		}
		wsReserved, err := s.quoteRepo.SumReservedByWorkspace(ctx, s.db, caller.WorkspaceID, now)
		if err != nil {
			return nil, err
		}
		if spent+wsReserved+treasuryAmount > *workspacePolicy.MonthlyBudget {
			return s.deny(ctx, caller, inv, enginedomain.ReasonWorkspaceBudget)
		}
	}

	minted := &quotedomain.Quote{
		ID:               s.genID.Generate(),
		WorkspaceID:      caller.WorkspaceID,
		APIKeyID:         caller.APIKeyID,
		InvoiceID:        inv.InvoiceID,
		ProviderHost:     host,
		OriginalAmount:   originalMinor,
		OriginalCurrency: inv.Currency,
		OriginalNetwork:  strings.TrimSpace(inv.Network),
		PayTo:            strings.TrimSpace(inv.PayTo),
		Description:      strings.TrimSpace(inv.Description),
		TreasuryAmount:   treasuryAmount,
		TreasuryToken:    s.resolver.TreasuryToken(),
		FXRate:           fxRate,
		ExpiresAt:        now.Add(s.cfg.QuoteTTL),
		CreatedAt:        now,
	}

	inserted, err := s.quoteRepo.Insert(ctx, s.db, minted)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost a race with a concurrent Quote for the same invoice. Only
		// a still-live quote may be handed back; a consumed or expired
		// row is not a valid capability.
		existing, err := s.quoteRepo.FindByInvoice(ctx, s.db, caller.WorkspaceID, inv.InvoiceID)
		if err != nil {
			return nil, err
		}
		if result := liveQuoteResult(existing, now); result != nil {
			s.recordQuote(true, "")
			return result, nil
		}
		return nil, enginedomain.NewError(enginedomain.ReasonTransactionFailed, "invoice already has a payment attempt")
	}

	s.log.Info("quote minted",
		zap.String("quote_id", minted.ID.String()),
		zap.String("invoice_id", inv.InvoiceID),
		zap.String("provider_host", host),
		zap.Int64("treasury_amount", treasuryAmount),
	)
	s.recordQuote(true, "")
	return &enginedomain.QuoteResult{Allowed: true, QuoteID: minted.ID.String()}, nil
}

// liveQuoteResult returns the re-issuable result for an existing quote, or
// nil when the quote is expired or already consumed.
func liveQuoteResult(q *quotedomain.Quote, now time.Time) *enginedomain.QuoteResult {
	if q == nil || q.Expired(now) || q.ConsumedAt != nil {
		return nil
	}
	return &enginedomain.QuoteResult{Allowed: true, QuoteID: q.ID.String()}
}

func (s *Service) deny(ctx context.Context, caller identity, inv enginedomain.Invoice, reason string) (*enginedomain.QuoteResult, error) {
	// Denials are audit-only: no payment row is ever written for a
	// quote-time rejection.
	_ = s.auditSvc.Record(ctx, auditdomain.Record{
		WorkspaceID: caller.WorkspaceID,
		APIKeyID:    caller.APIKeyID,
		InvoiceID:   inv.InvoiceID,
		Action:      auditdomain.ActionQuoteDenied,
		Reason:      reason,
	})
	s.recordQuote(false, reason)
	return &enginedomain.QuoteResult{
		Allowed: false,
		Reason:  reason,
		Message: denialMessage(reason),
	}, nil
}

func (s *Service) recordQuote(allowed bool, reason string) {
	if s.metrics != nil {
		s.metrics.RecordQuote(allowed, reason)
	}
}
