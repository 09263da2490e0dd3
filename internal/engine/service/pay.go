package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/tollgate-ai/tollgate/internal/audit/domain"
	enginedomain "github.com/tollgate-ai/tollgate/internal/engine/domain"
	paymentdomain "github.com/tollgate-ai/tollgate/internal/payment/domain"
	quotedomain "github.com/tollgate-ai/tollgate/internal/quote/domain"
	"github.com/tollgate-ai/tollgate/internal/settlement"
	"github.com/tollgate-ai/tollgate/internal/swap"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errPaymentConflict     = errors.New("payment_conflict")
	errInsufficientBalance = errors.New("insufficient_balance")
)

// Pay redeems a quote: it debits the treasury, runs the optional swap, and
// settles to the provider. Exactly one payment can ever settle per invoice;
// a replayed Pay for a settled invoice returns the recorded result.
func (s *Service) Pay(ctx context.Context, req enginedomain.PayRequest) (*enginedomain.PayResult, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObservePayDuration(time.Since(start).Seconds())
		}
	}()

	caller, err := s.identityFromContext(ctx)
	if err != nil {
		return nil, err
	}

	quoteID, err := snowflake.ParseString(req.QuoteID)
	if err != nil {
		return nil, enginedomain.NewError(enginedomain.ReasonQuoteNotFound, "quote not found")
	}

	q, err := s.quoteRepo.FindByID(ctx, s.db, quoteID)
	if err != nil {
		return nil, err
	}
	if q == nil || q.WorkspaceID != caller.WorkspaceID || q.APIKeyID != caller.APIKeyID {
		return nil, enginedomain.NewError(enginedomain.ReasonQuoteNotFound, "quote not found")
	}

	// Idempotency gate. A settled payment replays; anything else for the
	// same invoice refuses rather than racing it.
	if result, err := s.replayExisting(ctx, q); result != nil || err != nil {
		return result, err
	}

	now := s.clock.Now()
	if q.Expired(now) {
		return nil, enginedomain.NewError(enginedomain.ReasonQuoteExpired, "quote has expired")
	}

	lockToken, locked, err := s.invoiceLocker.TryLock(ctx, int64(caller.WorkspaceID), q.InvoiceID)
	if err != nil {
		s.log.Warn("invoice lock unavailable, relying on database gate", zap.Error(err))
	} else if !locked {
		return nil, enginedomain.NewError(enginedomain.ReasonTransactionFailed, "payment for this invoice is already in progress")
	} else {
		defer func() {
			_ = s.invoiceLocker.Release(context.WithoutCancel(ctx), int64(caller.WorkspaceID), q.InvoiceID, lockToken)
		}()
	}

	payment := &paymentdomain.Payment{
		ID:               s.genID.Generate(),
		InvoiceID:        q.InvoiceID,
		QuoteID:          q.ID,
		WorkspaceID:      q.WorkspaceID,
		APIKeyID:         q.APIKeyID,
		ProviderHost:     q.ProviderHost,
		PayTo:            q.PayTo,
		OriginalAmount:   q.OriginalAmount,
		OriginalCurrency: q.OriginalCurrency,
		OriginalNetwork:  q.OriginalNetwork,
		TreasuryAmount:   q.TreasuryAmount,
		TreasuryToken:    q.TreasuryToken,
		Status:           paymentdomain.StatusPending,
		CreatedAt:        now,
	}

	// The pending row and the conditional debit commit together: either the
	// payment exists with funds held, or nothing happened at all.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumed, err := s.quoteRepo.MarkConsumed(ctx, tx, q.ID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return errPaymentConflict
		}

		inserted, err := s.paymentRepo.InsertPending(ctx, tx, payment)
		if err != nil {
			return err
		}
		if !inserted {
			return errPaymentConflict
		}

		debit, err := s.treasuryRepo.DebitIfSufficient(ctx, tx, q.WorkspaceID, q.TreasuryToken, q.TreasuryAmount)
		if err != nil {
			return err
		}
		if !debit.OK {
			return errInsufficientBalance
		}
		return nil
	})
	switch {
	case errors.Is(err, errPaymentConflict):
		if result, replayErr := s.replayExisting(ctx, q); result != nil || replayErr != nil {
			return result, replayErr
		}
		return nil, enginedomain.NewError(enginedomain.ReasonTransactionFailed, "payment for this invoice is already in progress")
	case errors.Is(err, errInsufficientBalance):
		return nil, enginedomain.NewError(enginedomain.ReasonInsufficientBalance, "treasury balance is insufficient")
	case err != nil:
		return nil, err
	}

	return s.execute(ctx, q, payment)
}

// replayExisting implements the idempotency gate over prior payments for the
// quote's invoice. It returns (nil, nil) when no payment exists yet.
func (s *Service) replayExisting(ctx context.Context, q *quotedomain.Quote) (*enginedomain.PayResult, error) {
	existing, err := s.paymentRepo.FindByInvoiceID(ctx, s.db, q.InvoiceID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	switch existing.Status {
	case paymentdomain.StatusSettled:
		completedAt := existing.CreatedAt
		if existing.CompletedAt != nil {
			completedAt = *existing.CompletedAt
		}
		token, err := s.proofCodec.Mint(existing.ID, existing.WorkspaceID, existing.InvoiceID, completedAt)
		if err != nil {
			return nil, err
		}
		txHash := ""
		if existing.TxHash != nil {
			txHash = *existing.TxHash
		}
		return &enginedomain.PayResult{
			PaymentID: existing.ID.String(),
			InvoiceID: existing.InvoiceID,
			TxHash:    txHash,
			Proof:     token,
		}, nil
	case paymentdomain.StatusPending:
		return nil, enginedomain.NewError(enginedomain.ReasonTransactionFailed, "payment for this invoice is already in progress")
	default:
		// failure_reason holds the reason code of the original failure.
		reason := enginedomain.ReasonTransactionFailed
		if existing.FailureReason != nil && *existing.FailureReason != "" {
			reason = *existing.FailureReason
		}
		return nil, enginedomain.NewError(reason, "a previous payment attempt for this invoice failed")
	}
}

// execute runs the post-debit part of Pay: optional swap, then settlement.
// Any failure past this point compensates the treasury before reporting.
func (s *Service) execute(ctx context.Context, q *quotedomain.Quote, payment *paymentdomain.Payment) (*enginedomain.PayResult, error) {
	var swapRec *paymentdomain.SwapRecord
	var swapResult swap.Result
	swapped := false

	settleToken := q.TreasuryToken
	settleAmount := q.TreasuryAmount

	if q.OriginalCurrency != q.TreasuryToken {
		err := s.swapCaller.Do(ctx, func(callCtx context.Context) error {
			var swapErr error
			swapResult, swapErr = s.swapAdapter.Swap(callCtx, swap.Request{
				WorkspaceID: q.WorkspaceID,
				SellToken:   q.TreasuryToken,
				SellAmount:  q.TreasuryAmount,
				BuyToken:    q.OriginalCurrency,
			})
			return swapErr
		})
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordAdapterFailure("swap")
			}
			s.compensate(ctx, payment, enginedomain.ReasonWalletError, "token swap failed")
			return nil, enginedomain.NewError(enginedomain.ReasonWalletError, "token swap failed")
		}
		swapped = true
		swapRec = &paymentdomain.SwapRecord{
			SellAmount: swapResult.SellAmount,
			SellToken:  swapResult.SellToken,
			BuyAmount:  swapResult.BuyAmount,
			BuyToken:   swapResult.BuyToken,
			Fee:        swapResult.Fee,
			TxHash:     swapResult.TxHash,
		}
		settleToken = swapResult.BuyToken
		settleAmount = swapResult.BuyAmount
	}

	var settleResult settlement.Result
	err := s.settleCaller.Do(ctx, func(callCtx context.Context) error {
		var settleErr error
		settleResult, settleErr = s.settleAdapter.Settle(callCtx, settlement.Request{
			PaymentID: payment.ID,
			InvoiceID: q.InvoiceID,
			PayTo:     q.PayTo,
			Token:     settleToken,
			Amount:    settleAmount,
			Network:   q.OriginalNetwork,
		})
		return settleErr
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAdapterFailure("settlement")
		}
		s.compensateAfterSwap(ctx, payment, swapped, swapResult, swapRec)
		return nil, enginedomain.NewError(enginedomain.ReasonTransactionFailed, "settlement failed")
	}

	completedAt := s.clock.Now()
	if err := s.paymentRepo.MarkSettled(ctx, s.db, payment.ID, settleResult.TxHash, swapRec, completedAt); err != nil {
		return nil, err
	}

	token, err := s.proofCodec.Mint(payment.ID, payment.WorkspaceID, payment.InvoiceID, completedAt)
	if err != nil {
		return nil, err
	}

	s.log.Info("payment settled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", payment.InvoiceID),
		zap.String("tx_hash", settleResult.TxHash),
		zap.Bool("swapped", swapped),
	)
	if s.metrics != nil {
		s.metrics.RecordPayment(string(paymentdomain.StatusSettled))
	}

	return &enginedomain.PayResult{
		PaymentID: payment.ID.String(),
		InvoiceID: payment.InvoiceID,
		TxHash:    settleResult.TxHash,
		Proof:     token,
	}, nil
}

// compensate credits the treasury back after a post-debit failure and marks
// the payment failed. It runs on a detached context so adapter timeouts
// cannot cancel the credit. A failed credit is escalated, never dropped.
func (s *Service) compensate(ctx context.Context, payment *paymentdomain.Payment, reason, message string) {
	detached := context.WithoutCancel(ctx)
	now := s.clock.Now()

	if _, err := s.treasuryRepo.Credit(detached, s.db, payment.WorkspaceID, payment.TreasuryToken, payment.TreasuryAmount); err != nil {
		s.escalate(detached, payment, "treasury compensation failed: "+err.Error())
		if markErr := s.paymentRepo.MarkRefundPending(detached, s.db, payment.ID, reason, nil, now); markErr != nil {
			s.log.Error("failed to mark payment refund_pending", zap.Error(markErr))
		}
		return
	}

	if s.metrics != nil {
		s.metrics.RecordCompensation()
		s.metrics.RecordPayment(string(paymentdomain.StatusFailed))
	}
	if err := s.paymentRepo.MarkFailed(detached, s.db, payment.ID, reason, now); err != nil {
		s.log.Error("failed to mark payment failed", zap.Error(err))
	}
	_ = s.auditSvc.Record(detached, auditdomain.Record{
		WorkspaceID: payment.WorkspaceID,
		APIKeyID:    payment.APIKeyID,
		InvoiceID:   payment.InvoiceID,
		Action:      auditdomain.ActionPaymentFailed,
		Reason:      message,
	})
}

// compensateAfterSwap handles settlement failure. If no swap ran the debit is
// credited back directly. A reversible swap is unwound first; an irreversible
// one leaves value stranded in the bought token, so the payment is parked as
// refund_pending for manual reconciliation instead of silently "compensated".
func (s *Service) compensateAfterSwap(ctx context.Context, payment *paymentdomain.Payment, swapped bool, executed swap.Result, swapRec *paymentdomain.SwapRecord) {
	if !swapped {
		s.compensate(ctx, payment, enginedomain.ReasonTransactionFailed, "settlement failed")
		return
	}

	detached := context.WithoutCancel(ctx)
	now := s.clock.Now()

	if executed.Reversible {
		if err := s.swapAdapter.Reverse(detached, executed); err == nil {
			s.compensate(ctx, payment, enginedomain.ReasonTransactionFailed, "settlement failed")
			return
		}
		s.escalate(detached, payment, "swap reversal failed after settlement failure")
	} else {
		s.escalate(detached, payment, "irreversible swap executed but settlement failed")
	}

	if s.metrics != nil {
		s.metrics.RecordPayment(string(paymentdomain.StatusRefundPending))
	}
	if err := s.paymentRepo.MarkRefundPending(detached, s.db, payment.ID, enginedomain.ReasonTransactionFailed, swapRec, now); err != nil {
		s.log.Error("failed to mark payment refund_pending", zap.Error(err))
	}
}

func (s *Service) escalate(ctx context.Context, payment *paymentdomain.Payment, detail string) {
	s.log.Error("reconciliation needed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", payment.InvoiceID),
		zap.String("detail", detail),
	)
	if s.metrics != nil {
		s.metrics.RecordReconciliation()
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Record{
		WorkspaceID: payment.WorkspaceID,
		APIKeyID:    payment.APIKeyID,
		InvoiceID:   payment.InvoiceID,
		Action:      auditdomain.ActionReconciliationNeeded,
		Reason:      detail,
	})
}
