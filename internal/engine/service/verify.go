package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	enginedomain "github.com/tollgate-ai/tollgate/internal/engine/domain"
	paymentdomain "github.com/tollgate-ai/tollgate/internal/payment/domain"
	"github.com/tollgate-ai/tollgate/internal/proof"
	"github.com/tollgate-ai/tollgate/internal/rates"
	"go.uber.org/zap"
)

// Verify checks a payment proof presented by a provider. A proof verifies
// only while its validity window is open and the payment it names is settled
// for the claimed invoice.
func (s *Service) Verify(ctx context.Context, req enginedomain.VerifyRequest) (*enginedomain.VerifyResult, error) {
	claims, err := s.proofCodec.Verify(req.Proof)
	if err != nil {
		if errors.Is(err, proof.ErrProofExpired) {
			return nil, enginedomain.NewError(enginedomain.ReasonProofExpired, "payment proof has expired")
		}
		return nil, enginedomain.NewError(enginedomain.ReasonInvalidProof, "payment proof is invalid")
	}

	paymentID, err := snowflake.ParseString(claims.PaymentID)
	if err != nil {
		return nil, enginedomain.NewError(enginedomain.ReasonInvalidProof, "payment proof is invalid")
	}

	payment, err := s.paymentRepo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, enginedomain.NewError(enginedomain.ReasonPaymentNotFound, "no payment matches this proof")
	}
	if req.InvoiceID != "" && payment.InvoiceID != req.InvoiceID {
		return nil, enginedomain.NewError(enginedomain.ReasonInvoiceMismatch, "proof does not match this invoice")
	}
	if payment.InvoiceID != claims.InvoiceID {
		return nil, enginedomain.NewError(enginedomain.ReasonInvalidProof, "payment proof is invalid")
	}

	return s.verifiedResult(payment)
}

// VerifyByInvoice answers the authenticated dashboard variant: did this
// workspace settle that invoice, without requiring the proof token. The same
// validity window applies as for proof verification.
func (s *Service) VerifyByInvoice(ctx context.Context, invoiceID string) (*enginedomain.VerifyResult, error) {
	caller, err := s.identityFromContext(ctx)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.FindByInvoiceID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.WorkspaceID != caller.WorkspaceID {
		return nil, enginedomain.NewError(enginedomain.ReasonPaymentNotFound, "no payment found for this invoice")
	}

	return s.verifiedResult(payment)
}

func (s *Service) verifiedResult(payment *paymentdomain.Payment) (*enginedomain.VerifyResult, error) {
	if payment.Status != paymentdomain.StatusSettled {
		return nil, enginedomain.NewError(enginedomain.ReasonPaymentNotFound, "payment did not settle")
	}

	paidAt := payment.CreatedAt
	if payment.CompletedAt != nil {
		paidAt = *payment.CompletedAt
	}
	if s.clock.Now().After(paidAt.Add(s.cfg.ProofValidity)) {
		return nil, enginedomain.NewError(enginedomain.ReasonProofExpired, "payment proof has expired")
	}

	txHash := ""
	if payment.TxHash != nil {
		txHash = *payment.TxHash
	}
	return &enginedomain.VerifyResult{
		Verified:  true,
		PaymentID: payment.ID.String(),
		Amount:    rates.FormatAmount(payment.OriginalCurrency, payment.OriginalAmount),
		Token:     payment.OriginalCurrency,
		PaidAt:    paidAt,
		TxHash:    txHash,
	}, nil
}

// ResolveStalePending sweeps payments stuck in pending longer than olderThan,
// credits the held funds back and marks them failed. Run from an operator
// task after an engine crash between debit and settlement.
func (s *Service) ResolveStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-olderThan)
	stale, err := s.paymentRepo.ListStalePending(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range stale {
		p := stale[i]
		s.log.Warn("resolving stale pending payment",
			zap.String("payment_id", p.ID.String()),
			zap.String("invoice_id", p.InvoiceID),
		)
		s.compensate(ctx, &p, enginedomain.ReasonTransactionFailed, "payment abandoned before settlement")
		resolved++
	}
	return resolved, nil
}
