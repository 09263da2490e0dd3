package domain

import (
	"context"
	"errors"
	"time"
)

// Reason codes are part of the client contract and returned verbatim.
const (
	ReasonAgentDailyLimit     = "AGENT_DAILY_LIMIT"
	ReasonAgentMonthlyLimit   = "AGENT_MONTHLY_LIMIT"
	ReasonAgentRequestLimit   = "AGENT_REQUEST_LIMIT"
	ReasonProviderNotAllowed  = "PROVIDER_NOT_ALLOWED"
	ReasonWorkspaceBudget     = "WORKSPACE_BUDGET_EXCEEDED"
	ReasonAgentDisabled       = "AGENT_DISABLED"
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonQuoteExpired        = "QUOTE_EXPIRED"
	ReasonQuoteNotFound       = "QUOTE_NOT_FOUND"
	ReasonTransactionFailed   = "TRANSACTION_FAILED"
	ReasonWalletError         = "WALLET_ERROR"
	ReasonInvalidProof        = "INVALID_PROOF"
	ReasonPaymentNotFound     = "PAYMENT_NOT_FOUND"
	ReasonInvoiceMismatch     = "INVOICE_MISMATCH"
	ReasonProofExpired        = "PROOF_EXPIRED"
)

// Invoice is the 402 challenge presented by a paid API, as supplied by the
// paying agent. Amount is a decimal string in Currency.
type Invoice struct {
	InvoiceID   string `json:"invoiceId"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Network     string `json:"network"`
	PayTo       string `json:"payTo"`
	Description string `json:"description,omitempty"`
	ProviderURL string `json:"providerUrl,omitempty"`
}

type QuoteRequest struct {
	Invoice Invoice
}

// QuoteResult reports either a minted quote or a policy denial. Denials are
// expected outcomes, not errors.
type QuoteResult struct {
	Allowed bool
	QuoteID string
	Reason  string
	Message string
}

type PayRequest struct {
	QuoteID string
}

type PayResult struct {
	PaymentID string
	InvoiceID string
	TxHash    string
	Proof     string
}

type VerifyRequest struct {
	Proof     string
	InvoiceID string
}

type VerifyResult struct {
	Verified  bool
	PaymentID string
	Amount    string
	Token     string
	PaidAt    time.Time
	TxHash    string
}

// Service is the gateway payment engine. Caller identity (workspace, agent)
// travels on the context; every operation is stateless per call.
type Service interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error)
	Pay(ctx context.Context, req PayRequest) (*PayResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	// VerifyByInvoice is the authenticated admin variant of Verify.
	VerifyByInvoice(ctx context.Context, invoiceID string) (*VerifyResult, error)
	// ResolveStalePending fails and compensates pending payments older
	// than the adapter timeout. Intended for the reconciliation sweep.
	ResolveStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// Error carries a stable machine-readable reason alongside a human message.
type Error struct {
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return e.Reason + ": " + e.Message
}

func NewError(reason, message string) *Error {
	return &Error{Reason: reason, Message: message}
}

// AsEngineError unwraps an engine error, if err carries one.
func AsEngineError(err error) (*Error, bool) {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

var ErrUnauthenticated = errors.New("unauthenticated")
