package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	enginedomain "github.com/tollgate-ai/tollgate/internal/engine/domain"
	"github.com/tollgate-ai/tollgate/internal/rates"
	"github.com/tollgate-ai/tollgate/internal/workspacectx"
)

type quoteRequest struct {
	Invoice enginedomain.Invoice `json:"invoice" binding:"required"`
}

type quoteResponse struct {
	Allowed bool   `json:"allowed"`
	QuoteID string `json:"quoteId,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Quote handles POST /v1/quote. Policy denials answer 200 with allowed=false;
// only malformed or unauthenticated requests are errors.
func (s *Server) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.engineSvc.Quote(c.Request.Context(), enginedomain.QuoteRequest{Invoice: req.Invoice})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, quoteResponse{
		Allowed: result.Allowed,
		QuoteID: result.QuoteID,
		Reason:  result.Reason,
		Message: result.Message,
	})
}

type payRequest struct {
	QuoteID string `json:"quoteId" binding:"required"`
}

type payResponse struct {
	Status    string `json:"status"`
	PaymentID string `json:"paymentId"`
	InvoiceID string `json:"invoiceId"`
	TxHash    string `json:"txHash"`
	Proof     string `json:"proof"`
}

// Pay handles POST /v1/pay.
func (s *Server) Pay(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.engineSvc.Pay(c.Request.Context(), enginedomain.PayRequest{QuoteID: req.QuoteID})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, payResponse{
		Status:    "ok",
		PaymentID: result.PaymentID,
		InvoiceID: result.InvoiceID,
		TxHash:    result.TxHash,
		Proof:     result.Proof,
	})
}

type verifyRequest struct {
	Proof     string `json:"proof"`
	InvoiceID string `json:"invoiceId"`
}

type verifyResponse struct {
	Verified  bool      `json:"verified"`
	PaymentID string    `json:"paymentId,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Token     string    `json:"token,omitempty"`
	PaidAt    time.Time `json:"paidAt,omitempty"`
	TxHash    string    `json:"txHash,omitempty"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Verify handles POST /v1/verify. It is unauthenticated: the proof token is
// the credential. The proof travels in the body or the proof header, and a
// failed check answers 200 with verified=false so providers get a stable
// shape either way.
func (s *Server) Verify(c *gin.Context) {
	var req verifyRequest
	_ = c.ShouldBindJSON(&req)
	if req.Proof == "" {
		req.Proof = strings.TrimSpace(c.GetHeader(s.cfg.ProofHeader))
	}
	if req.Proof == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.engineSvc.Verify(c.Request.Context(), enginedomain.VerifyRequest{
		Proof:     req.Proof,
		InvoiceID: req.InvoiceID,
	})
	if err != nil {
		if engineErr, ok := enginedomain.AsEngineError(err); ok {
			c.JSON(http.StatusOK, verifyResponse{
				Verified:  false,
				ErrorCode: engineErr.Reason,
				Message:   engineErr.Message,
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		Verified:  true,
		PaymentID: result.PaymentID,
		Amount:    result.Amount,
		Token:     result.Token,
		PaidAt:    result.PaidAt,
		TxHash:    result.TxHash,
	})
}

// VerifyPayment handles GET /v1/payments/:invoiceId/verify, the authenticated
// workspace-side check of a settled invoice.
func (s *Server) VerifyPayment(c *gin.Context) {
	invoiceID := strings.TrimSpace(c.Param("invoiceId"))
	if invoiceID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.engineSvc.VerifyByInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		if engineErr, ok := enginedomain.AsEngineError(err); ok {
			c.JSON(http.StatusOK, verifyResponse{
				Verified:  false,
				ErrorCode: engineErr.Reason,
				Message:   engineErr.Message,
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		Verified:  true,
		PaymentID: result.PaymentID,
		Amount:    result.Amount,
		Token:     result.Token,
		PaidAt:    result.PaidAt,
		TxHash:    result.TxHash,
	})
}

type paymentItem struct {
	PaymentID     string     `json:"paymentId"`
	InvoiceID     string     `json:"invoiceId"`
	ProviderHost  string     `json:"providerHost"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	TreasuryCost  string     `json:"treasuryCost"`
	TreasuryToken string     `json:"treasuryToken"`
	Status        string     `json:"status"`
	TxHash        string     `json:"txHash,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// ListPayments handles GET /v1/payments for the authenticated workspace.
func (s *Server) ListPayments(c *gin.Context) {
	workspaceID, ok := workspacectx.WorkspaceIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	payments, err := s.paymentRepo.ListByWorkspace(c.Request.Context(), s.db, snowflake.ID(workspaceID), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]paymentItem, 0, len(payments))
	for i := range payments {
		p := payments[i]
		item := paymentItem{
			PaymentID:     p.ID.String(),
			InvoiceID:     p.InvoiceID,
			ProviderHost:  p.ProviderHost,
			Amount:        rates.FormatAmount(p.OriginalCurrency, p.OriginalAmount),
			Currency:      p.OriginalCurrency,
			TreasuryCost:  rates.FormatAmount(p.TreasuryToken, p.TreasuryAmount),
			TreasuryToken: p.TreasuryToken,
			Status:        string(p.Status),
			CreatedAt:     p.CreatedAt,
			CompletedAt:   p.CompletedAt,
		}
		if p.TxHash != nil {
			item.TxHash = *p.TxHash
		}
		if p.FailureReason != nil {
			item.FailureReason = *p.FailureReason
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"payments": items})
}
