package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	enginedomain "github.com/tollgate-ai/tollgate/internal/engine/domain"
	"github.com/tollgate-ai/tollgate/internal/rates"
	"gorm.io/gorm"
)

type errorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError translates service errors into HTTP responses. Engine errors carry
// their reason code verbatim so agents can branch on it.
func mapError(err error) (int, errorPayload) {
	if engineErr, ok := enginedomain.AsEngineError(err); ok {
		return engineErrorStatus(engineErr.Reason), errorPayload{
			Reason:  engineErr.Reason,
			Message: engineErr.Message,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, enginedomain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorPayload{
			Reason:  "UNAUTHORIZED",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, rates.ErrInvalidAmount),
		errors.Is(err, rates.ErrAmountPrecision),
		errors.Is(err, rates.ErrUnknownToken),
		errors.Is(err, rates.ErrNoRate):
		return http.StatusBadRequest, errorPayload{
			Reason:  "INVALID_REQUEST",
			Message: err.Error(),
		}
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Reason:  "NOT_FOUND",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Reason:  "INTERNAL_ERROR",
			Message: "internal server error",
		}
	}
}

func engineErrorStatus(reason string) int {
	switch reason {
	case enginedomain.ReasonQuoteNotFound, enginedomain.ReasonPaymentNotFound:
		return http.StatusNotFound
	case enginedomain.ReasonQuoteExpired, enginedomain.ReasonProofExpired:
		return http.StatusGone
	case enginedomain.ReasonInsufficientBalance:
		return http.StatusPaymentRequired
	case enginedomain.ReasonInvalidProof:
		return http.StatusUnauthorized
	case enginedomain.ReasonInvoiceMismatch:
		return http.StatusConflict
	case enginedomain.ReasonTransactionFailed, enginedomain.ReasonWalletError:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}
