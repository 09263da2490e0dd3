package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/tollgate-ai/tollgate/internal/rates"
	"github.com/tollgate-ai/tollgate/internal/workspacectx"
)

type balanceResponse struct {
	Token   string `json:"token"`
	Balance string `json:"balance"`
	Minor   int64  `json:"minor"`
}

// GetBalance handles GET /v1/treasury/balance for the authenticated
// workspace. Token defaults to the treasury settlement token.
func (s *Server) GetBalance(c *gin.Context) {
	workspaceID, ok := workspacectx.WorkspaceIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	token := strings.ToUpper(strings.TrimSpace(c.Query("token")))
	if token == "" {
		token = s.cfg.TreasuryToken
	}

	minor, err := s.treasurySvc.Balance(c.Request.Context(), snowflake.ID(workspaceID), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		Token:   token,
		Balance: rates.FormatAmount(token, minor),
		Minor:   minor,
	})
}

type depositRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount" binding:"required"`
}

// Deposit handles POST /v1/treasury/deposit. Real deposits arrive through an
// on-ramp outside this service; this endpoint funds workspaces in
// non-production environments only.
func (s *Server) Deposit(c *gin.Context) {
	workspaceID, ok := workspacectx.WorkspaceIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	token := strings.ToUpper(strings.TrimSpace(req.Token))
	if token == "" {
		token = s.cfg.TreasuryToken
	}

	minor, err := rates.ParseAmount(token, req.Amount)
	if err != nil || minor <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	newBalance, err := s.treasurySvc.Credit(c.Request.Context(), snowflake.ID(workspaceID), token, minor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, balanceResponse{
		Token:   token,
		Balance: rates.FormatAmount(token, newBalance),
		Minor:   newBalance,
	})
}
