package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/tollgate-ai/tollgate/internal/apikey/domain"
	"github.com/tollgate-ai/tollgate/internal/workspacectx"
	"go.uber.org/zap"
)

// APIKeyRequired authenticates the paying agent. Workspace identity is
// derived solely from the api_keys table; nothing in the request may name a
// workspace directly.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		hash := apikeydomain.HashAPIKey(parts[1])
		key, err := s.apiKeyRepo.FindByHash(c.Request.Context(), s.db, hash)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if key == nil || !key.IsActive || subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if key.ExpiresAt != nil && s.clock.Now().After(*key.ExpiresAt) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := s.apiKeyRepo.TouchLastUsed(c.Request.Context(), s.db, key.ID, s.clock.Now()); err != nil {
			s.log.Warn("failed to touch api key", zap.Error(err))
		}

		ctx := c.Request.Context()
		ctx = workspacectx.WithWorkspaceID(ctx, int64(key.WorkspaceID))
		ctx = workspacectx.WithAPIKeyID(ctx, int64(key.ID))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
