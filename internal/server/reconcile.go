package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Reconcile handles POST /internal/reconcile. It fails and compensates
// payments left pending past the adapter timeout, for operators recovering
// from an engine crash mid-payment.
func (s *Server) Reconcile(c *gin.Context) {
	resolved, err := s.engineSvc.ResolveStalePending(c.Request.Context(), s.cfg.AdapterTimeout)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolved": resolved})
}
