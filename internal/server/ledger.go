package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetEntityLedger(c *gin.Context) {
	entityID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ledger, err := s.reportSvc.ComputeLedger(c.Request.Context(), entityID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ledger})
}

func (s *Server) GetEntitySummary(c *gin.Context) {
	entityID, ok := pathID(c, "id")
	if !ok {
		return
	}

	summary, err := s.reportSvc.ComputeSummary(c.Request.Context(), entityID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
