package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentledger/internal/auditcontext"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"go.uber.org/zap"
)

type retryPostingsQuery struct {
	Limit int `form:"limit"`
}

// cronContext detaches the run from the caller's connection so a dropped cron
// client does not abort a run halfway through its leases.
func cronContext(c *gin.Context) context.Context {
	ctx := context.WithoutCancel(c.Request.Context())
	if auditcontext.ActorIDFromContext(ctx) == "" {
		ctx = auditcontext.WithActorID(ctx, auditcontext.SystemActor)
	}
	return ctx
}

// RunBillingCycle reports per-lease failures inside a 200. Only a run where
// nothing could be billed answers with a server error.
func (s *Server) RunBillingCycle(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	result, err := s.scheduler.RunBillingCycle(cronContext(c))
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			AbortWithError(c, err)
			return
		}
		s.log.Error("http.cron.billing_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"data":  result,
			"error": errorPayload{Type: "internal_error", Code: ErrBillingRunFailed.Error(), Message: err.Error()},
		})
		return
	}

	if result.TotalFailure() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"data":  result,
			"error": errorPayload{Type: "internal_error", Code: ErrBillingRunFailed.Error(), Message: "every lease failed to bill"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RetryPendingPostings(c *gin.Context) {
	var query retryPostingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	limit := query.Limit
	if limit <= 0 || limit > s.cfg.Billing.RetryBatchSize {
		limit = s.cfg.Billing.RetryBatchSize
	}

	result, err := s.ledgerSvc.RetryPending(cronContext(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Attempted > 0 && result.Posted == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{
			"data":  result,
			"error": errorPayload{Type: "internal_error", Code: "posting_retry_failed", Message: "no pending posting succeeded"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
