package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/rentledger/internal/audit/domain"
	"github.com/smallbiznis/rentledger/internal/auditcontext"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
)

type applyPaymentRequest struct {
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

type reversePaymentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) ApplyPayment(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req applyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.paymentSvc.ApplyPayment(c.Request.Context(), paymentdomain.ApplyPaymentRequest{
		InvoiceID: invoiceID,
		Amount:    amount,
		Method:    strings.TrimSpace(req.Method),
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := s.invoiceSvc.GetByID(ctx, invoiceID); err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.paymentSvc.ListByInvoice(ctx, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ReversePayment(c *gin.Context) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req reversePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	result, err := s.paymentSvc.ReversePayment(ctx, paymentdomain.ReversePaymentRequest{
		PaymentID: paymentID,
		Reason:    strings.TrimSpace(req.Reason),
		Actor:     auditcontext.ActorIDFromContext(ctx),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ListPaymentAuditLogs returns the application and reversal trail of a payment.
func (s *Server) ListPaymentAuditLogs(c *gin.Context) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	payment, err := s.paymentSvc.GetByID(ctx, paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: page,
		OrgID:      payment.OrgID,
		TargetType: "payment",
		TargetID:   payment.ID.String(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.AuditLogs,
		"page_info": resp.PageInfo,
	})
}
