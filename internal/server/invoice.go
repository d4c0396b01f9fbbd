package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"go.uber.org/zap"
)

type createPeriodInvoiceRequest struct {
	LeaseID string `json:"lease_id"`
	Period  string `json:"period"`
}

type createManualInvoiceRequest struct {
	LeaseID     string `json:"lease_id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	DueDate     string `json:"due_date"`
	Description string `json:"description"`
}

type listInvoicesQuery struct {
	Status string `form:"status"`
	pagination.Pagination
}

func (s *Server) CreateRentInvoice(c *gin.Context) {
	s.createPeriodInvoice(c, invoicedomain.InvoiceTypeRent)
}

func (s *Server) CreateUtilityInvoice(c *gin.Context) {
	s.createPeriodInvoice(c, invoicedomain.InvoiceTypeUtility)
}

func (s *Server) createPeriodInvoice(c *gin.Context, typ invoicedomain.InvoiceType) {
	var req createPeriodInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	leaseID, ok := parseSnowflakeID(req.LeaseID)
	if !ok {
		AbortWithError(c, newValidationError("lease_id", "invalid_id", "lease_id must be a snowflake id"))
		return
	}
	month, err := leasedomain.ParseMonth(strings.TrimSpace(req.Period))
	if err != nil {
		AbortWithError(c, newValidationError("period", "invalid_period", "period must be YYYY-MM"))
		return
	}

	ctx := c.Request.Context()
	lease, err := s.leaseSvc.GetByID(ctx, leaseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	create := s.invoiceSvc.CreateRentInvoice
	if typ == invoicedomain.InvoiceTypeUtility {
		create = s.invoiceSvc.CreateUtilityInvoice
	}
	inv, err := create(ctx, invoicedomain.CreatePeriodInvoiceRequest{
		Lease:  lease,
		Period: invoicedomain.BillingPeriod(typ, lease, month),
		Source: invoicedomain.SourceAPI,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": s.postCreatedInvoice(ctx, inv)})
}

// postCreatedInvoice posts a freshly created invoice. A posting failure leaves
// it PENDING for the retry sweep and does not fail the request.
func (s *Server) postCreatedInvoice(ctx context.Context, inv invoicedomain.Invoice) invoicedomain.Invoice {
	if inv.PostingStatus != ledgerdomain.PostingStatusPending {
		return inv
	}
	if _, err := s.ledgerSvc.PostInvoice(ctx, inv.ID); err != nil {
		s.log.Warn("http.invoice.posting_deferred",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
		return inv
	}
	refreshed, err := s.invoiceSvc.GetByID(ctx, inv.ID)
	if err != nil {
		return inv
	}
	return refreshed
}

func (s *Server) CreateManualInvoice(c *gin.Context) {
	var req createManualInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	leaseID, ok := parseSnowflakeID(req.LeaseID)
	if !ok {
		AbortWithError(c, newValidationError("lease_id", "invalid_id", "lease_id must be a snowflake id"))
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoiceSvc.CreateManualInvoice(c.Request.Context(), invoicedomain.CreateManualInvoiceRequest{
		LeaseID:     leaseID,
		Type:        invoicedomain.InvoiceType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Amount:      amount,
		DueDate:     dueDate,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": inv})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListLeaseInvoices(c *gin.Context) {
	leaseID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := invoicedomain.InvoiceStatus(strings.ToUpper(strings.TrimSpace(query.Status)))
	switch status {
	case "", invoicedomain.InvoiceStatusPending, invoicedomain.InvoiceStatusPaid, invoicedomain.InvoiceStatusOverdue:
	default:
		AbortWithError(c, newValidationError("status", "invalid_status", "status must be PENDING, PAID or OVERDUE"))
		return
	}

	resp, err := s.invoiceSvc.ListByLease(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		LeaseID:    leaseID,
		Status:     status,
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Invoices,
		"page_info": resp.PageInfo,
	})
}
