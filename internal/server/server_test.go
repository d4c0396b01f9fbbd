package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/rentledger/internal/audit/domain"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	ledgerreportdomain "github.com/smallbiznis/rentledger/internal/ledgerreport/domain"
	"github.com/smallbiznis/rentledger/internal/observability"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	utilitydomain "github.com/smallbiznis/rentledger/internal/utility/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testCronSecret = "s3cret"

type fakeLeaseService struct {
	leases map[snowflake.ID]leasedomain.Lease
}

func (f *fakeLeaseService) GetByID(_ context.Context, id snowflake.ID) (leasedomain.Lease, error) {
	lease, ok := f.leases[id]
	if !ok {
		return leasedomain.Lease{}, leasedomain.ErrLeaseNotFound
	}
	return lease, nil
}

func (f *fakeLeaseService) ListActive(_ context.Context, afterID snowflake.ID, limit int) ([]leasedomain.Lease, error) {
	var out []leasedomain.Lease
	for _, lease := range f.leases {
		if lease.ID > afterID && lease.Status == leasedomain.LeaseStatusActive {
			out = append(out, lease)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeInvoiceService struct {
	invoices   map[snowflake.ID]invoicedomain.Invoice
	createErr  error
	lastPeriod invoicedomain.CreatePeriodInvoiceRequest
	lastManual invoicedomain.CreateManualInvoiceRequest
	lastList   invoicedomain.ListInvoiceRequest
	nextID     snowflake.ID
}

func newFakeInvoiceService() *fakeInvoiceService {
	return &fakeInvoiceService{invoices: map[snowflake.ID]invoicedomain.Invoice{}, nextID: 1000}
}

func (f *fakeInvoiceService) createPeriod(typ invoicedomain.InvoiceType, req invoicedomain.CreatePeriodInvoiceRequest) (invoicedomain.Invoice, error) {
	f.lastPeriod = req
	if f.createErr != nil {
		return invoicedomain.Invoice{}, f.createErr
	}
	f.nextID++
	inv := invoicedomain.Invoice{
		ID:            f.nextID,
		LeaseID:       req.Lease.ID,
		Type:          typ,
		PeriodStart:   req.Period.Start,
		PeriodEnd:     req.Period.End,
		Currency:      req.Lease.Currency,
		TotalAmount:   req.Lease.RentAmount,
		Balance:       req.Lease.RentAmount,
		Status:        invoicedomain.InvoiceStatusPending,
		PostingStatus: ledgerdomain.PostingStatusPending,
		Source:        req.Source,
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeInvoiceService) CreateRentInvoice(_ context.Context, req invoicedomain.CreatePeriodInvoiceRequest) (invoicedomain.Invoice, error) {
	return f.createPeriod(invoicedomain.InvoiceTypeRent, req)
}

func (f *fakeInvoiceService) CreateUtilityInvoice(_ context.Context, req invoicedomain.CreatePeriodInvoiceRequest) (invoicedomain.Invoice, error) {
	return f.createPeriod(invoicedomain.InvoiceTypeUtility, req)
}

func (f *fakeInvoiceService) CreateManualInvoice(_ context.Context, req invoicedomain.CreateManualInvoiceRequest) (invoicedomain.Invoice, error) {
	f.lastManual = req
	if f.createErr != nil {
		return invoicedomain.Invoice{}, f.createErr
	}
	f.nextID++
	inv := invoicedomain.Invoice{
		ID:            f.nextID,
		LeaseID:       req.LeaseID,
		Type:          req.Type,
		TotalAmount:   req.Amount,
		DueDate:       req.DueDate,
		Status:        invoicedomain.InvoiceStatusPending,
		PostingStatus: ledgerdomain.PostingStatusPosted,
		Source:        invoicedomain.SourceManual,
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeInvoiceService) GetByID(_ context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeInvoiceService) ListByLease(_ context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	f.lastList = req
	var out []invoicedomain.Invoice
	for _, inv := range f.invoices {
		if inv.LeaseID == req.LeaseID {
			out = append(out, inv)
		}
	}
	return invoicedomain.ListInvoiceResponse{Invoices: out}, nil
}

func (f *fakeInvoiceService) FindForPeriod(_ context.Context, leaseID snowflake.ID, typ invoicedomain.InvoiceType, period leasedomain.Period) (*invoicedomain.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.LeaseID == leaseID && inv.Type == typ && inv.PeriodStart.Equal(period.Start) {
			found := inv
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeInvoiceService) MarkOverdue(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

type fakeLedgerService struct {
	invoices *fakeInvoiceService
	postErr  error
	posted   []snowflake.ID
	retry    ledgerdomain.RetryResult
	retryN   int
}

func (f *fakeLedgerService) PostInvoice(_ context.Context, invoiceID snowflake.ID) (ledgerdomain.PostingResult, error) {
	if f.postErr != nil {
		return ledgerdomain.PostingResult{}, f.postErr
	}
	f.posted = append(f.posted, invoiceID)
	if inv, ok := f.invoices.invoices[invoiceID]; ok {
		inv.PostingStatus = ledgerdomain.PostingStatusPosted
		f.invoices.invoices[invoiceID] = inv
	}
	return ledgerdomain.PostingResult{}, nil
}

func (f *fakeLedgerService) PostPayment(context.Context, snowflake.ID) (ledgerdomain.PostingResult, error) {
	return ledgerdomain.PostingResult{}, nil
}

func (f *fakeLedgerService) PostPaymentReversal(context.Context, snowflake.ID) (ledgerdomain.PostingResult, error) {
	return ledgerdomain.PostingResult{}, nil
}

func (f *fakeLedgerService) RetryPending(_ context.Context, limit int) (ledgerdomain.RetryResult, error) {
	f.retryN = limit
	return f.retry, nil
}

type fakePaymentService struct {
	applyErr    error
	reverseErr  error
	lastApply   paymentdomain.ApplyPaymentRequest
	lastReverse paymentdomain.ReversePaymentRequest
	payments    []paymentdomain.Payment
}

func (f *fakePaymentService) ApplyPayment(_ context.Context, req paymentdomain.ApplyPaymentRequest) (paymentdomain.ApplyPaymentResult, error) {
	f.lastApply = req
	if f.applyErr != nil {
		return paymentdomain.ApplyPaymentResult{}, f.applyErr
	}
	return paymentdomain.ApplyPaymentResult{
		Payment:   paymentdomain.Payment{ID: 77, InvoiceID: req.InvoiceID, Amount: req.Amount},
		Status:    invoicedomain.InvoiceStatusPending,
		TotalPaid: req.Amount,
		Remaining: decimal.NewFromInt(500).Sub(req.Amount),
	}, nil
}

func (f *fakePaymentService) ReversePayment(_ context.Context, req paymentdomain.ReversePaymentRequest) (paymentdomain.ReversePaymentResult, error) {
	f.lastReverse = req
	if f.reverseErr != nil {
		return paymentdomain.ReversePaymentResult{}, f.reverseErr
	}
	return paymentdomain.ReversePaymentResult{
		Status:    invoicedomain.InvoiceStatusPending,
		TotalPaid: decimal.Zero,
		Remaining: decimal.NewFromInt(500),
		Message:   "payment reversed",
	}, nil
}

func (f *fakePaymentService) GetByID(_ context.Context, id snowflake.ID) (paymentdomain.Payment, error) {
	for _, p := range f.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return paymentdomain.Payment{}, paymentdomain.ErrPaymentNotFound
}

func (f *fakePaymentService) ListByInvoice(_ context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	var out []paymentdomain.Payment
	for _, p := range f.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeReportService struct{}

func (fakeReportService) ComputeAccountBalance(context.Context, snowflake.ID) (ledgerreportdomain.AccountBalance, error) {
	return ledgerreportdomain.AccountBalance{}, nil
}

func (fakeReportService) ComputeLedger(_ context.Context, entityID snowflake.ID) (ledgerreportdomain.Ledger, error) {
	return ledgerreportdomain.Ledger{EntityID: entityID, Currency: "KES", Accounts: []ledgerreportdomain.AccountBalance{}}, nil
}

func (fakeReportService) ComputeSummary(context.Context, snowflake.ID) (ledgerreportdomain.Summary, error) {
	return ledgerreportdomain.Summary{
		CashInBank:         decimal.RequireFromString("200.05"),
		OutstandingArrears: decimal.RequireFromString("450.05"),
		Currency:           "KES",
	}, nil
}

type fakeAuditService struct {
	lastList auditdomain.ListAuditLogRequest
	logs     []auditdomain.AuditLog
}

func (f *fakeAuditService) Record(context.Context, *gorm.DB, auditdomain.Entry) error {
	return nil
}

func (f *fakeAuditService) List(_ context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	f.lastList = req
	return auditdomain.ListAuditLogResponse{AuditLogs: f.logs}, nil
}

type testServer struct {
	engine   *gin.Engine
	leases   *fakeLeaseService
	invoices *fakeInvoiceService
	ledger   *fakeLedgerService
	payments *fakePaymentService
	audit    *fakeAuditService
}

func newTestServer(t *testing.T, withScheduler bool, leases ...leasedomain.Lease) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := testServer{
		leases:   &fakeLeaseService{leases: map[snowflake.ID]leasedomain.Lease{}},
		invoices: newFakeInvoiceService(),
		payments: &fakePaymentService{},
		audit:    &fakeAuditService{},
	}
	for _, lease := range leases {
		ts.leases.leases[lease.ID] = lease
	}
	ts.ledger = &fakeLedgerService{invoices: ts.invoices}

	cfg := config.Config{
		Billing: config.BillingSettings{CronSecret: testCronSecret, RetryBatchSize: 50},
	}

	var sched *scheduler.Scheduler
	if withScheduler {
		node, err := snowflake.NewNode(3)
		require.NoError(t, err)
		sched, err = scheduler.New(scheduler.Params{
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clock.NewFakeClock(time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC)),
			Billing: config.NewStaticBillingConfigHolder(config.BillingPolicy{
				DefaultDueDay:   5,
				DefaultCurrency: "KES",
				Workers:         1,
			}),
			LeaseSvc:   ts.leases,
			InvoiceSvc: ts.invoices,
			LedgerSvc:  ts.ledger,
		})
		require.NoError(t, err)
	}

	ts.engine = NewEngine(observability.Config{}, zap.NewNop())
	NewServer(ServerParams{
		Gin:        ts.engine,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		InvoiceSvc: ts.invoices,
		PaymentSvc: ts.payments,
		LeaseSvc:   ts.leases,
		LedgerSvc:  ts.ledger,
		ReportSvc:  fakeReportService{},
		AuditSvc:   ts.audit,
		Scheduler:  sched,
	})
	return ts
}

func (ts testServer) do(t *testing.T, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func errorField(t *testing.T, body map[string]any, key string) any {
	t.Helper()
	payload, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error payload: %v", body)
	return payload[key]
}

func activeLease(id int64) leasedomain.Lease {
	return leasedomain.Lease{
		ID:               snowflake.ID(id),
		OrgID:            7,
		RentAmount:       decimal.NewFromInt(500),
		Currency:         "KES",
		PaymentFrequency: leasedomain.FrequencyMonthly,
		Status:           leasedomain.LeaseStatusActive,
		StartDate:        time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	rec, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateRentInvoicePostsAfterCreate(t *testing.T) {
	ts := newTestServer(t, false, activeLease(11))

	rec, body := ts.do(t, http.MethodPost, "/api/v1/invoices/rent", `{"lease_id":"11","period":"2026-03"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := body["data"].(map[string]any)
	assert.Equal(t, "POSTED", data["posting_status"])
	assert.Equal(t, "api", data["source"])
	assert.Len(t, ts.ledger.posted, 1)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), ts.invoices.lastPeriod.Period.Start)
}

func TestCreateRentInvoicePostingFailureStillCreated(t *testing.T) {
	ts := newTestServer(t, false, activeLease(11))
	ts.ledger.postErr = errors.New("ledger unavailable")

	rec, body := ts.do(t, http.MethodPost, "/api/v1/invoices/rent", `{"lease_id":"11","period":"2026-03"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "PENDING", body["data"].(map[string]any)["posting_status"])
}

func TestCreateRentInvoiceDuplicateIsConflict(t *testing.T) {
	ts := newTestServer(t, false, activeLease(11))
	ts.invoices.createErr = invoicedomain.ErrDuplicateInvoice

	rec, body := ts.do(t, http.MethodPost, "/api/v1/invoices/rent", `{"lease_id":"11","period":"2026-03"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_invoice", errorField(t, body, "code"))
}

func TestCreateRentInvoiceRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, false, activeLease(11))

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed json", body: `{`, status: http.StatusBadRequest},
		{name: "bad lease id", body: `{"lease_id":"abc","period":"2026-03"}`, status: http.StatusBadRequest},
		{name: "bad period", body: `{"lease_id":"11","period":"March"}`, status: http.StatusBadRequest},
		{name: "unknown lease", body: `{"lease_id":"99","period":"2026-03"}`, status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := ts.do(t, http.MethodPost, "/api/v1/invoices/rent", tc.body, nil)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Empty(t, ts.invoices.invoices)
}

func TestCreateUtilityInvoiceUsesMonthlyWindow(t *testing.T) {
	lease := activeLease(12)
	lease.PaymentFrequency = leasedomain.FrequencyQuarterly
	ts := newTestServer(t, false, lease)

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/invoices/utility", `{"lease_id":"12","period":"2026-05"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC), ts.invoices.lastPeriod.Period.Start)
	assert.Equal(t, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC), ts.invoices.lastPeriod.Period.End)
}

func TestCreateUtilityInvoiceWithoutUtilities(t *testing.T) {
	ts := newTestServer(t, false, activeLease(12))
	ts.invoices.createErr = fmt.Errorf("allocate utilities: %w", utilitydomain.ErrNoUtilitiesAssigned)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/invoices/utility", `{"lease_id":"12","period":"2026-05"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_utilities_assigned", errorField(t, body, "code"))
}

func TestCreateManualInvoice(t *testing.T) {
	ts := newTestServer(t, false, activeLease(11))

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/invoices",
		`{"lease_id":"11","type":"rent","amount":"1250.50","due_date":"2026-04-05","description":"April top-up"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req := ts.invoices.lastManual
	assert.Equal(t, invoicedomain.InvoiceTypeRent, req.Type)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("1250.50")))
	assert.Equal(t, time.Date(2026, time.April, 5, 0, 0, 0, 0, time.UTC), req.DueDate)
	assert.Equal(t, "April top-up", req.Description)
}

func TestCreateManualInvoiceValidation(t *testing.T) {
	ts := newTestServer(t, false)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/invoices",
		`{"lease_id":"11","type":"RENT","amount":"12,5","due_date":"2026-04-05"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := errorField(t, body, "errors").([]any)
	assert.Equal(t, "amount", fields[0].(map[string]any)["field"])

	ts.invoices.createErr = invoicedomain.ErrInvalidInvoiceType
	rec, body = ts.do(t, http.MethodPost, "/api/v1/invoices",
		`{"lease_id":"11","type":"DEPOSIT","amount":"10","due_date":"2026-04-05"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields = errorField(t, body, "errors").([]any)
	assert.Equal(t, "type", fields[0].(map[string]any)["field"])
	assert.Equal(t, "invalid_invoice_type", fields[0].(map[string]any)["code"])
}

func TestGetInvoice(t *testing.T) {
	ts := newTestServer(t, false)
	ts.invoices.invoices[42] = invoicedomain.Invoice{ID: 42, Number: "INV-42"}

	rec, body := ts.do(t, http.MethodGet, "/api/v1/invoices/42", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INV-42", body["data"].(map[string]any)["number"])

	rec, body = ts.do(t, http.MethodGet, "/api/v1/invoices/43", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "invoice_not_found", errorField(t, body, "code"))

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/invoices/not-an-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListLeaseInvoices(t *testing.T) {
	ts := newTestServer(t, false)
	ts.invoices.invoices[42] = invoicedomain.Invoice{ID: 42, LeaseID: 11}

	rec, body := ts.do(t, http.MethodGet, "/api/v1/leases/11/invoices?status=overdue&page_size=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["data"], 1)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, ts.invoices.lastList.Status)
	assert.Equal(t, 5, ts.invoices.lastList.PageSize)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/leases/11/invoices?status=VOID", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyPayment(t *testing.T) {
	ts := newTestServer(t, false)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/invoices/42/payments",
		`{"amount":"200.00","method":"MPESA","reference":" QX12 "}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, snowflake.ID(42), ts.payments.lastApply.InvoiceID)
	assert.Equal(t, "QX12", ts.payments.lastApply.Reference)
	data := body["data"].(map[string]any)
	assert.Equal(t, "300", data["remaining"])
}

func TestApplyPaymentExcessReturnsReason(t *testing.T) {
	ts := newTestServer(t, false)
	ts.payments.applyErr = fmt.Errorf("%w: amount 600.00 exceeds remaining balance 500.00", paymentdomain.ErrExcessPayment)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/invoices/42/payments", `{"amount":"600.00","method":"CASH"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "excess_payment", errorField(t, body, "code"))
	assert.Contains(t, errorField(t, body, "message"), "exceeds remaining balance 500.00")
}

func TestApplyPaymentUnknownMethod(t *testing.T) {
	ts := newTestServer(t, false)
	ts.payments.applyErr = paymentdomain.ErrInvalidMethod

	rec, body := ts.do(t, http.MethodPost, "/api/v1/invoices/42/payments", `{"amount":"10","method":"CHEQUE"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := errorField(t, body, "errors").([]any)
	assert.Equal(t, "method", fields[0].(map[string]any)["field"])
}

func TestListInvoicePayments(t *testing.T) {
	ts := newTestServer(t, false)
	ts.invoices.invoices[42] = invoicedomain.Invoice{ID: 42}
	ts.payments.payments = []paymentdomain.Payment{
		{ID: 1, InvoiceID: 42, Amount: decimal.NewFromInt(100)},
		{ID: 2, InvoiceID: 43, Amount: decimal.NewFromInt(50)},
	}

	rec, body := ts.do(t, http.MethodGet, "/api/v1/invoices/42/payments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/invoices/43/payments", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReversePaymentUsesActorHeader(t *testing.T) {
	ts := newTestServer(t, false)

	rec, body := ts.do(t, http.MethodPost, "/api/v1/payments/77/reverse", `{"reason":"bounced"}`,
		map[string]string{HeaderActorID: "user-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "user-9", ts.payments.lastReverse.Actor)
	assert.Equal(t, "bounced", ts.payments.lastReverse.Reason)
	assert.Equal(t, "payment reversed", body["data"].(map[string]any)["message"])
}

func TestReversePaymentAlreadyReversed(t *testing.T) {
	ts := newTestServer(t, false)
	ts.payments.reverseErr = paymentdomain.ErrAlreadyReversed

	rec, body := ts.do(t, http.MethodPost, "/api/v1/payments/77/reverse", `{"reason":"dup"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_reversed", errorField(t, body, "code"))
}

func TestListPaymentAuditLogs(t *testing.T) {
	ts := newTestServer(t, false)
	ts.payments.payments = []paymentdomain.Payment{{ID: 77, OrgID: 4, InvoiceID: 9}}
	ts.audit.logs = []auditdomain.AuditLog{{ID: 1, OrgID: 4, Action: auditdomain.ActionPaymentApplied, TargetType: "payment"}}

	rec, body := ts.do(t, http.MethodGet, "/api/v1/payments/77/audit-logs?page_size=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, snowflake.ID(4), ts.audit.lastList.OrgID)
	assert.Equal(t, "payment", ts.audit.lastList.TargetType)
	assert.Equal(t, "77", ts.audit.lastList.TargetID)
	assert.Equal(t, 5, ts.audit.lastList.PageSize)
	assert.Len(t, body["data"].([]any), 1)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/payments/78/audit-logs", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntityReports(t *testing.T) {
	ts := newTestServer(t, false)

	rec, body := ts.do(t, http.MethodGet, "/api/v1/entities/5/summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "200.05", data["cash_in_bank"])
	assert.Equal(t, "450.05", data["outstanding_arrears"])

	rec, body = ts.do(t, http.MethodGet, "/api/v1/entities/5/ledger", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KES", body["data"].(map[string]any)["currency"])
}

func TestCronRequiresSecret(t *testing.T) {
	ts := newTestServer(t, true)

	rec, _ := ts.do(t, http.MethodPost, "/internal/cron/postings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/internal/cron/postings", "", map[string]string{HeaderCronSecret: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/internal/cron/postings", "", map[string]string{"Authorization": "Bearer " + testCronSecret})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/internal/cron/postings", "", map[string]string{HeaderCronSecret: testCronSecret})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCronPostingsClampsLimit(t *testing.T) {
	ts := newTestServer(t, false)
	ts.ledger.retry = ledgerdomain.RetryResult{Attempted: 2, Posted: 1, Failed: 1}

	rec, body := ts.do(t, http.MethodPost, "/internal/cron/postings?limit=500", "", map[string]string{HeaderCronSecret: testCronSecret})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, ts.ledger.retryN)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["failed"])

	ts.ledger.retry = ledgerdomain.RetryResult{Attempted: 2, Failed: 2}
	rec, _ = ts.do(t, http.MethodPost, "/internal/cron/postings?limit=10", "", map[string]string{HeaderCronSecret: testCronSecret})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 10, ts.ledger.retryN)
}

func TestCronBillingReportsLeaseFailuresInsideOK(t *testing.T) {
	broken := activeLease(2)
	broken.RentAmount = decimal.Zero
	ts := newTestServer(t, true, activeLease(1), broken)

	rec, body := ts.do(t, http.MethodPost, "/internal/cron/billing", "", map[string]string{HeaderCronSecret: testCronSecret})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["generated"])
	assert.EqualValues(t, 1, data["failed"])
	assert.Len(t, data["errors"], 1)
}

func TestCronBillingTotalFailure(t *testing.T) {
	broken := activeLease(2)
	broken.RentAmount = decimal.Zero
	ts := newTestServer(t, true, broken)

	rec, body := ts.do(t, http.MethodPost, "/internal/cron/billing", "", map[string]string{HeaderCronSecret: testCronSecret})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "billing_run_failed", errorField(t, body, "code"))
	assert.EqualValues(t, 1, body["data"].(map[string]any)["failed"])
}

func TestCronBillingWithoutScheduler(t *testing.T) {
	ts := newTestServer(t, false)

	rec, _ := ts.do(t, http.MethodPost, "/internal/cron/billing", "", map[string]string{HeaderCronSecret: testCronSecret})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
