package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rentledger/internal/audit"
	auditdomain "github.com/smallbiznis/rentledger/internal/audit/domain"
	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/smallbiznis/rentledger/internal/invoice"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/lease"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	"github.com/smallbiznis/rentledger/internal/ledger"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"github.com/smallbiznis/rentledger/internal/ledgerreport"
	ledgerreportdomain "github.com/smallbiznis/rentledger/internal/ledgerreport/domain"
	"github.com/smallbiznis/rentledger/internal/observability"
	obslogger "github.com/smallbiznis/rentledger/internal/observability/logger"
	obstracing "github.com/smallbiznis/rentledger/internal/observability/tracing"
	"github.com/smallbiznis/rentledger/internal/payment"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/smallbiznis/rentledger/internal/utility"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	lease.Module,
	utility.Module,
	invoice.Module,
	ledger.Module,
	ledgerreport.Module,
	payment.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log.Named("http"), obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	return NewEngine(obsCfg, log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http.server.failed", zap.Error(err))
				}
			}()
			log.Info("http.server.started", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
	leaseSvc   leasedomain.Service
	ledgerSvc  ledgerdomain.Service
	reportSvc  ledgerreportdomain.Service
	auditSvc   auditdomain.Service

	scheduler *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
	LeaseSvc   leasedomain.Service
	LedgerSvc  ledgerdomain.Service
	ReportSvc  ledgerreportdomain.Service
	AuditSvc   auditdomain.Service

	Scheduler *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        log.Named("http.server"),
		invoiceSvc: p.InvoiceSvc,
		paymentSvc: p.PaymentSvc,
		leaseSvc:   p.LeaseSvc,
		ledgerSvc:  p.LedgerSvc,
		reportSvc:  p.ReportSvc,
		auditSvc:   p.AuditSvc,
		scheduler:  p.Scheduler,
	}

	svc.registerAPIRoutes()
	svc.registerCronRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", ActorContext())

	// -------- Invoices --------
	api.POST("/invoices/rent", s.CreateRentInvoice)
	api.POST("/invoices/utility", s.CreateUtilityInvoice)
	api.POST("/invoices", s.CreateManualInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.GET("/leases/:id/invoices", s.ListLeaseInvoices)

	// -------- Payments --------
	api.POST("/invoices/:id/payments", s.ApplyPayment)
	api.GET("/invoices/:id/payments", s.ListInvoicePayments)
	api.POST("/payments/:id/reverse", s.ReversePayment)
	api.GET("/payments/:id/audit-logs", s.ListPaymentAuditLogs)

	// -------- Ledger --------
	api.GET("/entities/:id/ledger", s.GetEntityLedger)
	api.GET("/entities/:id/summary", s.GetEntitySummary)
}

func (s *Server) registerCronRoutes() {
	cron := s.engine.Group("/internal/cron", s.CronSecretRequired())

	cron.POST("/billing", s.RunBillingCycle)
	cron.POST("/postings", s.RetryPendingPostings)
}
