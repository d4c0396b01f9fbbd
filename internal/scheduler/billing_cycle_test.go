package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/rentledger/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/rentledger/internal/invoice/service"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	leaserepository "github.com/smallbiznis/rentledger/internal/lease/repository"
	leaseservice "github.com/smallbiznis/rentledger/internal/lease/service"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/rentledger/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/rentledger/internal/ledger/service"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/rentledger/internal/payment/repository"
	"github.com/smallbiznis/rentledger/internal/seed"
	utilitydomain "github.com/smallbiznis/rentledger/internal/utility/domain"
	utilityrepository "github.com/smallbiznis/rentledger/internal/utility/repository"
	utilityservice "github.com/smallbiznis/rentledger/internal/utility/service"
	"github.com/smallbiznis/rentledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestBillingCycleAgainstDatabase(t *testing.T) {
	db := dbtest.Open(t,
		&leasedomain.Lease{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&utilitydomain.UtilityBill{},
		&utilitydomain.LeaseUtility{},
		&utilitydomain.UtilityReading{},
		&paymentdomain.Payment{},
		&ledgerdomain.FinancialEntity{},
		&ledgerdomain.Account{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
	)
	node, err := snowflake.NewNode(11)
	require.NoError(t, err)
	fake := clock.NewFakeClock(runAt)
	log := zap.NewNop()
	billing := config.NewStaticBillingConfigHolder(config.BillingPolicy{
		DefaultDueDay: 5, DefaultCurrency: "KES", Workers: 1,
	})

	cfg := config.Config{}
	cfg.Billing.TxRetries = 1

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Config: cfg,
		Repo:        ledgerrepository.Provide(),
		InvoiceRepo: invoicerepository.Provide(),
		PaymentRepo: paymentrepository.Provide(),
	})
	leases := leaseservice.NewService(leaseservice.Params{DB: db, Log: log, Repo: leaserepository.Provide()})
	invoices := invoiceservice.NewService(invoiceservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo:       invoicerepository.Provide(),
		LeaseSvc:   leases,
		UtilitySvc: utilityservice.NewService(utilityservice.Params{DB: db, Log: log, Repo: utilityrepository.Provide()}),
		Ledger:     ledger,
		Billing:    billing,
	})

	_, err = seed.EnsureOrgLedger(context.Background(), db, node, 7, "Acme", "KES")
	require.NoError(t, err)
	seedLeases(t, db, activeLease(101), activeLease(102))
	terminated := activeLease(103)
	terminated.Status = leasedomain.LeaseStatusTerminated
	seedLeases(t, db, terminated)

	sched, err := New(Params{
		Log: log, GenID: node, Clock: fake,
		Billing:    billing,
		LeaseSvc:   leases,
		InvoiceSvc: invoices,
		LedgerSvc:  ledger,
	})
	require.NoError(t, err)

	first, err := sched.RunBillingCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Generated)
	assert.Equal(t, 0, first.Failed)

	var rows []invoicedomain.Invoice
	require.NoError(t, db.Order("lease_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, inv := range rows {
		assert.Equal(t, invoicedomain.InvoiceTypeRent, inv.Type)
		assert.Equal(t, invoicedomain.SourceBillingCycle, inv.Source)
		assert.Equal(t, ledgerdomain.PostingStatusPosted, inv.PostingStatus)
		assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(500)))
		assert.True(t, inv.DueDate.Equal(time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)))
	}

	second, err := sched.RunBillingCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Equal(t, 2, second.Skipped)

	var invoiceCount, entryCount int64
	require.NoError(t, db.Model(&invoicedomain.Invoice{}).Count(&invoiceCount).Error)
	require.NoError(t, db.Model(&ledgerdomain.JournalEntry{}).Count(&entryCount).Error)
	assert.Equal(t, int64(2), invoiceCount)
	assert.Equal(t, int64(2), entryCount)

	fake.Set(time.Date(2026, time.April, 1, 6, 0, 0, 0, time.UTC))
	third, err := sched.RunBillingCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, third.Generated)
}

func seedLeases(t *testing.T, db *gorm.DB, leases ...leasedomain.Lease) {
	t.Helper()
	for i := range leases {
		leases[i].TenantID = 8
		leases[i].UnitID = 9
		leases[i].CreatedAt = runAt
		leases[i].UpdatedAt = runAt
	}
	require.NoError(t, db.Create(&leases).Error)
}
