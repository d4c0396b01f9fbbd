package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentledger/internal/config"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"github.com/smallbiznis/rentledger/internal/ledger/repository"
	reportdomain "github.com/smallbiznis/rentledger/internal/ledgerreport/domain"
	"github.com/smallbiznis/rentledger/internal/seed"
	"github.com/smallbiznis/rentledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc    reportdomain.Service
	db     *gorm.DB
	node   *snowflake.Node
	entity ledgerdomain.FinancialEntity
	byKey  map[ledgerdomain.AccountKey]ledgerdomain.Account
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dbtest.Open(t,
		&ledgerdomain.FinancialEntity{},
		&ledgerdomain.Account{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
	)
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	entity, err := seed.EnsureOrgLedger(context.Background(), db, node, 7, "Acme", "KES")
	require.NoError(t, err)

	var accounts []ledgerdomain.Account
	require.NoError(t, db.Where("entity_id = ?", entity.ID).Find(&accounts).Error)
	byKey := make(map[ledgerdomain.AccountKey]ledgerdomain.Account, len(accounts))
	for _, a := range accounts {
		byKey[a.Key] = a
	}

	svc := NewService(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
		Billing: config.NewStaticBillingConfigHolder(config.BillingPolicy{
			DefaultCurrency: "USD", DefaultDueDay: 5, Workers: 1,
		}),
	})
	return fixture{svc: svc, db: db, node: node, entity: entity, byKey: byKey}
}

func (f fixture) post(t *testing.T, debitKey, creditKey ledgerdomain.AccountKey, amount string) {
	t.Helper()
	now := time.Now().UTC()
	entry := ledgerdomain.JournalEntry{
		ID:         f.node.Generate(),
		EntityID:   f.entity.ID,
		SourceType: ledgerdomain.SourceTypeInvoice,
		SourceID:   f.node.Generate(),
		Currency:   "KES",
		OccurredAt: now,
		CreatedAt:  now,
	}
	require.NoError(t, f.db.Create(&entry).Error)
	value := decimal.RequireFromString(amount)
	lines := []ledgerdomain.JournalLine{
		ledgerdomain.DebitLine(f.byKey[debitKey].ID, value, ""),
		ledgerdomain.CreditLine(f.byKey[creditKey].ID, value, ""),
	}
	for i := range lines {
		lines[i].ID = f.node.Generate()
		lines[i].EntryID = entry.ID
		lines[i].CreatedAt = now
	}
	require.NoError(t, f.db.Create(&lines).Error)
}

func TestComputeAccountBalanceNormalSign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	cash := ledgerdomain.AccountKeyCashInBank
	income := ledgerdomain.AccountKeyRentalIncome
	ar := ledgerdomain.AccountKeyAccountsReceivable

	// Cash: 1000 debit, 300 credit. Rental income: 1000 credit, 300 debit.
	f.post(t, cash, income, "1000")
	f.post(t, income, cash, "300")

	cashBalance, err := f.svc.ComputeAccountBalance(ctx, f.byKey[cash].ID)
	require.NoError(t, err)
	assert.True(t, cashBalance.TotalDebits.Equal(decimal.NewFromInt(1000)))
	assert.True(t, cashBalance.TotalCredits.Equal(decimal.NewFromInt(300)))
	assert.True(t, cashBalance.Balance.Equal(decimal.NewFromInt(700)), cashBalance.Balance.String())

	incomeBalance, err := f.svc.ComputeAccountBalance(ctx, f.byKey[income].ID)
	require.NoError(t, err)
	assert.True(t, incomeBalance.Balance.Equal(decimal.NewFromInt(-700)), incomeBalance.Balance.String())

	empty, err := f.svc.ComputeAccountBalance(ctx, f.byKey[ar].ID)
	require.NoError(t, err)
	assert.True(t, empty.Balance.IsZero())

	_, err = f.svc.ComputeAccountBalance(ctx, 1)
	assert.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)
}

func TestComputeLedgerOrdersByCode(t *testing.T) {
	f := setup(t)
	f.post(t, ledgerdomain.AccountKeyAccountsReceivable, ledgerdomain.AccountKeyRentalIncome, "500.25")

	ledger, err := f.svc.ComputeLedger(context.Background(), f.entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "KES", ledger.Currency)
	require.Len(t, ledger.Accounts, len(seed.DefaultChart))
	for i := 1; i < len(ledger.Accounts); i++ {
		assert.Less(t, ledger.Accounts[i-1].AccountCode, ledger.Accounts[i].AccountCode)
	}
	assert.Equal(t, "1200", ledger.Accounts[1].AccountCode)
	assert.True(t, ledger.Accounts[1].Balance.Equal(decimal.RequireFromString("500.25")))
}

func TestComputeLedgerUnknownEntityIsEmpty(t *testing.T) {
	f := setup(t)

	ledger, err := f.svc.ComputeLedger(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, ledger.Accounts)
	assert.Equal(t, "USD", ledger.Currency)

	summary, err := f.svc.ComputeSummary(context.Background(), 999)
	require.NoError(t, err)
	assert.True(t, summary.CashInBank.IsZero())
	assert.True(t, summary.OutstandingArrears.IsZero())
	assert.Equal(t, "USD", summary.Currency)
}

func TestComputeLedgerEntityWithoutAccounts(t *testing.T) {
	f := setup(t)
	bare, err := seed.EnsureFinancialEntity(context.Background(), f.db, f.node, 8, "Bare", "KES")
	require.NoError(t, err)

	ledger, err := f.svc.ComputeLedger(context.Background(), bare.ID)
	require.NoError(t, err)
	assert.Empty(t, ledger.Accounts)
}

func TestComputeSummary(t *testing.T) {
	f := setup(t)
	ar := ledgerdomain.AccountKeyAccountsReceivable
	cash := ledgerdomain.AccountKeyCashInBank

	f.post(t, ar, ledgerdomain.AccountKeyRentalIncome, "500")
	f.post(t, ar, ledgerdomain.AccountKeyUtilityIncome, "150.10")
	f.post(t, cash, ar, "200.05")

	summary, err := f.svc.ComputeSummary(context.Background(), f.entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "KES", summary.Currency)
	assert.True(t, summary.CashInBank.Equal(decimal.RequireFromString("200.05")), summary.CashInBank.String())
	assert.True(t, summary.OutstandingArrears.Equal(decimal.RequireFromString("450.05")), summary.OutstandingArrears.String())
}
