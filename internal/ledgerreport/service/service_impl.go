package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentledger/internal/config"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	reportdomain "github.com/smallbiznis/rentledger/internal/ledgerreport/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    ledgerdomain.Repository
	Billing *config.BillingConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    ledgerdomain.Repository
	billing *config.BillingConfigHolder
}

func NewService(p Params) reportdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledgerreport.service"),
		repo:    p.Repo,
		billing: p.Billing,
	}
}

func (s *Service) ComputeAccountBalance(ctx context.Context, accountID snowflake.ID) (reportdomain.AccountBalance, error) {
	account, err := s.repo.FindAccountByID(ctx, s.db, accountID)
	if err != nil {
		return reportdomain.AccountBalance{}, err
	}
	if account == nil {
		return reportdomain.AccountBalance{}, ledgerdomain.ErrAccountNotFound
	}
	balances, err := s.balances(ctx, []ledgerdomain.Account{*account})
	if err != nil {
		return reportdomain.AccountBalance{}, err
	}
	return balances[0], nil
}

func (s *Service) ComputeLedger(ctx context.Context, entityID snowflake.ID) (reportdomain.Ledger, error) {
	ledger := reportdomain.Ledger{
		EntityID: entityID,
		Currency: s.billing.Get().DefaultCurrency,
		Accounts: []reportdomain.AccountBalance{},
	}

	entity, err := s.repo.FindEntityByID(ctx, s.db, entityID)
	if err != nil {
		return ledger, err
	}
	if entity == nil {
		s.log.Debug("ledgerreport.entity.missing", zap.String("entity_id", entityID.String()))
		return ledger, nil
	}
	ledger.Currency = entity.Currency

	accounts, err := s.repo.ListAccounts(ctx, s.db, entityID)
	if err != nil {
		return ledger, err
	}
	balances, err := s.balances(ctx, accounts)
	if err != nil {
		return ledger, err
	}
	ledger.Accounts = balances
	return ledger, nil
}

func (s *Service) ComputeSummary(ctx context.Context, entityID snowflake.ID) (reportdomain.Summary, error) {
	summary := reportdomain.Summary{
		CashInBank:         decimal.Zero,
		OutstandingArrears: decimal.Zero,
		Currency:           s.billing.Get().DefaultCurrency,
	}

	entity, err := s.repo.FindEntityByID(ctx, s.db, entityID)
	if err != nil {
		return summary, err
	}
	if entity == nil {
		return summary, nil
	}
	summary.Currency = entity.Currency

	accounts, err := s.repo.FindAccountsByKeys(ctx, s.db, entityID, []ledgerdomain.AccountKey{
		ledgerdomain.AccountKeyCashInBank,
		ledgerdomain.AccountKeyAccountsReceivable,
	})
	if err != nil {
		return summary, err
	}
	balances, err := s.balances(ctx, accounts)
	if err != nil {
		return summary, err
	}
	for i, account := range accounts {
		switch account.Key {
		case ledgerdomain.AccountKeyCashInBank:
			summary.CashInBank = balances[i].Balance
		case ledgerdomain.AccountKeyAccountsReceivable:
			summary.OutstandingArrears = balances[i].Balance
		}
	}
	return summary, nil
}

// balances returns one entry per account in input order. Accounts without
// lines report zero totals.
func (s *Service) balances(ctx context.Context, accounts []ledgerdomain.Account) ([]reportdomain.AccountBalance, error) {
	if len(accounts) == 0 {
		return []reportdomain.AccountBalance{}, nil
	}
	ids := make([]snowflake.ID, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}
	totals, err := s.repo.SumByAccount(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byAccount := make(map[snowflake.ID]ledgerdomain.AccountTotals, len(totals))
	for _, t := range totals {
		byAccount[t.AccountID] = t
	}

	out := make([]reportdomain.AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		t := byAccount[account.ID]
		// Drivers without an exact numeric SUM may return floats.
		debits := money.Round(t.TotalDebits)
		credits := money.Round(t.TotalCredits)
		out = append(out, reportdomain.AccountBalance{
			AccountID:    account.ID,
			AccountCode:  account.Code,
			AccountName:  account.Name,
			Type:         account.Type,
			Balance:      account.Type.Balance(debits, credits),
			TotalDebits:  debits,
			TotalCredits: credits,
		})
	}
	return out, nil
}
