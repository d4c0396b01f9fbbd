package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/rentledger/internal/ledger/repository"
	"gorm.io/gorm"
)

const defaultEntityName = "Main"

type chartAccount struct {
	Code string
	Name string
	Type ledgerdomain.AccountType
}

// DefaultChart is the chart every financial entity starts with. Account keys
// are derived from the names, so the posting rules never depend on codes.
var DefaultChart = []chartAccount{
	{"1010", "Cash in Bank", ledgerdomain.AccountTypeAsset},
	{"1200", "Accounts Receivable", ledgerdomain.AccountTypeAsset},
	{"2100", "Tenant Deposits", ledgerdomain.AccountTypeLiability},
	{"3000", "Owner Equity", ledgerdomain.AccountTypeEquity},
	{"4000", "Rental Income", ledgerdomain.AccountTypeIncome},
	{"4100", "Utility Income", ledgerdomain.AccountTypeIncome},
	{"5000", "Maintenance Expense", ledgerdomain.AccountTypeExpense},
}

// AccountKey derives the stable key of an account name.
func AccountKey(name string) ledgerdomain.AccountKey {
	return ledgerdomain.AccountKey(slug.Make(name))
}

// EnsureFinancialEntity returns the org's entity, creating it when missing.
func EnsureFinancialEntity(ctx context.Context, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, name, currency string) (ledgerdomain.FinancialEntity, error) {
	if db == nil {
		return ledgerdomain.FinancialEntity{}, errors.New("seed database handle is required")
	}
	if orgID == 0 {
		return ledgerdomain.FinancialEntity{}, ledgerdomain.ErrInvalidOrganization
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultEntityName
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return ledgerdomain.FinancialEntity{}, ledgerdomain.ErrCurrencyMismatch
	}

	repo := ledgerrepository.Provide()
	entity := ledgerdomain.FinancialEntity{
		ID:        node.Generate(),
		OrgID:     orgID,
		Name:      name,
		Currency:  currency,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := repo.InsertEntity(ctx, db, &entity); err != nil {
		return ledgerdomain.FinancialEntity{}, err
	}
	stored, err := repo.FindEntityByOrg(ctx, db, orgID)
	if err != nil {
		return ledgerdomain.FinancialEntity{}, err
	}
	if stored == nil {
		return ledgerdomain.FinancialEntity{}, ledgerdomain.ErrEntityNotFound
	}
	return *stored, nil
}

// EnsureChartOfAccounts inserts any missing default accounts. Existing
// accounts are left untouched.
func EnsureChartOfAccounts(ctx context.Context, db *gorm.DB, node *snowflake.Node, entityID snowflake.ID) error {
	repo := ledgerrepository.Provide()
	now := time.Now().UTC()
	for _, a := range DefaultChart {
		if _, err := repo.InsertAccount(ctx, db, &ledgerdomain.Account{
			ID:        node.Generate(),
			EntityID:  entityID,
			Code:      a.Code,
			Key:       AccountKey(a.Name),
			Name:      a.Name,
			Type:      a.Type,
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// EnsureOrgLedger seeds the entity and its chart in one transaction.
func EnsureOrgLedger(ctx context.Context, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, name, currency string) (ledgerdomain.FinancialEntity, error) {
	var entity ledgerdomain.FinancialEntity
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entity, err = EnsureFinancialEntity(ctx, tx, node, orgID, name, currency)
		if err != nil {
			return err
		}
		return EnsureChartOfAccounts(ctx, tx, node, entity.ID)
	})
	return entity, err
}
