package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"github.com/smallbiznis/rentledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountKeysMatchPostingKeys(t *testing.T) {
	assert.Equal(t, ledgerdomain.AccountKeyCashInBank, AccountKey("Cash in Bank"))
	assert.Equal(t, ledgerdomain.AccountKeyAccountsReceivable, AccountKey("Accounts Receivable"))
	assert.Equal(t, ledgerdomain.AccountKeyRentalIncome, AccountKey("Rental Income"))
	assert.Equal(t, ledgerdomain.AccountKeyUtilityIncome, AccountKey("Utility Income"))
}

func TestEnsureOrgLedgerIsIdempotent(t *testing.T) {
	db := dbtest.Open(t, &ledgerdomain.FinancialEntity{}, &ledgerdomain.Account{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := EnsureOrgLedger(ctx, db, node, 42, "Acme Rentals", "kes")
	require.NoError(t, err)
	assert.Equal(t, "KES", first.Currency)

	second, err := EnsureOrgLedger(ctx, db, node, 42, "Renamed", "KES")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Acme Rentals", second.Name)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.Account{}).Where("entity_id = ?", first.ID).Count(&count).Error)
	assert.EqualValues(t, len(DefaultChart), count)
}

func TestEnsureFinancialEntityValidates(t *testing.T) {
	db := dbtest.Open(t, &ledgerdomain.FinancialEntity{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	_, err = EnsureFinancialEntity(context.Background(), db, node, 0, "", "KES")
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidOrganization)
}
