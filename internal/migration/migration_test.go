package migration

import (
	"testing"

	"github.com/smallbiznis/rentledger/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceListsEmbeddedMigrations(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, name, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "init_ledger", name)
}

func TestApplyAutoMigratesOutsidePostgres(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, Apply(db, "sqlite"))
	require.NoError(t, Apply(db, "sqlite"))

	for _, table := range []string{"leases", "invoices", "invoice_items", "payments", "financial_entities", "accounts", "journal_entries", "journal_lines", "audit_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("invoices", "ux_invoices_lease_type_period"))
	assert.True(t, db.Migrator().HasIndex("journal_entries", "ux_journal_entries_source"))
}

func TestApplyRequiresConnection(t *testing.T) {
	assert.Error(t, Apply(nil, "sqlite"))
	assert.Error(t, RunMigrations(nil))
}
