package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/rentledger/internal/audit/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	utilitydomain "github.com/smallbiznis/rentledger/internal/utility/domain"
	dbutil "github.com/smallbiznis/rentledger/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every table the service owns or reads, in dependency order.
func Models() []any {
	return []any{
		&leasedomain.Lease{},
		&utilitydomain.UtilityBill{},
		&utilitydomain.LeaseUtility{},
		&utilitydomain.UtilityReading{},
		&ledgerdomain.FinancialEntity{},
		&ledgerdomain.Account{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&paymentdomain.Payment{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
		&auditdomain.AuditLog{},
	}
}

// Apply brings the schema up to date. PostgreSQL uses the versioned SQL
// migrations; other dialects fall back to AutoMigrate, which is how local
// sqlite databases and tests are prepared.
func Apply(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dbType != dbutil.TypePostgres {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

// RunMigrations applies the embedded PostgreSQL migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	src, err := Source()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Source exposes the embedded migrations as a golang-migrate source driver.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	driver, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return driver, nil
}
