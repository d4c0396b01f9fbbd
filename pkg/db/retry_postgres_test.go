package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestTransactionWithRetryPostgresSerializationFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE invoices").WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE invoices").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = TransactionWithRetry(context.Background(), conn, 3, func(tx *gorm.DB) error {
		return tx.Exec("UPDATE invoices SET status = ? WHERE id = ?", "PAID", 1).Error
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
