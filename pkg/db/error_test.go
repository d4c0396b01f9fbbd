package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: invoices.lease_id")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsRetryableTxErr(t *testing.T) {
	assert.False(t, IsRetryableTxErr(nil))
	assert.True(t, IsRetryableTxErr(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryableTxErr(fmt.Errorf("reverse: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsRetryableTxErr(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryableTxErr(context.DeadlineExceeded))
}
