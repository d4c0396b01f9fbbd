package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if pgCode(err) == pgUniqueViolation {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return true
	case strings.Contains(msg, "Error 1062"): // MySQL
		return true
	case strings.Contains(msg, "UNIQUE constraint failed"): // SQLite
		return true
	}
	return false
}

// IsRetryableTxErr reports whether the whole transaction may be replayed:
// serialization failures, deadlocks and lock timeouts.
func IsRetryableTxErr(err error) bool {
	if err == nil {
		return false
	}
	switch pgCode(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 1213") || // MySQL deadlock
		strings.Contains(msg, "database is locked")
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
