package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// TransactionWithRetry runs fn inside a transaction and replays the whole
// transaction up to attempts times while it fails with a retryable error.
func TransactionWithRetry(ctx context.Context, conn *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = conn.WithContext(ctx).Transaction(fn)
		if err == nil || !IsRetryableTxErr(err) || attempt == attempts {
			return err
		}
		backoff := time.Duration(attempt*attempt) * 20 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
