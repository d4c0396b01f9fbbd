package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// PostingResult reports the entry for a source document.
type PostingResult struct {
	Entry JournalEntry
	// AlreadyPosted is true when the call found an existing entry and wrote nothing.
	AlreadyPosted bool
}

// RetryResult summarizes one posting retry sweep.
type RetryResult struct {
	Attempted int      `json:"attempted"`
	Posted    int      `json:"posted"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Service posts business documents to the general ledger. Every method is
// idempotent: calling it again for a posted document returns the existing entry.
type Service interface {
	PostInvoice(ctx context.Context, invoiceID snowflake.ID) (PostingResult, error)
	PostPayment(ctx context.Context, paymentID snowflake.ID) (PostingResult, error)
	PostPaymentReversal(ctx context.Context, paymentID snowflake.ID) (PostingResult, error)
	// RetryPending re-attempts documents still marked PENDING, oldest first.
	RetryPending(ctx context.Context, limit int) (RetryResult, error)
}
