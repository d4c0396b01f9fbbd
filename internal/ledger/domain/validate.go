package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyEntry          = errors.New("empty_journal_entry")
	ErrUnbalancedEntry     = errors.New("unbalanced_journal_entry")
	ErrInvalidLineAmount   = errors.New("invalid_line_amount")
	ErrInvalidAccount      = errors.New("invalid_account")
	ErrEntityNotFound      = errors.New("financial_entity_not_found")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrSourceNotFound      = errors.New("posting_source_not_found")
	ErrOriginalNotPosted   = errors.New("original_payment_not_posted")
	ErrPaymentNotReversed  = errors.New("payment_not_reversed")
	ErrNothingToPost       = errors.New("nothing_to_post")
	ErrCurrencyMismatch    = errors.New("currency_mismatch")
	ErrInvalidOrganization = errors.New("invalid_organization")
)

// ValidateBalanced rejects entries with no lines, negative or two-sided lines,
// and entries whose debits and credits differ.
func ValidateBalanced(lines []JournalLine) error {
	if len(lines) < 2 {
		return ErrEmptyEntry
	}
	debits, credits := decimal.Zero, decimal.Zero
	for _, line := range lines {
		if line.AccountID == 0 {
			return ErrInvalidAccount
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return ErrInvalidLineAmount
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return ErrInvalidLineAmount
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("%w: debits %s credits %s", ErrUnbalancedEntry, debits.StringFixed(2), credits.StringFixed(2))
	}
	return nil
}
