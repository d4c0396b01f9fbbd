package domain

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateBalanced(t *testing.T) {
	amt := decimal.RequireFromString("500.00")

	assert.NoError(t, ValidateBalanced([]JournalLine{
		DebitLine(1, amt, ""),
		CreditLine(2, amt, ""),
	}))
	assert.ErrorIs(t, ValidateBalanced(nil), ErrEmptyEntry)
	assert.ErrorIs(t, ValidateBalanced([]JournalLine{DebitLine(1, amt, "")}), ErrEmptyEntry)
	assert.ErrorIs(t, ValidateBalanced([]JournalLine{
		DebitLine(1, amt, ""),
		CreditLine(2, decimal.RequireFromString("499.99"), ""),
	}), ErrUnbalancedEntry)
	assert.ErrorIs(t, ValidateBalanced([]JournalLine{
		DebitLine(1, amt.Neg(), ""),
		CreditLine(2, amt.Neg(), ""),
	}), ErrInvalidLineAmount)
	assert.ErrorIs(t, ValidateBalanced([]JournalLine{
		{AccountID: 1, Debit: amt, Credit: amt},
		CreditLine(2, amt, ""),
	}), ErrInvalidLineAmount)
	assert.ErrorIs(t, ValidateBalanced([]JournalLine{
		DebitLine(0, amt, ""),
		CreditLine(2, amt, ""),
	}), ErrInvalidAccount)
}

// Splitting a random total across random credit lines always balances against a
// single debit of the total.
func TestValidateBalancedRandomSplits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		parts := rng.Intn(5) + 1
		credits := make([]JournalLine, 0, parts)
		total := decimal.Zero
		for p := 0; p < parts; p++ {
			cents := decimal.New(int64(rng.Intn(1_000_000)+1), -2)
			total = total.Add(cents)
			credits = append(credits, CreditLine(2, cents, ""))
		}
		lines := append([]JournalLine{DebitLine(1, total, "")}, credits...)
		assert.NoError(t, ValidateBalanced(lines))
	}
}

func TestAccountTypeBalance(t *testing.T) {
	debits, credits := decimal.NewFromInt(1000), decimal.NewFromInt(300)

	assert.Equal(t, "700", AccountTypeAsset.Balance(debits, credits).String())
	assert.Equal(t, "700", AccountTypeExpense.Balance(debits, credits).String())
	assert.Equal(t, "-700", AccountTypeIncome.Balance(debits, credits).String())
	assert.Equal(t, "-700", AccountTypeLiability.Balance(debits, credits).String())
	assert.Equal(t, "-700", AccountTypeEquity.Balance(debits, credits).String())
	assert.False(t, AccountType("CONTRA").Valid())
}
