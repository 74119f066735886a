package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotActivated is returned when a posting targets an account that is
	// not in the ACTIVATED state.
	ErrNotActivated = errors.New("account not activated")

	// ErrInvalidAmount is returned for postings that are not positive or
	// carry more than MoneyScale decimal places.
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")
)

// MoneyScale is the number of decimal places stored for balances and amounts.
const MoneyScale = 2

// ValidAmount reports whether amount is positive and representable at
// MoneyScale without rounding.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(MoneyScale))
}

// applyDebit is shared by every backend so that the insufficient-funds
// boundary stays identical: a debit equal to the balance is rejected.
func applyDebit(acct Account, amount decimal.Decimal, now time.Time) (Account, error) {
	if !ValidAmount(amount) {
		return Account{}, ErrInvalidAmount
	}
	if acct.Status != StatusActivated {
		return Account{}, ErrNotActivated
	}
	if acct.Balance.LessThanOrEqual(amount) {
		return Account{}, ErrInsufficientFunds
	}
	acct.Balance = acct.Balance.Sub(amount)
	acct.UpdatedAt = now
	return acct, nil
}

func applyCredit(acct Account, amount decimal.Decimal, now time.Time) (Account, error) {
	if !ValidAmount(amount) {
		return Account{}, ErrInvalidAmount
	}
	if acct.Status != StatusActivated {
		return Account{}, ErrNotActivated
	}
	acct.Balance = acct.Balance.Add(amount)
	acct.UpdatedAt = now
	return acct, nil
}

func applyClose(acct Account, now time.Time) (Account, error) {
	if acct.Status == StatusClosed {
		return acct, nil
	}
	if !acct.Balance.IsZero() {
		return Account{}, ErrBalanceNotCleared
	}
	acct.Status = StatusClosed
	acct.UpdatedAt = now
	return acct, nil
}

func matchesFilter(txn Transaction, f TransactionFilter) bool {
	if txn.Status != TransactionSuccess {
		return false
	}
	if txn.SenderAccountNumber != f.AccountNumber && txn.ReceiverAccountNumber != f.AccountNumber {
		return false
	}
	if !f.From.IsZero() && txn.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && txn.CreatedAt.After(f.To) {
		return false
	}
	return true
}
