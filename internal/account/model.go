package account

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/fundstransfer/internal/ledger"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = ledger.ErrAccountNotFound

	// ErrNotActivated is returned for PENDING and CLOSED accounts alike.
	ErrNotActivated = ledger.ErrNotActivated

	// ErrBalanceNotCleared is returned when closing an account holding funds.
	ErrBalanceNotCleared = ledger.ErrBalanceNotCleared

	// ErrInvalidSecret is returned for a transaction secret that is not exactly four digits.
	ErrInvalidSecret = errors.New("transaction secret must be exactly 4 digits")
)

// Overview is the read model of an account returned to its owner.
type Overview struct {
	AccountNumber string
	Balance       decimal.Decimal
	Tier          ledger.Tier
	Status        ledger.Status
	UpdatedAt     time.Time
}

func overviewOf(acct ledger.Account) Overview {
	return Overview{
		AccountNumber: acct.AccountNumber,
		Balance:       acct.Balance,
		Tier:          acct.Tier,
		Status:        acct.Status,
		UpdatedAt:     acct.UpdatedAt,
	}
}

// ValidSecret reports whether secret has the transaction secret format.
func ValidSecret(secret string) bool {
	if len(secret) != 4 {
		return false
	}
	for i := 0; i < len(secret); i++ {
		if secret[i] < '0' || secret[i] > '9' {
			return false
		}
	}
	return true
}
