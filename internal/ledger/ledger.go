package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the source account balance does not
	// strictly exceed the requested debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound is returned when no account matches the lookup key.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when an owner already holds an account.
	ErrAccountExists = errors.New("account already exists for owner")

	// ErrDuplicateAccountNumber signals an account number collision. Callers
	// retry with a freshly generated number.
	ErrDuplicateAccountNumber = errors.New("duplicate account number")

	// ErrDuplicateReference signals a transaction reference collision. Callers
	// retry with a freshly generated reference inside the same unit of work.
	ErrDuplicateReference = errors.New("duplicate transaction reference")

	// ErrBalanceNotCleared is returned when closing an account that still holds funds.
	ErrBalanceNotCleared = errors.New("account balance not cleared")

	// ErrAccountOutsideUnit is returned when a unit of work touches an account
	// it did not lock.
	ErrAccountOutsideUnit = errors.New("account not locked by this transfer")
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActivated Status = "ACTIVATED"
	StatusClosed    Status = "CLOSED"
)

// Tier is the account service level. Limits per tier are reserved.
type Tier string

const (
	TierLevel1 Tier = "LEVEL1"
	TierLevel2 Tier = "LEVEL2"
	TierLevel3 Tier = "LEVEL3"
)

// TransactionStatus is the outcome stamped on a recorded transaction.
type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// Account is a single customer ledger.
type Account struct {
	ID            int64
	OwnerID       string
	Balance       decimal.Decimal
	Status        Status
	Tier          Tier
	AccountNumber string
	SecretHash    []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transaction is an append-only record of a completed transfer. Party
// names and numbers are snapshots taken at transfer time.
type Transaction struct {
	ID                    int64
	SenderAccountNumber   string
	ReceiverAccountNumber string
	SenderName            string
	ReceiverName          string
	Amount                decimal.Decimal
	ReferenceNum          string
	Status                TransactionStatus
	Description           string
	CreatedAt             time.Time
}

// TransactionFilter selects SUCCESS transactions touching AccountNumber
// created within [From, To]. Limit <= 0 means no limit.
type TransactionFilter struct {
	AccountNumber string
	From          time.Time
	To            time.Time
	Offset        int
	Limit         int
	// Ascending orders oldest first; the default is newest first.
	Ascending bool
}

// LedgerTx is the transfer-scoped unit of work. Every mutation made through
// it becomes durable together or not at all.
type LedgerTx interface {
	// Debit subtracts amount from the account, failing with
	// ErrInsufficientFunds when balance <= amount.
	Debit(ctx context.Context, accountID int64, amount decimal.Decimal) (Account, error)
	// Credit adds amount to the account unconditionally.
	Credit(ctx context.Context, accountID int64, amount decimal.Decimal) (Account, error)
	// Record appends a transaction, failing with ErrDuplicateReference when
	// the reference is already taken.
	Record(ctx context.Context, txn Transaction) (Transaction, error)
}

// Store defines the contract implemented by ledger backends.
type Store interface {
	CreateAccount(ctx context.Context, account Account) (Account, error)
	AccountByNumber(ctx context.Context, number string) (Account, error)
	AccountByOwner(ctx context.Context, ownerID string) (Account, error)
	AccountNumberExists(ctx context.Context, number string) (bool, error)
	UpdateSecret(ctx context.Context, accountID int64, hash []byte) error
	Close(ctx context.Context, accountID int64) (Account, error)

	// WithinTransfer locks both accounts in ascending id order, runs fn and
	// commits its effects only when fn returns nil.
	WithinTransfer(ctx context.Context, senderID, receiverID int64, fn func(LedgerTx) error) error

	ReferenceExists(ctx context.Context, reference string) (bool, error)
	Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// lockOrder returns the two ids in the global lock order.
func lockOrder(a, b int64) (int64, int64) {
	if a <= b {
		return a, b
	}
	return b, a
}
