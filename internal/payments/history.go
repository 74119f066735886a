package payments

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/fundstransfer/internal/ledger"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// EntryType classifies a history entry relative to the requesting account.
type EntryType string

const (
	EntryCredit EntryType = "CREDIT"
	EntryDebit  EntryType = "DEBIT"
)

// Period is an inclusive time range.
type Period struct {
	From time.Time
	To   time.Time
}

func (p Period) validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return fmt.Errorf("%w: start and end time are required", ErrInvalidRequest)
	}
	if p.From.After(p.To) {
		return fmt.Errorf("%w: start time must not be after end time", ErrInvalidRequest)
	}
	return nil
}

// HistoryQuery selects one page of the caller's history. Page is zero based.
type HistoryQuery struct {
	OwnerID string
	Period  Period
	Page    int
	Size    int
}

// Entry is one history line seen from the requesting account.
type Entry struct {
	Timestamp        time.Time
	Amount           decimal.Decimal
	CounterpartyName string
	Type             EntryType
	Reference        string
}

// History returns the caller's successful transfers in the period, newest first.
func (s *Service) History(ctx context.Context, q HistoryQuery) ([]Entry, error) {
	if err := q.Period.validate(); err != nil {
		return nil, err
	}
	size := q.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if q.Page < 0 || q.Page > math.MaxInt32/size {
		return nil, fmt.Errorf("%w: page out of range", ErrInvalidRequest)
	}

	acct, err := s.store.AccountByOwner(ctx, q.OwnerID)
	if err != nil {
		return nil, err
	}
	txns, err := s.store.Transactions(ctx, ledger.TransactionFilter{
		AccountNumber: acct.AccountNumber,
		From:          q.Period.From,
		To:            q.Period.To,
		Offset:        q.Page * size,
		Limit:         size,
	})
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, ErrNoTransactions
	}

	entries := make([]Entry, 0, len(txns))
	for _, txn := range txns {
		entry := Entry{Timestamp: txn.CreatedAt, Amount: txn.Amount, Reference: txn.ReferenceNum}
		if txn.SenderAccountNumber == acct.AccountNumber {
			entry.Type = EntryDebit
			entry.CounterpartyName = txn.ReceiverName
		} else {
			entry.Type = EntryCredit
			entry.CounterpartyName = txn.SenderName
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// StatementRow is one transaction line handed to the statement renderer.
type StatementRow struct {
	Reference    string
	CreatedAt    time.Time
	Amount       decimal.Decimal
	SenderName   string
	ReceiverName string
	Description  string
}

// Statement is the ordered transaction export of one account.
type Statement struct {
	AccountNumber string
	HolderName    string
	Period        Period
	Rows          []StatementRow
}

// Statement collects every successful transfer of the caller in the period,
// oldest first.
func (s *Service) Statement(ctx context.Context, ownerID string, period Period) (Statement, error) {
	if err := period.validate(); err != nil {
		return Statement{}, err
	}
	acct, err := s.store.AccountByOwner(ctx, ownerID)
	if err != nil {
		return Statement{}, err
	}
	txns, err := s.store.Transactions(ctx, ledger.TransactionFilter{
		AccountNumber: acct.AccountNumber,
		From:          period.From,
		To:            period.To,
		Ascending:     true,
	})
	if err != nil {
		return Statement{}, err
	}

	rows := make([]StatementRow, 0, len(txns))
	for _, txn := range txns {
		rows = append(rows, StatementRow{
			Reference:    txn.ReferenceNum,
			CreatedAt:    txn.CreatedAt,
			Amount:       txn.Amount,
			SenderName:   txn.SenderName,
			ReceiverName: txn.ReceiverName,
			Description:  txn.Description,
		})
	}
	return Statement{
		AccountNumber: acct.AccountNumber,
		HolderName:    s.displayName(ctx, acct),
		Period:        period,
		Rows:          rows,
	}, nil
}
