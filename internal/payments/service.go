package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/congo-pay/fundstransfer/internal/account"
	"github.com/congo-pay/fundstransfer/internal/ledger"
	"github.com/congo-pay/fundstransfer/internal/notification"
	"github.com/congo-pay/fundstransfer/internal/reference"
)

// State is a step of the transfer state machine.
type State string

const (
	StateValidating State = "VALIDATING"
	StateDebiting   State = "DEBITING"
	StateCrediting  State = "CREDITING"
	StateRecording  State = "RECORDING"
	StateNotifying  State = "NOTIFYING"
	StateDone       State = "DONE"
	StateRejected   State = "REJECTED"
	StateFailed     State = "FAILED"
)

var (
	// ErrInvalidRequest covers malformed amounts, secrets and self-transfers.
	ErrInvalidRequest = errors.New("invalid transfer request")

	// ErrSecretMismatch is deliberately generic so it cannot be told apart
	// from other authorization failures.
	ErrSecretMismatch = errors.New("transfer authorization failed")

	// ErrPersistence means the transfer unit was rolled back.
	ErrPersistence = errors.New("transfer could not be persisted")

	// ErrNotOwner indicates the caller does not own the sender account.
	ErrNotOwner = errors.New("not owner of sender account")

	// ErrNoTransactions is returned for an empty history page.
	ErrNoTransactions = errors.New("no transactions found")
)

// TransferError reports the terminal state of a failed transfer and the
// step at which it stopped.
type TransferError struct {
	Terminal State
	Step     State
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s during %s: %v", e.Terminal, e.Step, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

const (
	recordAttempts     = 3
	recordRetryBackoff = 20 * time.Millisecond
)

// Dispatcher hands notification events off without blocking.
type Dispatcher interface {
	Dispatch(event notification.Event)
}

// Service orchestrates transfers between ledger accounts.
type Service struct {
	store      ledger.Store
	guard      *account.Guard
	generator  *reference.Generator
	directory  notification.Directory
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs a payment service.
func NewService(store ledger.Store, guard *account.Guard, generator *reference.Generator, directory notification.Directory, dispatcher Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		guard:      guard,
		generator:  generator,
		directory:  directory,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// TransferInput captures the data needed to move funds between accounts.
type TransferInput struct {
	SenderAccountNumber   string
	ReceiverAccountNumber string
	Amount                decimal.Decimal
	TransactionSecret     string
	Description           string
	// RequestorUserID, when set, must own the sender account.
	RequestorUserID string
}

// Receipt describes a completed transfer.
type Receipt struct {
	Reference       string
	Amount          decimal.Decimal
	SenderBalance   decimal.Decimal
	ReceiverBalance decimal.Decimal
	CompletedAt     time.Time
}

// Transfer runs the transfer state machine. Once debiting starts the unit
// is no longer bound to ctx cancellation.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (Receipt, error) {
	sender, receiver, err := s.validate(ctx, in)
	if err != nil {
		return Receipt{}, s.fail(in, err)
	}

	senderName := s.displayName(ctx, sender)
	receiverName := s.displayName(ctx, receiver)

	unitCtx := context.WithoutCancel(ctx)
	step := StateDebiting
	var (
		debited  ledger.Account
		credited ledger.Account
		recorded ledger.Transaction
	)
	err = s.store.WithinTransfer(unitCtx, sender.ID, receiver.ID, func(tx ledger.LedgerTx) error {
		var err error
		step = StateDebiting
		if debited, err = tx.Debit(unitCtx, sender.ID, in.Amount); err != nil {
			return err
		}
		step = StateCrediting
		if credited, err = tx.Credit(unitCtx, receiver.ID, in.Amount); err != nil {
			return err
		}
		step = StateRecording
		recorded, err = s.record(unitCtx, tx, ledger.Transaction{
			SenderAccountNumber:   sender.AccountNumber,
			ReceiverAccountNumber: receiver.AccountNumber,
			SenderName:            senderName,
			ReceiverName:          receiverName,
			Amount:                in.Amount,
			Status:                ledger.TransactionSuccess,
			Description:           in.Description,
			CreatedAt:             s.now(),
		})
		return err
	})
	if err != nil {
		return Receipt{}, s.fail(in, unitError(step, err))
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(notification.Event{
			SenderID:        sender.OwnerID,
			ReceiverID:      receiver.OwnerID,
			SenderName:      senderName,
			ReceiverName:    receiverName,
			SenderBalance:   debited.Balance,
			ReceiverBalance: credited.Balance,
			Amount:          in.Amount,
			Reference:       recorded.ReferenceNum,
			OccurredAt:      recorded.CreatedAt,
		})
	}

	s.logger.Info("transfer completed",
		"state", StateDone,
		"reference", recorded.ReferenceNum,
		"sender_account", sender.AccountNumber,
		"receiver_account", receiver.AccountNumber,
		"amount", in.Amount.String(),
	)
	return Receipt{
		Reference:       recorded.ReferenceNum,
		Amount:          in.Amount,
		SenderBalance:   debited.Balance,
		ReceiverBalance: credited.Balance,
		CompletedAt:     recorded.CreatedAt,
	}, nil
}

// validate runs the VALIDATING step and returns unlocked snapshots of both accounts.
func (s *Service) validate(ctx context.Context, in TransferInput) (ledger.Account, ledger.Account, error) {
	if !ledger.ValidAmount(in.Amount) {
		return ledger.Account{}, ledger.Account{}, rejected(fmt.Errorf("%w: amount must be positive with at most two decimal places", ErrInvalidRequest))
	}
	if !account.ValidSecret(in.TransactionSecret) {
		return ledger.Account{}, ledger.Account{}, rejected(fmt.Errorf("%w: %w", ErrInvalidRequest, account.ErrInvalidSecret))
	}
	if in.SenderAccountNumber == in.ReceiverAccountNumber {
		return ledger.Account{}, ledger.Account{}, failed(StateValidating, fmt.Errorf("%w: sender and receiver must differ", ErrInvalidRequest))
	}

	sender, err := s.guard.VerifyTransferable(ctx, in.SenderAccountNumber)
	if err != nil {
		return ledger.Account{}, ledger.Account{}, guardError(err)
	}
	if in.RequestorUserID != "" && sender.OwnerID != in.RequestorUserID {
		return ledger.Account{}, ledger.Account{}, rejected(ErrNotOwner)
	}
	if !s.guard.VerifySecret(sender, in.TransactionSecret) {
		return ledger.Account{}, ledger.Account{}, failed(StateValidating, ErrSecretMismatch)
	}

	receiver, err := s.guard.VerifyTransferable(ctx, in.ReceiverAccountNumber)
	if err != nil {
		return ledger.Account{}, ledger.Account{}, guardError(err)
	}

	if err := checkTierLimit(sender, in.Amount); err != nil {
		return ledger.Account{}, ledger.Account{}, rejected(err)
	}
	return sender, receiver, nil
}

// checkTierLimit is reserved for per-tier transfer limits. No tier is
// limited yet.
func checkTierLimit(_ ledger.Account, _ decimal.Decimal) error {
	return nil
}

// record stamps a fresh reference and appends the transaction inside the
// unit. A reference collision draws a new reference. Other store failures
// are retried up to recordAttempts times before the unit is given up.
func (s *Service) record(ctx context.Context, tx ledger.LedgerTx, txn ledger.Transaction) (ledger.Transaction, error) {
	collisions, failures := 0, 0
	for {
		ref, err := reference.Unique(ctx, s.generator.Reference, s.store.ReferenceExists)
		if err != nil {
			return ledger.Transaction{}, err
		}
		txn.ReferenceNum = ref
		recorded, err := tx.Record(ctx, txn)
		switch {
		case err == nil:
			return recorded, nil
		case errors.Is(err, ledger.ErrDuplicateReference):
			collisions++
			if collisions >= reference.MaxAttempts {
				return ledger.Transaction{}, reference.ErrExhausted
			}
			s.logger.Debug("transaction reference collision", "attempt", collisions)
		case errors.Is(err, ledger.ErrInvalidAmount):
			return ledger.Transaction{}, err
		default:
			failures++
			if failures >= recordAttempts {
				return ledger.Transaction{}, err
			}
			s.logger.Warn("recording transaction failed, retrying", "attempt", failures, "error", err)
			time.Sleep(time.Duration(failures) * recordRetryBackoff)
		}
	}
}

func (s *Service) displayName(ctx context.Context, acct ledger.Account) string {
	if s.directory == nil {
		return acct.AccountNumber
	}
	contact, err := s.directory.Contact(ctx, acct.OwnerID)
	if err != nil || contact.Name == "" {
		s.logger.Warn("display name unavailable", "account_number", acct.AccountNumber, "error", err)
		return acct.AccountNumber
	}
	return contact.Name
}

// fail logs a terminal transfer outcome. Failed transfers are not persisted.
func (s *Service) fail(in TransferInput, err error) error {
	attrs := []any{
		"sender_account", in.SenderAccountNumber,
		"receiver_account", in.ReceiverAccountNumber,
		"amount", in.Amount.String(),
		"error", err,
	}
	var te *TransferError
	if errors.As(err, &te) {
		attrs = append(attrs, "state", te.Terminal, "step", te.Step)
		if errors.Is(err, ErrPersistence) {
			s.logger.Error("transfer rolled back", attrs...)
			return err
		}
	}
	s.logger.Warn("transfer not completed", attrs...)
	return err
}

func rejected(err error) error {
	return &TransferError{Terminal: StateRejected, Step: StateValidating, Err: err}
}

func failed(step State, err error) error {
	return &TransferError{Terminal: StateFailed, Step: step, Err: err}
}

// guardError maps Account Guard failures: unknown accounts are rejected,
// inactive ones fail.
func guardError(err error) error {
	if errors.Is(err, account.ErrNotActivated) {
		return failed(StateValidating, err)
	}
	if errors.Is(err, account.ErrNotFound) {
		return rejected(err)
	}
	return failed(StateValidating, fmt.Errorf("%w: %w", ErrPersistence, err))
}

// unitError maps a failure inside the transfer unit. The unit has already
// been rolled back when this runs.
func unitError(step State, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return failed(StateDebiting, err)
	case errors.Is(err, ledger.ErrNotActivated):
		return failed(step, err)
	case errors.Is(err, ledger.ErrAccountNotFound):
		return rejected(err)
	default:
		return failed(step, fmt.Errorf("%w: %w", ErrPersistence, err))
	}
}
