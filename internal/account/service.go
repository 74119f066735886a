package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/congo-pay/fundstransfer/internal/ledger"
	"github.com/congo-pay/fundstransfer/internal/reference"
)

const openAttempts = 3

// Service manages the account lifecycle of a user.
type Service struct {
	store     ledger.Store
	generator *reference.Generator
	hasher    SecretHasher
	logger    *slog.Logger
}

// NewService builds an account service instance.
func NewService(store ledger.Store, generator *reference.Generator, hasher SecretHasher, logger *slog.Logger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, generator: generator, hasher: hasher, logger: logger}
}

// Open provisions the single account of ownerID: ACTIVATED, LEVEL1, zero balance.
func (s *Service) Open(ctx context.Context, ownerID string) (ledger.Account, error) {
	if ownerID == "" {
		return ledger.Account{}, errors.New("owner id required")
	}
	for attempt := 1; ; attempt++ {
		number, err := reference.Unique(ctx, s.generator.AccountNumber, s.store.AccountNumberExists)
		if err != nil {
			return ledger.Account{}, fmt.Errorf("assign account number: %w", err)
		}
		acct, err := s.store.CreateAccount(ctx, ledger.Account{
			OwnerID:       ownerID,
			AccountNumber: number,
			Status:        ledger.StatusActivated,
			Tier:          ledger.TierLevel1,
		})
		if errors.Is(err, ledger.ErrDuplicateAccountNumber) && attempt < openAttempts {
			// lost a race between the existence check and the insert
			s.logger.Debug("account number collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return ledger.Account{}, err
		}
		s.logger.Info("account opened", "owner_id", ownerID, "account_number", acct.AccountNumber)
		return acct, nil
	}
}

// Overview returns the caller's account summary without mutating it.
func (s *Service) Overview(ctx context.Context, ownerID string) (Overview, error) {
	acct, err := s.store.AccountByOwner(ctx, ownerID)
	if err != nil {
		return Overview{}, err
	}
	return overviewOf(acct), nil
}

// Close moves the caller's account to CLOSED. The balance must be zero.
func (s *Service) Close(ctx context.Context, ownerID string) (Overview, error) {
	acct, err := s.store.AccountByOwner(ctx, ownerID)
	if err != nil {
		return Overview{}, err
	}
	closed, err := s.store.Close(ctx, acct.ID)
	if err != nil {
		return Overview{}, err
	}
	s.logger.Info("account closed", "owner_id", ownerID, "account_number", closed.AccountNumber)
	return overviewOf(closed), nil
}

// SetSecret stores a new transaction secret for the caller's account.
func (s *Service) SetSecret(ctx context.Context, ownerID, secret string) error {
	if !ValidSecret(secret) {
		return ErrInvalidSecret
	}
	acct, err := s.store.AccountByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	if err := s.store.UpdateSecret(ctx, acct.ID, hash); err != nil {
		return err
	}
	s.logger.Info("transaction secret updated", "owner_id", ownerID)
	return nil
}
