package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/fundstransfer/internal/ledger"
	"github.com/congo-pay/fundstransfer/internal/notification"
)

// AccountOpener provisions the ledger account of a new user.
type AccountOpener interface {
	Open(ctx context.Context, ownerID string) (ledger.Account, error)
}

// Service manages identity lifecycle and serves as the user directory.
type Service struct {
	repo     Repository
	accounts AccountOpener
	logger   *slog.Logger
}

// NewService creates a new identity service.
func NewService(repo Repository, accounts AccountOpener, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, accounts: accounts, logger: logger}
}

// Register stores a new user and opens their account.
func (s *Service) Register(ctx context.Context, reg Registration) (User, ledger.Account, error) {
	user := User{
		ID:        uuid.New().String(),
		FullName:  strings.TrimSpace(reg.FullName),
		Email:     strings.ToLower(strings.TrimSpace(reg.Email)),
		Phone:     strings.TrimSpace(reg.Phone),
		CreatedAt: time.Now().UTC(),
	}
	if user.FullName == "" || user.Email == "" {
		return User{}, ledger.Account{}, errors.New("full name and email are required")
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, ledger.Account{}, err
	}

	acct, err := s.accounts.Open(ctx, user.ID)
	if err != nil {
		if delErr := s.repo.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("remove user after failed account opening", "user_id", user.ID, "error", delErr)
		}
		return User{}, ledger.Account{}, fmt.Errorf("open account: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, acct, nil
}

// FindByID fetches a user.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// Contact resolves where a user receives alerts.
func (s *Service) Contact(ctx context.Context, userID string) (notification.Contact, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return notification.Contact{}, err
	}
	return notification.Contact{Name: user.FullName, Email: user.Email, Phone: user.Phone}, nil
}
