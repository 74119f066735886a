package account

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/fundstransfer/internal/ledger"
)

// SecretHasher hashes and verifies transaction secrets.
type SecretHasher interface {
	Hash(secret string) ([]byte, error)
	Compare(hash []byte, secret string) bool
}

// BcryptHasher stores secrets as bcrypt hashes.
type BcryptHasher struct {
	Cost int
}

// Hash returns the bcrypt hash of secret.
func (h BcryptHasher) Hash(secret string) ([]byte, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(secret), cost)
}

// Compare runs bcrypt's constant-time comparison.
func (h BcryptHasher) Compare(hash []byte, secret string) bool {
	if len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(secret)) == nil
}

// Guard checks that an account may take part in a transfer.
type Guard struct {
	store  ledger.Store
	hasher SecretHasher
}

// NewGuard builds a guard over the ledger store.
func NewGuard(store ledger.Store, hasher SecretHasher) *Guard {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Guard{store: store, hasher: hasher}
}

// VerifyTransferable resolves an account by number and requires it to be ACTIVATED.
func (g *Guard) VerifyTransferable(ctx context.Context, accountNumber string) (ledger.Account, error) {
	acct, err := g.store.AccountByNumber(ctx, accountNumber)
	if err != nil {
		return ledger.Account{}, err
	}
	if acct.Status != ledger.StatusActivated {
		return ledger.Account{}, ErrNotActivated
	}
	return acct, nil
}

// VerifySecret reports whether supplied matches the account's stored secret.
// An account without a secret never matches.
func (g *Guard) VerifySecret(acct ledger.Account, supplied string) bool {
	return g.hasher.Compare(acct.SecretHash, supplied)
}
