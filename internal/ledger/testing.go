package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that overwrites the balance of an account held
// by the in-memory store.
func SeedBalance(s Store, accountNumber string, amount decimal.Decimal) {
	if mem, ok := memoryOf(s); ok {
		mem.mutate(accountNumber, func(acct *Account) { acct.Balance = amount })
	}
}

// SetStatus is a test helper that forces the lifecycle state of an account
// held by the in-memory store.
func SetStatus(s Store, accountNumber string, status Status) {
	if mem, ok := memoryOf(s); ok {
		mem.mutate(accountNumber, func(acct *Account) { acct.Status = status })
	}
}

func (s *inMemoryStore) mutate(accountNumber string, fn func(*Account)) {
	s.mu.RLock()
	id, ok := s.byNumber[accountNumber]
	r := s.rows[id]
	s.mu.RUnlock()
	if !ok || r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.acct)
}

// memoryOf finds the in-memory store behind s, following Unwrap for test
// decorators.
func memoryOf(s Store) (*inMemoryStore, bool) {
	for {
		switch v := s.(type) {
		case *inMemoryStore:
			return v, true
		case interface{ Unwrap() Store }:
			s = v.Unwrap()
		default:
			return nil, false
		}
	}
}
