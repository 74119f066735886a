package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type memoryRow struct {
	mu   sync.Mutex
	acct Account
}

type inMemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	rows     map[int64]*memoryRow
	byNumber map[string]int64
	byOwner  map[string]int64

	txMu       sync.Mutex
	nextTxID   int64
	txns       []Transaction
	references map[string]struct{}

	now func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and local development. Each account carries its own mutex so unrelated
// transfers never contend.
func NewInMemory() Store {
	return &inMemoryStore{
		rows:       make(map[int64]*memoryRow),
		byNumber:   make(map[string]int64),
		byOwner:    make(map[string]int64),
		references: make(map[string]struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *inMemoryStore) CreateAccount(_ context.Context, account Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byNumber[account.AccountNumber]; taken {
		return Account{}, ErrDuplicateAccountNumber
	}
	if _, exists := s.byOwner[account.OwnerID]; exists {
		return Account{}, ErrAccountExists
	}

	s.nextID++
	account.ID = s.nextID
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
	}
	account.UpdatedAt = account.CreatedAt

	s.rows[account.ID] = &memoryRow{acct: account}
	s.byNumber[account.AccountNumber] = account.ID
	s.byOwner[account.OwnerID] = account.ID
	return account, nil
}

func (s *inMemoryStore) row(id int64) (*memoryRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	return r, ok
}

func (s *inMemoryStore) read(id int64, ok bool) (Account, error) {
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	r, found := s.row(id)
	if !found {
		return Account{}, ErrAccountNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acct, nil
}

func (s *inMemoryStore) AccountByNumber(_ context.Context, number string) (Account, error) {
	s.mu.RLock()
	id, ok := s.byNumber[number]
	s.mu.RUnlock()
	return s.read(id, ok)
}

func (s *inMemoryStore) AccountByOwner(_ context.Context, ownerID string) (Account, error) {
	s.mu.RLock()
	id, ok := s.byOwner[ownerID]
	s.mu.RUnlock()
	return s.read(id, ok)
}

func (s *inMemoryStore) AccountNumberExists(_ context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byNumber[number]
	return ok, nil
}

func (s *inMemoryStore) UpdateSecret(_ context.Context, accountID int64, hash []byte) error {
	r, ok := s.row(accountID)
	if !ok {
		return ErrAccountNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acct.SecretHash = append([]byte(nil), hash...)
	r.acct.UpdatedAt = s.now()
	return nil
}

func (s *inMemoryStore) Close(_ context.Context, accountID int64) (Account, error) {
	r, ok := s.row(accountID)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	closed, err := applyClose(r.acct, s.now())
	if err != nil {
		return Account{}, err
	}
	r.acct = closed
	return closed, nil
}

func (s *inMemoryStore) WithinTransfer(_ context.Context, senderID, receiverID int64, fn func(LedgerTx) error) error {
	firstID, secondID := lockOrder(senderID, receiverID)

	first, ok := s.row(firstID)
	if !ok {
		return ErrAccountNotFound
	}
	first.mu.Lock()
	defer first.mu.Unlock()

	locked := map[int64]*memoryRow{firstID: first}
	if secondID != firstID {
		second, ok := s.row(secondID)
		if !ok {
			return ErrAccountNotFound
		}
		second.mu.Lock()
		defer second.mu.Unlock()
		locked[secondID] = second
	}

	unit := &memoryUnit{store: s, staged: make(map[int64]Account, len(locked))}
	for id, r := range locked {
		unit.staged[id] = r.acct
	}

	if err := fn(unit); err != nil {
		unit.release()
		return err
	}

	for id, acct := range unit.staged {
		locked[id].acct = acct
	}
	s.txMu.Lock()
	s.txns = append(s.txns, unit.records...)
	s.txMu.Unlock()
	return nil
}

func (s *inMemoryStore) ReferenceExists(_ context.Context, reference string) (bool, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	_, ok := s.references[reference]
	return ok, nil
}

func (s *inMemoryStore) Transactions(_ context.Context, filter TransactionFilter) ([]Transaction, error) {
	s.txMu.Lock()
	matched := make([]Transaction, 0)
	for _, txn := range s.txns {
		if matchesFilter(txn, filter) {
			matched = append(matched, txn)
		}
	}
	s.txMu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.Ascending {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if filter.Ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []Transaction{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// memoryUnit stages mutations against locked rows. References are reserved
// as soon as they are recorded so concurrent units on other accounts can
// never commit the same value.
type memoryUnit struct {
	store    *inMemoryStore
	staged   map[int64]Account
	records  []Transaction
	reserved []string
}

func (u *memoryUnit) Debit(_ context.Context, accountID int64, amount decimal.Decimal) (Account, error) {
	acct, ok := u.staged[accountID]
	if !ok {
		return Account{}, ErrAccountOutsideUnit
	}
	updated, err := applyDebit(acct, amount, u.store.now())
	if err != nil {
		return Account{}, err
	}
	u.staged[accountID] = updated
	return updated, nil
}

func (u *memoryUnit) Credit(_ context.Context, accountID int64, amount decimal.Decimal) (Account, error) {
	acct, ok := u.staged[accountID]
	if !ok {
		return Account{}, ErrAccountOutsideUnit
	}
	updated, err := applyCredit(acct, amount, u.store.now())
	if err != nil {
		return Account{}, err
	}
	u.staged[accountID] = updated
	return updated, nil
}

func (u *memoryUnit) Record(_ context.Context, txn Transaction) (Transaction, error) {
	if !ValidAmount(txn.Amount) {
		return Transaction{}, ErrInvalidAmount
	}
	s := u.store
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if _, taken := s.references[txn.ReferenceNum]; taken {
		return Transaction{}, ErrDuplicateReference
	}
	s.references[txn.ReferenceNum] = struct{}{}
	u.reserved = append(u.reserved, txn.ReferenceNum)

	s.nextTxID++
	txn.ID = s.nextTxID
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = s.now()
	}
	u.records = append(u.records, txn)
	return txn, nil
}

func (u *memoryUnit) release() {
	if len(u.reserved) == 0 {
		return
	}
	u.store.txMu.Lock()
	defer u.store.txMu.Unlock()
	for _, ref := range u.reserved {
		delete(u.store.references, ref)
	}
}
