package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func openAccount(t *testing.T, s Store, owner, number string, balance string) Account {
	t.Helper()
	acct, err := s.CreateAccount(context.Background(), Account{
		OwnerID:       owner,
		AccountNumber: number,
		Status:        StatusActivated,
		Tier:          TierLevel1,
	})
	if err != nil {
		t.Fatalf("create account %s: %v", number, err)
	}
	SeedBalance(s, number, decimal.RequireFromString(balance))
	acct.Balance = decimal.RequireFromString(balance)
	return acct
}

func balanceOf(t *testing.T, s Store, number string) decimal.Decimal {
	t.Helper()
	acct, err := s.AccountByNumber(context.Background(), number)
	if err != nil {
		t.Fatalf("lookup %s: %v", number, err)
	}
	return acct.Balance
}

func move(s Store, from, to Account, amount string, ref string) error {
	amt := decimal.RequireFromString(amount)
	return s.WithinTransfer(context.Background(), from.ID, to.ID, func(tx LedgerTx) error {
		ctx := context.Background()
		if _, err := tx.Debit(ctx, from.ID, amt); err != nil {
			return err
		}
		if _, err := tx.Credit(ctx, to.ID, amt); err != nil {
			return err
		}
		_, err := tx.Record(ctx, Transaction{
			SenderAccountNumber:   from.AccountNumber,
			ReceiverAccountNumber: to.AccountNumber,
			Amount:                amt,
			ReferenceNum:          ref,
			Status:                TransactionSuccess,
		})
		return err
	})
}

func TestInMemoryStore_TransferMaintainsBalance(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "100.00")
	b := openAccount(t, s, "owner-b", "000000002", "10.00")

	if err := move(s, a, b, "40.00", "ref000000001"); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if got := balanceOf(t, s, a.AccountNumber); !got.Equal(decimal.RequireFromString("60.00")) {
		t.Fatalf("expected sender balance 60.00, got %s", got)
	}
	if got := balanceOf(t, s, b.AccountNumber); !got.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected receiver balance 50.00, got %s", got)
	}
}

func TestInMemoryStore_DebitOfWholeBalanceRejected(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "30.00")
	b := openAccount(t, s, "owner-b", "000000002", "0")

	if err := move(s, a, b, "30.00", "ref000000001"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := balanceOf(t, s, a.AccountNumber); !got.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("sender balance changed: %s", got)
	}
	if got := balanceOf(t, s, b.AccountNumber); !got.IsZero() {
		t.Fatalf("receiver balance changed: %s", got)
	}
}

func TestInMemoryStore_FailedUnitLeavesNoTrace(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "100")
	b := openAccount(t, s, "owner-b", "000000002", "0")
	boom := errors.New("boom")

	err := s.WithinTransfer(context.Background(), a.ID, b.ID, func(tx LedgerTx) error {
		ctx := context.Background()
		if _, err := tx.Debit(ctx, a.ID, decimal.NewFromInt(10)); err != nil {
			return err
		}
		if _, err := tx.Credit(ctx, b.ID, decimal.NewFromInt(10)); err != nil {
			return err
		}
		if _, err := tx.Record(ctx, Transaction{Amount: decimal.NewFromInt(10), ReferenceNum: "abandoned000", Status: TransactionSuccess}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := balanceOf(t, s, a.AccountNumber); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("sender balance changed: %s", got)
	}
	if got := balanceOf(t, s, b.AccountNumber); !got.IsZero() {
		t.Fatalf("receiver balance changed: %s", got)
	}
	exists, _ := s.ReferenceExists(context.Background(), "abandoned000")
	if exists {
		t.Fatalf("reference of rolled back unit still reserved")
	}
}

func TestInMemoryStore_DuplicateReference(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "100")
	b := openAccount(t, s, "owner-b", "000000002", "0")

	if err := move(s, a, b, "5", "dup000000000"); err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}
	if err := move(s, a, b, "5", "dup000000000"); !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if got := balanceOf(t, s, a.AccountNumber); !got.Equal(decimal.NewFromInt(95)) {
		t.Fatalf("expected 95 after rejected duplicate, got %s", got)
	}
}

func TestInMemoryStore_DuplicateAccountNumber(t *testing.T) {
	s := NewInMemory()
	openAccount(t, s, "owner-a", "000000001", "0")

	_, err := s.CreateAccount(context.Background(), Account{OwnerID: "owner-b", AccountNumber: "000000001", Status: StatusActivated})
	if !errors.Is(err, ErrDuplicateAccountNumber) {
		t.Fatalf("expected duplicate account number, got %v", err)
	}
	_, err = s.CreateAccount(context.Background(), Account{OwnerID: "owner-a", AccountNumber: "000000002", Status: StatusActivated})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected account exists, got %v", err)
	}
}

func TestInMemoryStore_ConcurrentOppositeTransfers(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "100000")
	b := openAccount(t, s, "owner-b", "000000002", "100000")

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := move(s, a, b, "7", fmt.Sprintf("ab%010d", i)); err != nil {
				t.Errorf("a->b %d failed: %v", i, err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if err := move(s, b, a, "3", fmt.Sprintf("ba%010d", i)); err != nil {
				t.Errorf("b->a %d failed: %v", i, err)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposite transfers deadlocked")
	}

	total := balanceOf(t, s, a.AccountNumber).Add(balanceOf(t, s, b.AccountNumber))
	if !total.Equal(decimal.NewFromInt(200000)) {
		t.Fatalf("ledger not balanced after concurrency, total=%s", total)
	}
	wantA := decimal.NewFromInt(100000 - workers*7 + workers*3)
	if got := balanceOf(t, s, a.AccountNumber); !got.Equal(wantA) {
		t.Fatalf("expected a=%s, got %s", wantA, got)
	}
}

func TestInMemoryStore_CloseRequiresZeroBalance(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "1")

	if _, err := s.Close(context.Background(), a.ID); !errors.Is(err, ErrBalanceNotCleared) {
		t.Fatalf("expected balance not cleared, got %v", err)
	}

	SeedBalance(s, a.AccountNumber, decimal.Zero)
	closed, err := s.Close(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Fatalf("expected CLOSED, got %s", closed.Status)
	}
	if !closed.UpdatedAt.After(a.CreatedAt) && !closed.UpdatedAt.Equal(a.CreatedAt) {
		t.Fatalf("updatedAt went backwards")
	}
}

func TestInMemoryStore_CreditToClosedAccountRejected(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "50")
	b := openAccount(t, s, "owner-b", "000000002", "0")
	SetStatus(s, b.AccountNumber, StatusClosed)

	if err := move(s, a, b, "10", "ref000000001"); !errors.Is(err, ErrNotActivated) {
		t.Fatalf("expected not activated, got %v", err)
	}
	if got := balanceOf(t, s, a.AccountNumber); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("sender balance changed: %s", got)
	}
}

func TestInMemoryStore_TransactionsFilter(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "100")
	b := openAccount(t, s, "owner-b", "000000002", "100")
	c := openAccount(t, s, "owner-c", "000000003", "100")

	for i, pair := range [][2]Account{{a, b}, {b, a}, {b, c}, {a, c}} {
		if err := move(s, pair[0], pair[1], "1", fmt.Sprintf("flt%09d", i)); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}

	txns, err := s.Transactions(context.Background(), TransactionFilter{AccountNumber: a.AccountNumber})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions for a, got %d", len(txns))
	}
	if txns[0].ID < txns[len(txns)-1].ID {
		t.Fatalf("expected newest first ordering")
	}

	paged, err := s.Transactions(context.Background(), TransactionFilter{AccountNumber: a.AccountNumber, Offset: 1, Limit: 1, Ascending: true})
	if err != nil {
		t.Fatalf("paged transactions: %v", err)
	}
	if len(paged) != 1 || paged[0].ReferenceNum != "flt000000001" {
		t.Fatalf("unexpected page: %+v", paged)
	}

	future, err := s.Transactions(context.Background(), TransactionFilter{AccountNumber: a.AccountNumber, From: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("future transactions: %v", err)
	}
	if len(future) != 0 {
		t.Fatalf("expected no transactions in the future window, got %d", len(future))
	}
}

func TestInMemoryStore_SubCentPostingRejected(t *testing.T) {
	s := NewInMemory()
	a := openAccount(t, s, "owner-a", "000000001", "100.00")
	b := openAccount(t, s, "owner-b", "000000002", "10.00")

	err := move(s, a, b, "1.005", "ref000000001")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	total := balanceOf(t, s, a.AccountNumber).Add(balanceOf(t, s, b.AccountNumber))
	if !total.Equal(decimal.RequireFromString("110.00")) {
		t.Fatalf("expected total 110.00, got %s", total)
	}
}
