package payments

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHistoryClassifiesAndPages(t *testing.T) {
	h := newHarness(t, nil)
	a := h.open(t, "user-a", "Ada", "100")
	b := h.open(t, "user-b", "Bola", "100")
	ctx := context.Background()

	for _, in := range []TransferInput{transfer(a, b, "10"), transfer(b, a, "3"), transfer(a, b, "7")} {
		if _, err := h.svc.Transfer(ctx, in); err != nil {
			t.Fatalf("transfer: %v", err)
		}
	}
	period := Period{From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour)}

	page, err := h.svc.History(ctx, HistoryQuery{OwnerID: "user-a", Period: period, Page: 0, Size: 2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page))
	}
	newest := page[0]
	if newest.Type != EntryDebit || !newest.Amount.Equal(decimal.NewFromInt(7)) || newest.CounterpartyName != "Bola" {
		t.Fatalf("unexpected newest entry: %+v", newest)
	}
	if page[1].Type != EntryCredit || page[1].CounterpartyName != "Bola" {
		t.Fatalf("expected credit from Bola, got %+v", page[1])
	}

	last, err := h.svc.History(ctx, HistoryQuery{OwnerID: "user-a", Period: period, Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	if len(last) != 1 || !last[0].Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected last page: %+v", last)
	}

	if _, err := h.svc.History(ctx, HistoryQuery{OwnerID: "user-a", Period: period, Page: 5, Size: 2}); !errors.Is(err, ErrNoTransactions) {
		t.Fatalf("expected no transactions, got %v", err)
	}
}

func TestHistoryRejectsInvertedPeriod(t *testing.T) {
	h := newHarness(t, nil)
	h.open(t, "user-a", "Ada", "100")

	period := Period{From: time.Now(), To: time.Now().Add(-time.Hour)}
	if _, err := h.svc.History(context.Background(), HistoryQuery{OwnerID: "user-a", Period: period}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestStatementIsOldestFirst(t *testing.T) {
	h := newHarness(t, nil)
	a := h.open(t, "user-a", "Ada", "100")
	b := h.open(t, "user-b", "Bola", "100")
	ctx := context.Background()

	first := transfer(a, b, "1")
	first.Description = "first"
	second := transfer(b, a, "2")
	second.Description = "second"
	for _, in := range []TransferInput{first, second} {
		if _, err := h.svc.Transfer(ctx, in); err != nil {
			t.Fatalf("transfer: %v", err)
		}
	}

	stmt, err := h.svc.Statement(ctx, "user-a", Period{From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if stmt.AccountNumber != a.AccountNumber || stmt.HolderName != "Ada" {
		t.Fatalf("unexpected statement header: %+v", stmt)
	}
	if len(stmt.Rows) != 2 || stmt.Rows[0].Description != "first" || stmt.Rows[1].Description != "second" {
		t.Fatalf("unexpected rows: %+v", stmt.Rows)
	}
	if stmt.Rows[1].SenderName != "Bola" || stmt.Rows[1].ReceiverName != "Ada" {
		t.Fatalf("unexpected snapshot names: %+v", stmt.Rows[1])
	}
}

func TestHistoryRejectsPageOutOfRange(t *testing.T) {
	h := newHarness(t, nil)
	a := h.open(t, "user-a", "Ada", "100")
	b := h.open(t, "user-b", "Bola", "0")
	if _, err := h.svc.Transfer(context.Background(), transfer(a, b, "10")); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	period := Period{From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour)}

	for _, page := range []int{-1, math.MaxInt / 10, math.MaxInt} {
		_, err := h.svc.History(context.Background(), HistoryQuery{OwnerID: "user-a", Period: period, Page: page, Size: 10})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("page %d: expected invalid request, got %v", page, err)
		}
	}
}
