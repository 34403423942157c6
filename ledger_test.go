package smpp

import (
	"context"
	"testing"
)

func TestUnackedLedgerPushPopLIFO(t *testing.T) {
	ctx := context.Background()
	l := NewUnackedLedger(newMemStore())

	for _, seq := range []uint32{1, 2, 3} {
		if err := l.Push(ctx, seq); err != nil {
			t.Fatalf("Push(%d) error = %v", seq, err)
		}
	}
	if n, err := l.Len(ctx); err != nil || n != 3 {
		t.Fatalf("Len() = %d, %v; want 3, nil", n, err)
	}

	// Push prepends and Pop removes from the head, so Pop returns the most
	// recently pushed sequence number first (§4.8, §9 LIFO pop note).
	for _, want := range []uint32{3, 2, 1} {
		got, ok, err := l.Pop(ctx)
		if err != nil || !ok {
			t.Fatalf("Pop() = %d, %v, %v", got, ok, err)
		}
		if got != want {
			t.Fatalf("Pop() = %d, want %d", got, want)
		}
	}

	if _, ok, err := l.Pop(ctx); err != nil || ok {
		t.Fatalf("Pop() on empty ledger = _, %v, %v; want false, nil", ok, err)
	}
}
