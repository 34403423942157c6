package smpp

import (
	"context"
	"testing"
	"time"
)

func TestSequenceAllocatorNextIncreases(t *testing.T) {
	ctx := context.Background()
	a := NewSequenceAllocator(newMemStore(), nil)
	var prev uint32
	for i := 0; i < 5; i++ {
		n, err := a.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if n <= prev {
			t.Fatalf("Next() = %d, want > %d", n, prev)
		}
		prev = n
	}
}

func TestSequenceAllocatorCooperativeReset(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.counters[sequenceCounterKey] = int64(sequenceWrapMargin) - 1

	a := NewSequenceAllocator(store, nil)
	first, err := a.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if first != sequenceWrapMargin {
		t.Fatalf("first Next() = %d, want %d", first, sequenceWrapMargin)
	}

	second, err := a.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if second != 1 && second != sequenceWrapMargin+1 {
		t.Fatalf("second Next() = %d, want 1 or %d", second, sequenceWrapMargin+1)
	}
}

func TestSequenceAllocatorResetLockHeldBySomeoneElse(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.counters[sequenceWrapKey] = 1
	store.expiry[sequenceWrapKey] = time.Now().Add(time.Minute)

	a := NewSequenceAllocator(store, nil)
	if err := a.tryReset(ctx); err != nil {
		t.Fatalf("tryReset() error = %v, want nil (lock held elsewhere)", err)
	}
}
