package smpp

import (
	"context"
	"strconv"
)

const unackedKey = "unacked"

// UnackedLedger tracks the depth and head order of submit_sm requests that
// have been sent but not yet acknowledged with a submit_sm_resp. It is
// backed by a shared ordered list in the Store: Push prepends, Pop removes
// from the head.
//
// The pop policy is intentionally LIFO: Push and Pop both operate on the
// head of the list, so Pop returns the most recently submitted sequence
// number, not the oldest. The ledger never correlates a response to the
// request that produced it by sequence number — it only tracks depth and
// head order. Downstream consumers needing per-request correlation cannot
// get it from this ledger.
type UnackedLedger struct {
	store Store
}

// NewUnackedLedger creates a ledger backed by store.
func NewUnackedLedger(store Store) *UnackedLedger {
	return &UnackedLedger{store: store}
}

// Push records seq as an outstanding submit_sm.
func (l *UnackedLedger) Push(ctx context.Context, seq uint32) error {
	return l.store.LPush(ctx, unackedKey, strconv.FormatUint(uint64(seq), 10))
}

// Pop removes and returns the most recently pushed sequence number. ok is
// false if the ledger is empty.
func (l *UnackedLedger) Pop(ctx context.Context) (seq uint32, ok bool, err error) {
	v, ok, err := l.store.LPop(ctx, unackedKey)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false, err
	}
	return uint32(n), true, nil
}

// Len returns the number of outstanding submit_sm requests.
func (l *UnackedLedger) Len(ctx context.Context) (int64, error) {
	return l.store.LLen(ctx, unackedKey)
}
