package smpp

import (
	"context"
	"time"
)

const (
	sequenceCounterKey = "smpp_last_sequence_number"
	sequenceWrapKey    = "smpp_last_sequence_number_wrap"
	sequenceWrapMargin = uint32(0xFFFF0000)
	sequenceWrapTTL    = 10 * time.Second
)

// SequenceAllocator hands out the monotonic 32-bit sequence numbers used on
// the sequence_number header field. It is backed by a Store shared across
// every session and process allocating against the same SMSC bind, and
// implements the cooperative wrap-reset protocol documented in the design
// notes: many allocators may observe the near-overflow condition at once,
// but only one performs the reset.
type SequenceAllocator struct {
	store  Store
	logger Logger
}

// NewSequenceAllocator creates an allocator backed by store.
func NewSequenceAllocator(store Store, logger Logger) *SequenceAllocator {
	if logger == nil {
		logger = DefaultLogger{}
	}
	return &SequenceAllocator{store: store, logger: logger}
}

// Next returns the next sequence number in [1, 0xFFFFFFFF], strictly
// increasing until a cooperative reset restarts the counter at 1.
func (a *SequenceAllocator) Next(ctx context.Context) (uint32, error) {
	n, err := a.store.Incr(ctx, sequenceCounterKey)
	if err != nil {
		return 0, err
	}
	val := uint32(n)
	if val >= sequenceWrapMargin {
		if rerr := a.tryReset(ctx); rerr != nil {
			a.logger.ErrorF("sequence wrap reset: %+v", rerr)
		}
	}
	return val, nil
}

// tryReset implements the cooperative reset protocol documented in §4.7:
// one allocator wins set-if-absent on the lock key and clears the counter;
// everyone else observes the lock held and returns without acting.
func (a *SequenceAllocator) tryReset(ctx context.Context) error {
	acquired, err := a.store.SetNX(ctx, sequenceWrapKey, 1)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	ttl, err := a.store.TTL(ctx, sequenceWrapKey)
	if err != nil {
		return err
	}
	if ttl < 0 {
		if err := a.store.Expire(ctx, sequenceWrapKey, sequenceWrapTTL); err != nil {
			return err
		}
	}
	current, err := a.store.Get(ctx, sequenceCounterKey)
	if err != nil {
		return err
	}
	if uint32(current) < sequenceWrapMargin {
		return nil
	}
	return a.store.Delete(ctx, sequenceCounterKey)
}
