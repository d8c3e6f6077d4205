package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/chat-sequencer/app/services"
	"github.com/amirphl/chat-sequencer/models"
)

// SeedFetcher reads a parent's persisted count; found=false means the parent does not exist
type SeedFetcher func(ctx context.Context) (seed int64, found bool, err error)

// SequenceAllocator hands out dense per-parent numbers starting at seed+1
type SequenceAllocator interface {
	Allocate(ctx context.Context, parent models.ParentKey, seed SeedFetcher) (int64, error)
}

// SequenceAllocatorImpl serves numbers from the counter store and seeds a counter on its first use
type SequenceAllocatorImpl struct {
	store   services.CounterStore
	tracker ChangeTracker
	timeout time.Duration
}

func NewSequenceAllocator(store services.CounterStore, tracker ChangeTracker, timeout time.Duration) SequenceAllocator {
	return &SequenceAllocatorImpl{store: store, tracker: tracker, timeout: timeout}
}

func (a *SequenceAllocatorImpl) Allocate(ctx context.Context, parent models.ParentKey, seed SeedFetcher) (int64, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	family := parent.Family().String()
	key := parent.CounterKey()

	value, ok, err := a.store.IncrementIfExists(ctx, key)
	if err != nil {
		sequenceAllocationFailuresTotal.WithLabelValues(family, "counter_store").Inc()
		return 0, unavailable(key, err)
	}

	path := "hot"
	if !ok {
		path = "seeded"

		count, found, err := seed(ctx)
		if err != nil {
			sequenceAllocationFailuresTotal.WithLabelValues(family, "seed").Inc()
			return 0, NewBusinessErrorf("SEED_UNAVAILABLE", "failed to read seed for %s", fmt.Errorf("%w: %w", ErrSeedUnavailable, err), key)
		}
		if !found {
			sequenceAllocationFailuresTotal.WithLabelValues(family, "not_found").Inc()
			return 0, NewBusinessErrorf("PARENT_NOT_FOUND", "%s %q does not exist", ErrParentNotFound, family, parent.Member())
		}
		if count < 0 {
			sequenceAllocationFailuresTotal.WithLabelValues(family, "invalid_seed").Inc()
			log.Printf("allocator: negative seed %d for %s", count, key)
			return 0, NewBusinessErrorf("INVALID_SEED", "seed %d for %s is negative", ErrInvalidSeed, count, key)
		}

		value, err = a.store.SeedAndIncrement(ctx, key, count)
		if err != nil {
			sequenceAllocationFailuresTotal.WithLabelValues(family, "counter_store").Inc()
			return 0, unavailable(key, err)
		}
	}

	// the number is consumed even if this fails; the next increment marks the parent again
	if err := a.tracker.MarkDirty(ctx, parent); err != nil {
		dirtyMarkFailuresTotal.WithLabelValues(family).Inc()
		log.Printf("allocator: failed to mark %s dirty after allocating %d: %v", key, value, err)
	}

	sequenceAllocationsTotal.WithLabelValues(family, path).Inc()
	return value, nil
}

func unavailable(key string, err error) error {
	return NewBusinessErrorf("ALLOCATOR_UNAVAILABLE", "counter store failed for %s", fmt.Errorf("%w: %w", ErrAllocatorUnavailable, err), key)
}
