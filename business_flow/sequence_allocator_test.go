package businessflow

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/chat-sequencer/models"
)

func staticSeed(seed int64, found bool, err error) SeedFetcher {
	return func(ctx context.Context) (int64, bool, error) {
		return seed, found, err
	}
}

func newTestAllocator(store *flakyStore) SequenceAllocator {
	return NewSequenceAllocator(store, NewChangeTracker(store), time.Second)
}

func TestAllocate(t *testing.T) {
	ctx := context.Background()
	parent := models.ChatParent{Token: "tok"}

	tests := []struct {
		name      string
		setup     func(s *flakyStore)
		seed      SeedFetcher
		want      int64
		wantErr   error
		wantKey   bool
		wantDirty bool
	}{
		{
			name:      "seeds from relational count",
			seed:      staticSeed(10, true, nil),
			want:      11,
			wantKey:   true,
			wantDirty: true,
		},
		{
			name: "hot counter ignores seed",
			setup: func(s *flakyStore) {
				_, _ = s.MemoryCounterStore.SeedAndIncrement(ctx, parent.CounterKey(), 41)
			},
			seed:      staticSeed(0, false, errBoom),
			want:      43,
			wantKey:   true,
			wantDirty: true,
		},
		{
			name:    "missing parent creates no counter",
			seed:    staticSeed(0, false, nil),
			wantErr: ErrParentNotFound,
		},
		{
			name:    "negative seed is rejected",
			seed:    staticSeed(-1, true, nil),
			wantErr: ErrInvalidSeed,
		},
		{
			name:    "seed fetch failure",
			seed:    staticSeed(0, false, errBoom),
			wantErr: ErrSeedUnavailable,
		},
		{
			name:    "counter store failure on probe",
			setup:   func(s *flakyStore) { s.incrementErr = errBoom },
			seed:    staticSeed(0, true, nil),
			wantErr: ErrAllocatorUnavailable,
		},
		{
			name:    "counter store failure on seeding",
			setup:   func(s *flakyStore) { s.seedErr = errBoom },
			seed:    staticSeed(0, true, nil),
			wantErr: ErrAllocatorUnavailable,
		},
		{
			name:      "dirty mark failure still returns the number",
			setup:     func(s *flakyStore) { s.addErr = errBoom },
			seed:      staticSeed(3, true, nil),
			want:      4,
			wantKey:   true,
			wantDirty: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFlakyStore()
			if tt.setup != nil {
				tt.setup(store)
			}

			got, err := newTestAllocator(store).Allocate(ctx, parent, tt.seed)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			_, exists, err := store.MemoryCounterStore.Get(ctx, parent.CounterKey())
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, exists)

			members, err := store.Members(ctx, models.FamilyChats.ChangesSet())
			require.NoError(t, err)
			if tt.wantDirty {
				assert.Equal(t, []string{"tok"}, members)
			} else {
				assert.Empty(t, members)
			}
		})
	}
}

func TestAllocateTimeout(t *testing.T) {
	store := newFlakyStore()
	store.block = true
	allocator := NewSequenceAllocator(store, NewChangeTracker(store), 20*time.Millisecond)

	_, err := allocator.Allocate(context.Background(), models.ChatParent{Token: "tok"}, staticSeed(0, true, nil))
	assert.ErrorIs(t, err, ErrAllocatorUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))
}

func TestAllocateIsMonotonicAcrossSeeds(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	allocator := newTestAllocator(store)
	parent := models.MessageParent{Token: "tok", ChatNumber: 2}

	seen := make([]int64, 0, 5)
	for i := 0; i < 5; i++ {
		// a stale or changed seed must not matter once the counter exists
		v, err := allocator.Allocate(ctx, parent, staticSeed(int64(100*i), true, nil))
		require.NoError(t, err)
		seen = append(seen, v)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestAllocateConcurrentCallersGetDistinctDenseNumbers(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	allocator := newTestAllocator(store)
	parent := models.MessageParent{Token: "tok", ChatNumber: 1}

	const workers = 50
	var seedReads atomic.Int32
	seed := func(ctx context.Context) (int64, bool, error) {
		seedReads.Add(1)
		return 0, true, nil
	}

	results := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := allocator.Allocate(ctx, parent, seed)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, v := range results {
		assert.Equal(t, int64(i+1), v)
	}
	assert.GreaterOrEqual(t, seedReads.Load(), int32(1))
}

func TestAllocateFirstAccessRace(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	allocator := newTestAllocator(store)
	parent := models.ChatParent{Token: "racy"}

	// both callers see the key absent before either seeds
	var arrived sync.WaitGroup
	arrived.Add(2)
	seed := func(ctx context.Context) (int64, bool, error) {
		arrived.Done()
		arrived.Wait()
		return 5, true, nil
	}

	results := make([]int64, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := allocator.Allocate(ctx, parent, seed)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int64{6, 7}, results)
}
