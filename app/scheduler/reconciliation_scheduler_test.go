package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/chat-sequencer/models"
)

type countingFlow struct {
	mu       sync.Mutex
	calls    int
	ctxAlive []bool
	err      error
}

func (f *countingFlow) Reconcile(ctx context.Context, family models.Family) (int, error) {
	return 0, nil
}

func (f *countingFlow) ReconcileAll(ctx context.Context) (map[models.Family]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ctxAlive = append(f.ctxAlive, ctx.Err() == nil)
	return map[models.Family]int{models.FamilyChats: 1, models.FamilyMessages: 2}, f.err
}

func (f *countingFlow) snapshot() (int, []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]bool(nil), f.ctxAlive...)
}

func TestSchedulerRunsOnStartTickAndStop(t *testing.T) {
	flow := &countingFlow{}
	var logs bytes.Buffer
	s := NewReconciliationScheduler(flow, log.New(&logs, "", 0), 20*time.Millisecond)

	stop := s.Start(context.Background())

	require.Eventually(t, func() bool {
		calls, _ := flow.snapshot()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	stop()
	afterStop, alive := flow.snapshot()

	// the final pass runs with a live context even though the loop was cancelled
	assert.True(t, alive[len(alive)-1])

	stop()
	time.Sleep(50 * time.Millisecond)
	calls, _ := flow.snapshot()
	assert.Equal(t, afterStop, calls, "no passes after stop")

	assert.Contains(t, logs.String(), "family=chats parents=1")
	assert.Contains(t, logs.String(), "family=messages parents=2")
}

func TestSchedulerFinalPassSurvivesParentCancel(t *testing.T) {
	flow := &countingFlow{err: errors.New("redis down")}
	var logs bytes.Buffer
	s := NewReconciliationScheduler(flow, log.New(&logs, "", 0), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	stop := s.Start(ctx)
	require.Eventually(t, func() bool {
		calls, _ := flow.snapshot()
		return calls == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	stop()

	calls, alive := flow.snapshot()
	assert.Equal(t, 2, calls)
	assert.True(t, alive[1])
	assert.Contains(t, logs.String(), "finished with errors: redis down")
}
