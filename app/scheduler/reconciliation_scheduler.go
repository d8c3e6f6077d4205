// Package scheduler runs background jobs on a fixed interval
package scheduler

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	businessflow "github.com/amirphl/chat-sequencer/business_flow"
	"github.com/amirphl/chat-sequencer/models"
	"github.com/amirphl/chat-sequencer/utils"
)

// ReconciliationScheduler periodically flushes dirty counters into the relational store
type ReconciliationScheduler struct {
	flow     businessflow.ReconciliationFlow
	logger   *log.Logger
	interval time.Duration
	// finalTimeout bounds the pass run after Stop
	finalTimeout time.Duration

	mu      sync.Mutex
	running bool
}

func NewReconciliationScheduler(flow businessflow.ReconciliationFlow, logger *log.Logger, interval time.Duration) *ReconciliationScheduler {
	if interval <= 0 {
		interval = utils.DefaultReconcileInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReconciliationScheduler{
		flow:         flow,
		logger:       logger,
		interval:     interval,
		finalTimeout: 30 * time.Second,
	}
}

// Start launches the loop in a background goroutine and returns a stop function.
// Stop waits for the loop to exit and then runs one last pass so counters allocated
// just before shutdown still reach the relational store.
func (s *ReconciliationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done

			finalCtx, finalCancel := context.WithTimeout(context.WithoutCancel(parent), s.finalTimeout)
			defer finalCancel()
			s.runOnce(finalCtx)
		})
	}
}

// runOnce skips the tick when the previous pass is still in flight
func (s *ReconciliationScheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Println("scheduler: previous reconciliation still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	results, err := s.flow.ReconcileAll(ctx)
	if err != nil {
		s.logger.Printf("scheduler: reconciliation finished with errors: %v", err)
	}

	families := make([]string, 0, len(results))
	total := 0
	for f, n := range results {
		families = append(families, string(f))
		total += n
	}
	if total == 0 {
		return
	}
	sort.Strings(families)
	for _, f := range families {
		s.logger.Printf("scheduler: reconciled family=%s parents=%d", f, results[models.Family(f)])
	}
	s.logger.Printf("scheduler: reconciliation pass took %s", time.Since(start).Round(time.Millisecond))
}
