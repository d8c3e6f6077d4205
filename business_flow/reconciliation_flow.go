package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/chat-sequencer/app/services"
	"github.com/amirphl/chat-sequencer/models"
	"github.com/amirphl/chat-sequencer/repository"
	"github.com/amirphl/chat-sequencer/utils"
)

// ReconciliationFlow copies dirty counters back into the relational counts
type ReconciliationFlow interface {
	// Reconcile returns the number of parents whose count was written
	Reconcile(ctx context.Context, family models.Family) (int, error)
	ReconcileAll(ctx context.Context) (map[models.Family]int, error)
}

type countValue struct {
	parent models.ParentKey
	value  int64
}

// countWriter persists reconciled counts for one family; writes never lower a stored count
type countWriter interface {
	writeBatch(ctx context.Context, values []countValue) error
	writeOne(ctx context.Context, value countValue) error
}

type chatsCountWriter struct {
	repo repository.ApplicationRepository
}

func (w chatsCountWriter) update(v countValue) models.ChatsCountUpdate {
	return models.ChatsCountUpdate{Token: v.parent.(models.ChatParent).Token, ChatsCount: v.value}
}

func (w chatsCountWriter) writeBatch(ctx context.Context, values []countValue) error {
	updates := make([]models.ChatsCountUpdate, len(values))
	for i, v := range values {
		updates[i] = w.update(v)
	}
	return w.repo.UpdateChatsCounts(ctx, updates)
}

func (w chatsCountWriter) writeOne(ctx context.Context, value countValue) error {
	return w.repo.UpdateChatsCount(ctx, w.update(value))
}

type messagesCountWriter struct {
	repo repository.ChatRepository
}

func (w messagesCountWriter) update(v countValue) models.MessagesCountUpdate {
	p := v.parent.(models.MessageParent)
	return models.MessagesCountUpdate{Token: p.Token, ChatNumber: p.ChatNumber, MessagesCount: v.value}
}

func (w messagesCountWriter) writeBatch(ctx context.Context, values []countValue) error {
	updates := make([]models.MessagesCountUpdate, len(values))
	for i, v := range values {
		updates[i] = w.update(v)
	}
	return w.repo.UpdateMessagesCounts(ctx, updates)
}

func (w messagesCountWriter) writeOne(ctx context.Context, value countValue) error {
	return w.repo.UpdateMessagesCount(ctx, w.update(value))
}

// ReconciliationFlowImpl implements ReconciliationFlow
type ReconciliationFlowImpl struct {
	store     services.CounterStore
	tracker   ChangeTracker
	writers   map[models.Family]countWriter
	batchSize int
}

func NewReconciliationFlow(
	store services.CounterStore,
	tracker ChangeTracker,
	appRepo repository.ApplicationRepository,
	chatRepo repository.ChatRepository,
	batchSize int,
) ReconciliationFlow {
	if batchSize <= 0 {
		batchSize = utils.DefaultReconcileBatchSize
	}
	return &ReconciliationFlowImpl{
		store:   store,
		tracker: tracker,
		writers: map[models.Family]countWriter{
			models.FamilyChats:    chatsCountWriter{repo: appRepo},
			models.FamilyMessages: messagesCountWriter{repo: chatRepo},
		},
		batchSize: batchSize,
	}
}

func (f *ReconciliationFlowImpl) Reconcile(ctx context.Context, family models.Family) (int, error) {
	writer, ok := f.writers[family]
	if !ok {
		return 0, NewBusinessErrorf("INVALID_FAMILY", "cannot reconcile %q", ErrInvalidFamily, family)
	}

	start := time.Now()
	defer func() {
		reconcileDuration.WithLabelValues(family.String()).Observe(time.Since(start).Seconds())
	}()

	parents, err := f.tracker.ListDirty(ctx, family)
	if err != nil {
		return 0, NewBusinessErrorf("RECONCILE_FAILED", "failed to list dirty %s", fmt.Errorf("%w: %w", ErrAllocatorUnavailable, err), family)
	}

	written := 0
	for _, batch := range utils.Chunk(parents, f.batchSize) {
		// unclaimed members stay in the set for the next pass
		if err := ctx.Err(); err != nil {
			return written, NewBusinessErrorf("RECONCILE_FAILED", "reconciliation of %s interrupted", fmt.Errorf("%w: %w", ErrReconcileFailed, err), family)
		}

		if err := f.tracker.Claim(ctx, family, batch...); err != nil {
			return written, NewBusinessErrorf("RECONCILE_FAILED", "failed to claim dirty %s", fmt.Errorf("%w: %w", ErrAllocatorUnavailable, err), family)
		}

		values := f.readCounters(ctx, family, batch)
		written += f.write(ctx, family, writer, values)
	}

	if written > 0 || len(parents) > 0 {
		log.Printf("reconcile: %s processed=%d written=%d", family, len(parents), written)
	}
	return written, nil
}

// readCounters reads the claimed counters; evicted counters are dropped and unreadable ones restored
func (f *ReconciliationFlowImpl) readCounters(ctx context.Context, family models.Family, batch []models.ParentKey) []countValue {
	values := make([]countValue, 0, len(batch))
	var unreadable []models.ParentKey

	for _, parent := range batch {
		v, ok, err := f.store.Get(ctx, parent.CounterKey())
		if err != nil {
			log.Printf("reconcile: failed to read %s: %v", parent.CounterKey(), err)
			unreadable = append(unreadable, parent)
			continue
		}
		if !ok {
			reconcileKeysTotal.WithLabelValues(family.String(), "skipped").Inc()
			continue
		}
		values = append(values, countValue{parent: parent, value: v})
	}

	f.restore(ctx, family, unreadable)
	return values
}

// write tries one batched statement, then falls back to per-parent updates
func (f *ReconciliationFlowImpl) write(ctx context.Context, family models.Family, writer countWriter, values []countValue) int {
	if len(values) == 0 {
		return 0
	}

	err := writer.writeBatch(ctx, values)
	if err == nil {
		reconcileKeysTotal.WithLabelValues(family.String(), "written").Add(float64(len(values)))
		return len(values)
	}
	log.Printf("reconcile: batch update of %d %s failed, retrying one by one: %v", len(values), family, err)

	written := 0
	var failed []models.ParentKey
	for _, v := range values {
		if err := writer.writeOne(ctx, v); err != nil {
			log.Printf("reconcile: failed to write %s=%d: %v", v.parent.CounterKey(), v.value, err)
			failed = append(failed, v.parent)
			continue
		}
		written++
	}

	reconcileKeysTotal.WithLabelValues(family.String(), "written").Add(float64(written))
	f.restore(ctx, family, failed)
	return written
}

func (f *ReconciliationFlowImpl) restore(ctx context.Context, family models.Family, parents []models.ParentKey) {
	if len(parents) == 0 {
		return
	}
	reconcileKeysTotal.WithLabelValues(family.String(), "failed").Add(float64(len(parents)))

	// restore even if ctx was cancelled so claimed parents are not lost
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), utils.DefaultCounterTimeout)
	defer cancel()
	if err := f.tracker.Restore(restoreCtx, family, parents...); err != nil {
		log.Printf("reconcile: failed to restore %d %s parents; they resync on their next allocation: %v", len(parents), family, err)
	}
}

func (f *ReconciliationFlowImpl) ReconcileAll(ctx context.Context) (map[models.Family]int, error) {
	result := make(map[models.Family]int, len(models.Families))
	var errs []error
	for _, family := range models.Families {
		n, err := f.Reconcile(ctx, family)
		result[family] = n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}
