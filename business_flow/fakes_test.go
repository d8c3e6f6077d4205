package businessflow

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/amirphl/chat-sequencer/app/services"
	"github.com/amirphl/chat-sequencer/models"
	"github.com/amirphl/chat-sequencer/repository"
)

var errBoom = errors.New("boom")

// flakyStore wraps the memory store with injectable failures and hooks
type flakyStore struct {
	*services.MemoryCounterStore

	mu           sync.Mutex
	incrementErr error
	seedErr      error
	getErr       map[string]error
	addErr       error
	block        bool
	onGet        func(key string)
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryCounterStore: services.NewMemoryCounterStore(), getErr: map[string]error{}}
}

func (s *flakyStore) IncrementIfExists(ctx context.Context, key string) (int64, bool, error) {
	if s.block {
		<-ctx.Done()
		return 0, false, ctx.Err()
	}
	if s.incrementErr != nil {
		return 0, false, s.incrementErr
	}
	return s.MemoryCounterStore.IncrementIfExists(ctx, key)
}

func (s *flakyStore) SeedAndIncrement(ctx context.Context, key string, seed int64) (int64, error) {
	if s.seedErr != nil {
		return 0, s.seedErr
	}
	return s.MemoryCounterStore.SeedAndIncrement(ctx, key, seed)
}

func (s *flakyStore) Get(ctx context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	err, hook := s.getErr[key], s.onGet
	s.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	if err != nil {
		return 0, false, err
	}
	return s.MemoryCounterStore.Get(ctx, key)
}

func (s *flakyStore) AddMembers(ctx context.Context, set string, members ...string) error {
	if s.addErr != nil {
		return s.addErr
	}
	return s.MemoryCounterStore.AddMembers(ctx, set, members...)
}

// fakeAppRepo keeps chats_count per token and applies the same monotonic update rule as Postgres
type fakeAppRepo struct {
	repository.ApplicationRepository

	mu        sync.Mutex
	counts    map[string]int64
	seedErr   error
	batchErr  error
	oneErr    map[string]error
	seedReads int
}

func newFakeAppRepo(counts map[string]int64) *fakeAppRepo {
	return &fakeAppRepo{counts: counts, oneErr: map[string]error{}}
}

func (r *fakeAppRepo) ChatsCountByToken(ctx context.Context, token string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seedReads++
	if r.seedErr != nil {
		return 0, false, r.seedErr
	}
	v, ok := r.counts[token]
	return v, ok, nil
}

func (r *fakeAppRepo) Exists(ctx context.Context, filter models.ApplicationFilter) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.counts[*filter.Token]
	return ok, nil
}

func (r *fakeAppRepo) UpdateChatsCount(ctx context.Context, u models.ChatsCountUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.oneErr[u.Token]; err != nil {
		return err
	}
	if cur, ok := r.counts[u.Token]; ok && u.ChatsCount > cur {
		r.counts[u.Token] = u.ChatsCount
	}
	return nil
}

func (r *fakeAppRepo) UpdateChatsCounts(ctx context.Context, updates []models.ChatsCountUpdate) error {
	if r.batchErr != nil {
		return r.batchErr
	}
	for _, u := range updates {
		if err := r.UpdateChatsCount(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAppRepo) count(token string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[token]
}

type chatKey struct {
	token  string
	number int64
}

type fakeChatRepo struct {
	repository.ChatRepository

	mu     sync.Mutex
	counts map[chatKey]int64
	chats  []*models.Chat
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{counts: map[chatKey]int64{}}
}

func (r *fakeChatRepo) MessagesCount(ctx context.Context, token string, number int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.counts[chatKey{token, number}]
	return v, ok, nil
}

func (r *fakeChatRepo) Exists(ctx context.Context, filter models.ChatFilter) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.counts[chatKey{*filter.Token, *filter.Number}]
	return ok, nil
}

func (r *fakeChatRepo) ListByToken(ctx context.Context, token string, limit, offset int) ([]*models.Chat, error) {
	var out []*models.Chat
	for _, c := range r.chats {
		if c.Token == token {
			out = append(out, c)
		}
	}
	return page(out, limit, offset), nil
}

func (r *fakeChatRepo) UpdateMessagesCount(ctx context.Context, u models.MessagesCountUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := chatKey{u.Token, u.ChatNumber}
	if cur, ok := r.counts[k]; ok && u.MessagesCount > cur {
		r.counts[k] = u.MessagesCount
	}
	return nil
}

func (r *fakeChatRepo) UpdateMessagesCounts(ctx context.Context, updates []models.MessagesCountUpdate) error {
	for _, u := range updates {
		if err := r.UpdateMessagesCount(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

type fakeMessageRepo struct {
	repository.MessageRepository

	messages []*models.Message
	err      error
}

func (r *fakeMessageRepo) CreatorID(ctx context.Context, token string, chatNumber, number int64) (int64, bool, error) {
	if r.err != nil {
		return 0, false, r.err
	}
	for _, m := range r.messages {
		if m.Token == token && m.ChatNumber == chatNumber && m.Number == number {
			return m.CreatorID, true, nil
		}
	}
	return 0, false, nil
}

func (r *fakeMessageRepo) ListByChat(ctx context.Context, token string, chatNumber int64, limit, offset int) ([]*models.Message, error) {
	var out []*models.Message
	for _, m := range r.messages {
		if m.Token == token && m.ChatNumber == chatNumber {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	topics []string
	events []models.Event
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Event(nil), p.events...)
}
