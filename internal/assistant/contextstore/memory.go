package contextstore

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/pkg/lru"
)

// MemoryStore holds contexts in process, bounded by an LRU and an optional
// idle TTL. GetOrCreate returns the same pointer for an id until it is
// evicted or deleted.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *chat.ConversationContext]
}

var _ Store = (*MemoryStore)(nil)

type MemoryOptions struct {
	MaxConversations int
	IdleTTL          time.Duration
	Now              func() time.Time
	OnEvict          func(id string)
}

func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	lopts := []lru.Option[string, *chat.ConversationContext]{
		lru.WithTTL[string, *chat.ConversationContext](opts.IdleTTL),
		lru.WithClock[string, *chat.ConversationContext](opts.Now),
	}
	if opts.OnEvict != nil {
		onEvict := opts.OnEvict
		lopts = append(lopts, lru.WithEvict[string, *chat.ConversationContext](func(id string, _ *chat.ConversationContext) {
			onEvict(id)
		}))
	}
	return &MemoryStore{cache: lru.New[string, *chat.ConversationContext](opts.MaxConversations, lopts...)}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (*chat.ConversationContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id), nil
}

func (s *MemoryStore) getOrCreateLocked(id string) *chat.ConversationContext {
	if c, ok := s.cache.Get(id); ok {
		return c
	}
	c := newContext()
	s.cache.Add(id, c)
	return c
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*chat.ConversationContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// Update merges in place, so earlier GetOrCreate callers see the change.
func (s *MemoryStore) Update(ctx context.Context, id string, p Patch) (*chat.ConversationContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreateLocked(id)
	p.Apply(c)
	return c, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
