package history

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
	"github.com/yungbote/restoration-assistant/internal/pkg/lru"
)

// MemoryStore keeps at most MaxConversations transcripts of at most
// PerConversation messages each; the oldest messages are dropped first.
type MemoryStore struct {
	mu              sync.Mutex
	convs           *lru.Cache[string, []chat.ChatMessage]
	perConversation int
	now             func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type MemoryOptions struct {
	MaxConversations int
	PerConversation  int
	IdleTTL          time.Duration
	Now              func() time.Time
}

func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		convs: lru.New[string, []chat.ChatMessage](opts.MaxConversations,
			lru.WithTTL[string, []chat.ChatMessage](opts.IdleTTL),
			lru.WithClock[string, []chat.ChatMessage](now),
		),
		perConversation: opts.PerConversation,
		now:             now,
	}
}

func (s *MemoryStore) Append(ctx context.Context, msg chat.ChatMessage) (chat.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, _ := s.convs.Get(msg.ConversationID)
	var last time.Time
	if n := len(msgs); n > 0 {
		last = msgs[n-1].Timestamp
	}
	msg = prepare(msg, last, s.now())
	msgs = append(msgs, msg)
	if s.perConversation > 0 && len(msgs) > s.perConversation {
		msgs = append([]chat.ChatMessage(nil), msgs[len(msgs)-s.perConversation:]...)
	}
	s.convs.Add(msg.ConversationID, msgs)
	return msg, nil
}

func (s *MemoryStore) List(ctx context.Context, conversationID string, limit int) ([]chat.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, _ := s.convs.Get(conversationID)
	return tail(msgs, limit), nil
}

func (s *MemoryStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs.Remove(conversationID)
	return nil
}
