package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

// RedisStore keeps each transcript as a capped list of JSON messages.
// Append watches the list so the timestamp clamp holds across instances.
type RedisStore struct {
	rdb             goredis.UniversalClient
	prefix          string
	ttl             time.Duration
	perConversation int
	now             func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb goredis.UniversalClient, prefix string, ttl time.Duration, perConversation int) *RedisStore {
	if prefix == "" {
		prefix = "assistant"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, perConversation: perConversation, now: time.Now}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":hist:" + id
}

const maxAppendAttempts = 8

func (s *RedisStore) Append(ctx context.Context, msg chat.ChatMessage) (chat.ChatMessage, error) {
	key := s.key(msg.ConversationID)

	var out chat.ChatMessage
	txf := func(tx *goredis.Tx) error {
		var last time.Time
		raw, err := tx.LIndex(ctx, key, -1).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return fmt.Errorf("read history tail: %w", err)
		default:
			var prev chat.ChatMessage
			if json.Unmarshal(raw, &prev) == nil {
				last = prev.Timestamp
			}
		}

		m := prepare(msg, last, s.now())
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.RPush(ctx, key, b)
			if s.perConversation > 0 {
				pipe.LTrim(ctx, key, int64(-s.perConversation), -1)
			}
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		if err == nil {
			out = m
		}
		return err
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return chat.ChatMessage{}, fmt.Errorf("append history: %w", err)
	}
	return chat.ChatMessage{}, fmt.Errorf("append history: too much contention on %s", msg.ConversationID)
}

func (s *RedisStore) List(ctx context.Context, conversationID string, limit int) ([]chat.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	rows, err := s.rdb.LRange(ctx, s.key(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]chat.ChatMessage, 0, len(rows))
	for _, r := range rows {
		var m chat.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.rdb.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}
