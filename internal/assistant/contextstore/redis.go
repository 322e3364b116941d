package contextstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

const maxUpdateAttempts = 8

// RedisStore keeps each context as a JSON string with a sliding TTL. Every
// call returns a fresh copy; Update is an optimistic WATCH/MULTI transaction.
type RedisStore struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore stores keys as "<prefix>:ctx:<id>". ttl <= 0 keeps contexts
// until deleted.
func NewRedisStore(rdb goredis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "assistant"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":ctx:" + id
}

func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (*chat.ConversationContext, error) {
	c, err := s.load(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	raw, err := json.Marshal(newContext())
	if err != nil {
		return nil, err
	}
	if err := s.rdb.SetNX(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	// Another writer may have won the SETNX; read whatever is stored.
	return s.load(ctx, id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*chat.ConversationContext, error) {
	return s.load(ctx, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, p Patch) (*chat.ConversationContext, error) {
	key := s.key(id)
	var out *chat.ConversationContext
	txf := func(tx *goredis.Tx) error {
		c, err := s.read(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			c, err = newContext(), nil
		}
		if err != nil {
			return err
		}
		p.Apply(c)
		raw, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		if err == nil {
			out = c
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("update context: %w", err)
	}
	return nil, fmt.Errorf("update context: too much contention on %s", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete context: %w", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

// load reads the context and slides its TTL.
func (s *RedisStore) load(ctx context.Context, id string) (*chat.ConversationContext, error) {
	c, err := s.read(ctx, s.rdb, id)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		_ = s.rdb.Expire(ctx, s.key(id), s.ttl).Err()
	}
	return c, nil
}

// read must not write: inside a WATCH any write to the key aborts EXEC.
func (s *RedisStore) read(ctx context.Context, g getter, id string) (*chat.ConversationContext, error) {
	raw, err := g.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	var out chat.ConversationContext
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode context %s: %w", id, err)
	}
	if out.EmotionalJourney == nil {
		out.EmotionalJourney = []chat.EmotionalState{}
	}
	return &out, nil
}
