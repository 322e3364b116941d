// Package history is the append-only transcript of each conversation.
package history

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

type Store interface {
	// Append stores msg and returns it as stored: ID assigned when empty and
	// Timestamp clamped so it never goes backwards within the conversation.
	Append(ctx context.Context, msg chat.ChatMessage) (chat.ChatMessage, error)
	// List returns up to limit most recent messages, oldest first. limit <= 0
	// means all retained messages.
	List(ctx context.Context, conversationID string, limit int) ([]chat.ChatMessage, error)
	Delete(ctx context.Context, conversationID string) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a ULID for t. IDs generated in one process are strictly
// increasing, even within the same millisecond.
func NewID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// prepare fills ID/Timestamp and clamps Timestamp to be >= last.
func prepare(msg chat.ChatMessage, last time.Time, now time.Time) chat.ChatMessage {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	if !last.IsZero() && msg.Timestamp.Before(last) {
		msg.Timestamp = last
	}
	msg.Timestamp = msg.Timestamp.UTC()
	if msg.ID == "" {
		msg.ID = NewID(msg.Timestamp)
	}
	if msg.Language == "" {
		msg.Language = chat.LanguageEnglish
	}
	return msg
}

func tail(msgs []chat.ChatMessage, limit int) []chat.ChatMessage {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]chat.ChatMessage(nil), msgs...)
}
