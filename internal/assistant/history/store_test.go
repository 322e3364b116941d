package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := s.Append(ctx, chat.ChatMessage{
		ConversationID: "c1",
		Role:           chat.RoleUser,
		Type:           chat.MessageText,
		Content:        "water everywhere",
		Timestamp:      base,
		Metadata:       &chat.MessageMetadata{Intent: "report_damage"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	if first.Language != chat.LanguageEnglish {
		t.Fatalf("language default=%q", first.Language)
	}

	// Earlier timestamp must be clamped forward.
	second, err := s.Append(ctx, chat.ChatMessage{
		ConversationID: "c1",
		Role:           chat.RoleAssistant,
		Type:           chat.MessageText,
		Content:        "we can help",
		Timestamp:      base.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !second.Timestamp.Equal(first.Timestamp) {
		t.Fatalf("timestamp not clamped: %v < %v", second.Timestamp, first.Timestamp)
	}

	third, err := s.Append(ctx, chat.ChatMessage{
		ID:             "keep-me",
		ConversationID: "c1",
		Role:           chat.RoleUser,
		Type:           chat.MessageText,
		Content:        "thanks",
		Timestamp:      base.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if third.ID != "keep-me" {
		t.Fatalf("caller id overwritten: %q", third.ID)
	}

	if _, err := s.Append(ctx, chat.ChatMessage{ConversationID: "other", Content: "x", Role: chat.RoleUser, Type: chat.MessageText}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	all, err := s.List(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len=%d want 3", len(all))
	}
	for i, want := range []string{"water everywhere", "we can help", "thanks"} {
		if all[i].Content != want {
			t.Fatalf("all[%d]=%q want %q", i, all[i].Content, want)
		}
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("timestamps decrease at %d", i)
		}
	}
	if all[0].Metadata == nil || all[0].Metadata.Intent != "report_damage" {
		t.Fatalf("metadata lost: %+v", all[0].Metadata)
	}

	last2, err := s.List(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(last2) != 2 || last2[0].Content != "we can help" || last2[1].Content != "thanks" {
		t.Fatalf("limit wrong: %+v", last2)
	}

	if err := s.Delete(ctx, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := s.List(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(gone) != 0 {
		t.Fatalf("expected empty after delete, got %d", len(gone))
	}
	other, _ := s.List(ctx, "other", 0)
	if len(other) != 1 {
		t.Fatalf("delete touched another conversation")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(MemoryOptions{MaxConversations: 10, PerConversation: 50}))
}

func TestSQLStoreSQLite(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "archive.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&MessageRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	exerciseStore(t, NewSQLStore(gdb, nil))
}

func TestMemoryStorePerConversationCap(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{PerConversation: 3})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, chat.ChatMessage{ConversationID: "c", Content: string(rune('a' + i))}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, _ := s.List(ctx, "c", 0)
	if len(got) != 3 || got[0].Content != "c" || got[2].Content != "e" {
		t.Fatalf("cap not applied: %+v", got)
	}
}

func TestMemoryStoreEvictsLeastRecentConversation(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{MaxConversations: 2})
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, _ = s.Append(ctx, chat.ChatMessage{ConversationID: id, Content: id})
	}
	if got, _ := s.List(ctx, "a", 0); len(got) != 0 {
		t.Fatalf("oldest conversation should be evicted")
	}
	if got, _ := s.List(ctx, "c", 0); len(got) != 1 {
		t.Fatalf("newest conversation missing")
	}
}

func TestNewIDIsMonotonic(t *testing.T) {
	now := time.Now()
	prev := NewID(now)
	for i := 0; i < 1000; i++ {
		next := NewID(now)
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

type failingStore struct{ Store }

func (failingStore) Append(ctx context.Context, msg chat.ChatMessage) (chat.ChatMessage, error) {
	return chat.ChatMessage{}, errors.New("archive down")
}

func TestTeeIgnoresArchiveFailure(t *testing.T) {
	primary := NewMemoryStore(MemoryOptions{})
	tee := NewTee(primary, failingStore{}, nil)
	stored, err := tee.Append(context.Background(), chat.ChatMessage{ConversationID: "c", Content: "hi"})
	if err != nil {
		t.Fatalf("tee append: %v", err)
	}
	got, _ := tee.List(context.Background(), "c", 0)
	if len(got) != 1 || got[0].ID != stored.ID {
		t.Fatalf("primary not written: %+v", got)
	}
}

func TestTeeMirrorsIntoArchive(t *testing.T) {
	primary := NewMemoryStore(MemoryOptions{})
	archive := NewMemoryStore(MemoryOptions{})
	tee := NewTee(primary, archive, nil)
	stored, _ := tee.Append(context.Background(), chat.ChatMessage{ConversationID: "c", Content: "hi"})
	got, _ := archive.List(context.Background(), "c", 0)
	if len(got) != 1 || got[0].ID != stored.ID || !got[0].Timestamp.Equal(stored.Timestamp) {
		t.Fatalf("archive copy differs: %+v vs %+v", got, stored)
	}
}
