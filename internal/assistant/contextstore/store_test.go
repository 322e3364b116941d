package contextstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/restoration-assistant/internal/domain/chat"
)

func ptr[T any](v T) *T { return &v }

func TestPatchApplyShallowMerge(t *testing.T) {
	c := newContext()
	c.PropertyType = "house"
	c.CustomerInfo = &chat.CustomerInfo{Name: "Sam", Phone: "0400000000"}

	Patch{
		ServiceType:      ptr(chat.ServiceStorm),
		CustomerInfo:     &chat.CustomerInfo{CustomerType: chat.CustomerVIP},
		EmotionalJourney: []chat.EmotionalState{chat.EmotionAnxious},
		Interactions:     1,
	}.Apply(c)

	if c.ServiceType != chat.ServiceStorm || c.PropertyType != "house" {
		t.Fatalf("c=%+v", c)
	}
	// Shallow: the whole CustomerInfo is replaced, not field-merged.
	if c.CustomerInfo.Name != "" || c.CustomerInfo.CustomerType != chat.CustomerVIP {
		t.Fatalf("customer=%+v", c.CustomerInfo)
	}
	if len(c.EmotionalJourney) != 1 || c.PreviousInteractions != 1 {
		t.Fatalf("journey=%v interactions=%d", c.EmotionalJourney, c.PreviousInteractions)
	}
}

func TestPatchCopiesPointers(t *testing.T) {
	c := newContext()
	u := &chat.Urgency{Level: chat.UrgencyLow}
	Patch{Urgency: u}.Apply(c)
	u.Level = chat.UrgencyCritical
	if c.Urgency.Level != chat.UrgencyLow {
		t.Fatalf("stored urgency aliased caller value")
	}
}

func TestMemoryGetOrCreateIdempotent(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	ctx := context.Background()

	a, err := s.GetOrCreate(ctx, "c1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	b, _ := s.GetOrCreate(ctx, "c1")
	if a != b {
		t.Fatalf("expected same pointer on repeat GetOrCreate")
	}
	if a.EmotionalJourney == nil || len(a.EmotionalJourney) != 0 || a.PreviousInteractions != 0 {
		t.Fatalf("new context not empty: %+v", a)
	}

	if _, err := s.Update(ctx, "c1", Patch{EmotionalJourney: []chat.EmotionalState{chat.EmotionNeutral}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(a.EmotionalJourney) != 1 {
		t.Fatalf("update not visible through earlier pointer")
	}
}

func TestMemoryGetSnapshotAndDelete(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	ctx := context.Background()
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}

	live, _ := s.Update(ctx, "c1", Patch{ServiceType: ptr(chat.ServiceMould)})
	snap, err := s.Get(ctx, "c1")
	if err != nil || snap.ServiceType != chat.ServiceMould {
		t.Fatalf("snap=%+v err=%v", snap, err)
	}
	if snap == live {
		t.Fatalf("Get should return a copy")
	}

	if err := s.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete")
	}
	fresh, _ := s.GetOrCreate(ctx, "c1")
	if fresh == live || fresh.ServiceType != "" {
		t.Fatalf("expected a fresh context after delete")
	}
}

func TestMemoryBoundedByMaxConversations(t *testing.T) {
	var evicted []string
	s := NewMemoryStore(MemoryOptions{MaxConversations: 3, OnEvict: func(id string) { evicted = append(evicted, id) }})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = s.GetOrCreate(ctx, fmt.Sprintf("c%d", i))
	}
	if s.Len() != 3 {
		t.Fatalf("len=%d", s.Len())
	}
	if len(evicted) != 2 || evicted[0] != "c0" || evicted[1] != "c1" {
		t.Fatalf("evicted=%v", evicted)
	}
}

// A conversation evicted mid-run restarts from an empty context on Update.
func TestMemoryUpdateAfterEvictionStartsFresh(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{MaxConversations: 2})
	ctx := context.Background()
	mould := chat.ServiceMould
	first, _ := s.Update(ctx, "c1", Patch{ServiceType: &mould})

	_, _ = s.GetOrCreate(ctx, "c2")
	_, _ = s.GetOrCreate(ctx, "c3")

	got, err := s.Update(ctx, "c1", Patch{PropertyType: ptrTo("house")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got == first || got.ServiceType == mould {
		t.Fatalf("expected a fresh context, got %+v", got)
	}
	if got.PropertyType != "house" {
		t.Fatalf("patch not applied: %+v", got)
	}
}

func TestMemoryIdleTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStore(MemoryOptions{IdleTTL: time.Hour, Now: func() time.Time { return now }})
	ctx := context.Background()
	first, _ := s.GetOrCreate(ctx, "c1")

	now = now.Add(2 * time.Hour)
	second, _ := s.GetOrCreate(ctx, "c1")
	if first == second {
		t.Fatalf("idle context should have expired")
	}
}

func TestMemoryConcurrentUpdates(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{})
	ctx := context.Background()
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, "c1", Patch{EmotionalJourney: []chat.EmotionalState{chat.EmotionNeutral}, Interactions: 1})
		}()
	}
	wg.Wait()
	c, _ := s.Get(ctx, "c1")
	if len(c.EmotionalJourney) != n || c.PreviousInteractions != n {
		t.Fatalf("journey=%d interactions=%d", len(c.EmotionalJourney), c.PreviousInteractions)
	}
}

func ptrTo[T any](v T) *T { return &v }
