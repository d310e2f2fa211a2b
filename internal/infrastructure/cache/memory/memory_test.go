package memory

import (
	"context"
	"testing"
	"time"
)

func TestStore_SetGetRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.Set(ctx, "userflags:user:u1", []byte(`{"beta":true}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	val, found, err := s.Get(ctx, "userflags:user:u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected key to be present")
	}
	if string(val) != `{"beta":true}` {
		t.Errorf("unexpected value: %s", val)
	}
}

func TestStore_MissingKey(t *testing.T) {
	s := NewStore()

	_, found, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Error("absent key must report not found")
	}
}

func TestStore_ExpiredEntryDropped(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("v"), time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, found, _ := s.Get(ctx, "k")
	if found {
		t.Error("expired entry must read as a miss")
	}
	if s.Len() != 0 {
		t.Error("expired entry must be dropped on read")
	}
}

func TestStore_ZeroTTLNeverExpires(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	// Redis treats zero as "no expiry"; both stores must agree.
	_ = s.Set(ctx, "zero", []byte("v"), 0)
	_ = s.Set(ctx, "negative", []byte("v"), -time.Second)

	for _, key := range []string{"zero", "negative"} {
		if _, found, _ := s.Get(ctx, key); !found {
			t.Errorf("entry %q stored without ttl must not expire", key)
		}
	}
}

func TestStore_DeleteMultiple(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"), time.Minute)
	_ = s.Set(ctx, "b", []byte("2"), time.Minute)
	_ = s.Set(ctx, "c", []byte("3"), time.Minute)

	if err := s.Delete(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", s.Len())
	}
	if _, found, _ := s.Get(ctx, "c"); !found {
		t.Error("untouched key must survive")
	}
}
