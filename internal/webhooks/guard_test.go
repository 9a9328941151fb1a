package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubStore struct {
	keys    map[string]bool
	err     error
	lastTTL time.Duration
}

func newStubStore() *stubStore {
	return &stubStore{keys: map[string]bool{}}
}

func (s *stubStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.lastTTL = ttl
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *stubStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *stubStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func TestGuardCheckAndMark(t *testing.T) {
	store := newStubStore()
	guard := NewGuard(store, time.Hour)
	ctx := context.Background()

	if !guard.CheckAndMark(ctx, "paytabs", "TST2201") {
		t.Fatal("first delivery must pass")
	}
	if guard.CheckAndMark(ctx, "paytabs", "TST2201") {
		t.Fatal("replay must be caught")
	}
	// Same event id under a different provider is a different delivery.
	if !guard.CheckAndMark(ctx, "tabby", "TST2201") {
		t.Fatal("provider scopes must not collide")
	}
	if store.lastTTL != time.Hour {
		t.Fatalf("ttl = %s", store.lastTTL)
	}
}

func TestGuardRelease(t *testing.T) {
	store := newStubStore()
	guard := NewGuard(store, 0)
	ctx := context.Background()

	guard.CheckAndMark(ctx, "tamara", "tam-1")
	guard.Release(ctx, "tamara", "tam-1")

	if !guard.CheckAndMark(ctx, "tamara", "tam-1") {
		t.Fatal("released delivery must be claimable again")
	}
}

func TestGuardFailsOpen(t *testing.T) {
	store := newStubStore()
	store.err = errors.New("redis down")
	guard := NewGuard(store, time.Hour)

	if !guard.CheckAndMark(context.Background(), "paytabs", "TST2201") {
		t.Fatal("redis outage must not block deliveries")
	}
}

func TestGuardEmptyEventID(t *testing.T) {
	guard := NewGuard(newStubStore(), time.Hour)

	if !guard.CheckAndMark(context.Background(), "paytabs", "") {
		t.Fatal("missing event id skips the guard")
	}

	var nilGuard *Guard
	if !nilGuard.CheckAndMark(context.Background(), "paytabs", "x") {
		t.Fatal("nil guard passes everything through")
	}
}
