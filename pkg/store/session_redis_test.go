package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisSessions(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, time.Hour), mr
}

func TestRedisSessionLifecycle(t *testing.T) {
	store, _ := newTestRedisSessions(t)

	token, err := store.NewSession("user-1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	userID, ok, err := store.GetUserIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("GetUserIDByToken: ok=%v err=%v", ok, err)
	}
	if userID != "user-1" {
		t.Fatalf("got user %q, want user-1", userID)
	}

	if err := store.DeleteSession(token); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, ok, _ := store.GetUserIDByToken(token); ok {
		t.Fatal("session should be gone after delete")
	}
}

func TestRedisSessionExpiry(t *testing.T) {
	store, mr := newTestRedisSessions(t)

	token, err := store.NewSession("user-2")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	if _, ok, err := store.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("expired session resolved: ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionUnknownToken(t *testing.T) {
	store, _ := newTestRedisSessions(t)
	if _, ok, err := store.GetUserIDByToken("does-not-exist"); err != nil || ok {
		t.Fatalf("unknown token resolved: ok=%v err=%v", ok, err)
	}
	if err := store.DeleteSession("does-not-exist"); err != nil {
		t.Fatalf("deleting unknown token should be a no-op, got %v", err)
	}
}

func TestMemorySessionExpiry(t *testing.T) {
	store := NewMemorySessionStore(time.Millisecond)
	token, err := store.NewSession("user-3")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := store.GetUserIDByToken(token); ok {
		t.Fatal("expired session resolved")
	}
}
