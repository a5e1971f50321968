package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLinkMarkerPutGetDelete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewLinkMarkerStore(rdb, "")
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	marker := &LinkMarker{Purpose: PurposePasswordReset, AccountID: "acc-1", ExpiresAt: now.Add(time.Minute).Unix()}
	if err := store.Put(ctx, "sid-1", marker, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !mr.Exists("alm:reset:sid-1") {
		t.Fatal("expected marker key to exist")
	}

	got, err := store.Get(ctx, PurposePasswordReset, "sid-1", now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccountID != "acc-1" {
		t.Fatalf("unexpected account id %q", got.AccountID)
	}

	if _, err := store.Get(ctx, PurposeEmailVerification, "sid-1", now); !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("expected other purpose to miss, got %v", err)
	}

	if err := store.Delete(ctx, PurposePasswordReset, "sid-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, PurposePasswordReset, "sid-1", now); !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("expected deleted marker to miss, got %v", err)
	}
	if err := store.Delete(ctx, PurposePasswordReset, "sid-1"); err != nil {
		t.Fatalf("Delete of missing marker should succeed: %v", err)
	}
}

func TestLinkMarkerExpiresByClock(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewLinkMarkerStore(rdb, "m")
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	marker := &LinkMarker{Purpose: PurposeEmailVerification, AccountID: "acc-1", ExpiresAt: now.Add(time.Minute).Unix()}
	if err := store.Put(ctx, "sid", marker, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Get(ctx, PurposeEmailVerification, "sid", now.Add(2*time.Minute)); !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("expected marker past ExpiresAt to miss, got %v", err)
	}
}

func TestLinkMarkerConsume(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewLinkMarkerStore(rdb, "")
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	marker := &LinkMarker{Purpose: PurposePasswordReset, AccountID: "acc-1", ExpiresAt: now.Add(time.Minute).Unix()}
	if err := store.Put(ctx, "sid", marker, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := store.Consume(ctx, PurposePasswordReset, "sid", "acc-2"); !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("expected mismatched account to fail, got %v", err)
	}
	if err := store.Consume(ctx, PurposePasswordReset, "sid", "acc-1"); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := store.Consume(ctx, PurposePasswordReset, "sid", "acc-1"); !errors.Is(err, ErrMarkerNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestLinkMarkerCorruptRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewLinkMarkerStore(rdb, "")
	if err := mr.Set("alm:reset:sid", "\x09garbage"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.Get(context.Background(), PurposePasswordReset, "sid", time.Now()); !errors.Is(err, ErrMarkerCorrupt) {
		t.Fatalf("expected ErrMarkerCorrupt, got %v", err)
	}
}

func TestLinkMarkerRedisUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewLinkMarkerStore(rdb, "")
	mr.Close()

	err := store.Put(context.Background(), "sid", &LinkMarker{Purpose: PurposePasswordReset, AccountID: "a"}, time.Minute)
	if !errors.Is(err, ErrMarkerRedisUnavailable) {
		t.Fatalf("expected ErrMarkerRedisUnavailable, got %v", err)
	}
}
