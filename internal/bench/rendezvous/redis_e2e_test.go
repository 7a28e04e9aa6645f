//go:build e2e

package rendezvous

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// TestRedisStore_E2E verifies the real Redis store path against a local
// instance. Requires a Redis at 127.0.0.1:6379; skips otherwise.
func TestRedisStore_E2E(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: Redis not reachable on 127.0.0.1:6379: %v", err)
	}
	_ = rc.Close()

	store := NewRedisStore("127.0.0.1:6379")
	defer store.Close()

	runCtx, cancelRun := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelRun()

	key := "collbench-e2e/mesh/1/addr/1/0"
	if err := store.Set(runCtx, key, []byte("10.0.0.1:9999")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Wait(runCtx, key)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if string(got) != "10.0.0.1:9999" {
		t.Fatalf("unexpected value %q", got)
	}

	// Wait on a key published by a "peer" shortly after.
	lateKey := "collbench-e2e/mesh/1/addr/2/0"
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = store.Set(runCtx, lateKey, []byte("10.0.0.2:9999"))
	}()
	if _, err := store.Wait(runCtx, lateKey); err != nil {
		t.Fatalf("late wait: %v", err)
	}
}
