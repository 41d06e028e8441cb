package memory

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Set GRAPHRAG_TEST_REDIS=localhost:6379 to run against a live server.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("GRAPHRAG_TEST_REDIS")
	if addr == "" {
		t.Skip("GRAPHRAG_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLockerReject(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedisLocker(client, 10*time.Second, PolicyReject)
	session := "test-" + uuid.NewString()

	release, err := l.Lock(context.Background(), session)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	if _, err := l.Lock(context.Background(), session); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}

	release()
	again, err := l.Lock(context.Background(), session)
	if err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	again()
}

func TestRedisLockerQueueWaits(t *testing.T) {
	client := newTestRedis(t)
	l := NewRedisLocker(client, 10*time.Second, PolicyQueue)
	session := "test-" + uuid.NewString()

	release, err := l.Lock(context.Background(), session)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	go func() {
		time.Sleep(150 * time.Millisecond)
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	second, err := l.Lock(ctx, session)
	if err != nil {
		t.Fatalf("queued Lock failed: %v", err)
	}
	second()
}
