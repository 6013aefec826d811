//go:build integration

package queue

// go test -tags=integration ./internal/queue -count=1

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/domain"
)

func openRedis(t *testing.T) *RedisQueue {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR empty")
	}
	stream := fmt.Sprintf("statuspulse:test:%d", time.Now().UnixNano())
	q, err := NewRedis(context.Background(), &redis.Options{Addr: addr}, stream, "test-region", zap.NewNop())
	if err != nil {
		t.Fatalf("open redis queue: %v", err)
	}
	t.Cleanup(func() {
		q.client.Del(context.Background(), stream)
		q.Close()
	})
	return q
}

func TestRedisQueue_EnqueueClaimAck(t *testing.T) {
	q := openRedis(t)
	ctx := context.Background()

	err := q.Enqueue(ctx, domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := q.Claim(ctx, "w1", 10, time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(got) != 1 || got[0].Task.TargetID != "T1" || got[0].Task.URL != "https://t1.example" {
		t.Fatalf("unexpected deliveries: %+v", got)
	}

	info, err := q.PendingInfo(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if info.Count != 1 {
		t.Fatalf("want 1 pending, got %d", info.Count)
	}

	if err := q.Acknowledge(ctx, got[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	info, _ = q.PendingInfo(ctx)
	if info.Count != 0 {
		t.Fatalf("pending list not drained: %+v", info)
	}
}

func TestRedisQueue_ReclaimTransfersOwnership(t *testing.T) {
	q := openRedis(t)
	ctx := context.Background()

	_ = q.Enqueue(ctx, domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})
	got, err := q.Claim(ctx, "w1", 1, time.Second)
	if err != nil || len(got) != 1 {
		t.Fatalf("claim: %v (%d)", err, len(got))
	}

	// Idle for ~nothing yet: not reclaimable at a 200ms threshold.
	re, err := q.ReclaimStale(ctx, "w2", 200*time.Millisecond, 10, 10)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(re) != 0 {
		t.Fatalf("fresh claim was reclaimed: %+v", re)
	}

	time.Sleep(250 * time.Millisecond)
	re, err = q.ReclaimStale(ctx, "w2", 200*time.Millisecond, 10, 10)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(re) != 1 || re[0].ID != got[0].ID {
		t.Fatalf("want reclaimed delivery %s, got %+v", got[0].ID, re)
	}
}

func TestRedisQueue_ClaimBlockTimeout(t *testing.T) {
	q := openRedis(t)

	start := time.Now()
	got, err := q.Claim(context.Background(), "w1", 1, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("want no deliveries, got %+v", got)
	}
	if time.Since(start) < 150*time.Millisecond {
		t.Fatalf("claim did not block")
	}
}
