package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/statuspulse/statuspulse/internal/domain"
)

var _ TaskQueue = (*RedisQueue)(nil)

// RedisQueue implements TaskQueue on a Redis Stream with one consumer group
// per deployment region. Field names on the stream are the queue's only wire
// schema.
type RedisQueue struct {
	client *redis.Client
	stream string
	group  string
	log    *zap.Logger
}

func NewRedis(ctx context.Context, opts *redis.Options, stream, group string, log *zap.Logger) (*RedisQueue, error) {
	client := redis.NewClient(opts)

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	// Create the group at the stream head; MKSTREAM so enqueue and claim can
	// start in either order. BUSYGROUP means another worker got here first.
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %q: %w", group, err)
	}

	log.Info("queue_ready",
		zap.String("stream", stream),
		zap.String("group", group),
	)
	return &RedisQueue{client: client, stream: stream, group: group, log: log}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, task domain.CheckTask) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"target_id": string(task.TargetID),
			"url":       task.URL,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, consumer string, maxCount int, block time.Duration) ([]Delivery, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(maxCount),
		Block:    block,
	}).Result()
	if err != nil {
		// Block timeout with nothing to read.
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var out []Delivery
	for _, s := range streams {
		for _, msg := range s.Messages {
			out = append(out, messageToDelivery(msg))
		}
	}
	return out, nil
}

func (q *RedisQueue) Acknowledge(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, q.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (q *RedisQueue) ReclaimStale(ctx context.Context, consumer string, minIdle time.Duration, maxBatch, maxTotal int) ([]Delivery, error) {
	var out []Delivery
	start := "0-0"
	for len(out) < maxTotal {
		count := maxBatch
		if rest := maxTotal - len(out); rest < count {
			count = rest
		}
		msgs, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: consumer,
			MinIdle:  minIdle,
			Start:    start,
			Count:    int64(count),
		}).Result()
		if err != nil {
			return out, fmt.Errorf("xautoclaim: %w", err)
		}
		for _, msg := range msgs {
			// Entries trimmed from the stream come back without values;
			// there's nothing left to process for those.
			if len(msg.Values) == 0 {
				continue
			}
			out = append(out, messageToDelivery(msg))
		}
		// A cursor back at 0-0 means the scan wrapped around.
		if next == "0-0" || len(msgs) == 0 {
			break
		}
		start = next
	}
	return out, nil
}

func (q *RedisQueue) PendingInfo(ctx context.Context) (PendingInfo, error) {
	summary, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		return PendingInfo{}, fmt.Errorf("xpending: %w", err)
	}
	info := PendingInfo{Count: summary.Count}
	if summary.Count == 0 {
		return info, nil
	}

	// The summary has no idle times; ask for the single oldest entry.
	oldest, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  "-",
		End:    "+",
		Count:  1,
	}).Result()
	if err != nil {
		return info, fmt.Errorf("xpending ext: %w", err)
	}
	if len(oldest) > 0 {
		info.OldestIdle = oldest[0].Idle
	}
	return info, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func messageToDelivery(msg redis.XMessage) Delivery {
	d := Delivery{ID: msg.ID}
	if v, ok := msg.Values["target_id"].(string); ok {
		d.Task.TargetID = domain.TargetID(v)
	}
	if v, ok := msg.Values["url"].(string); ok {
		d.Task.URL = v
	}
	return d
}
