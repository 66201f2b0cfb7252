// Package queue implements the durable FIFO job queue contract (spec §4.1)
// directly on go-redis: push is LPUSH, pop is a blocking BRPOP, depth is
// LLEN. Queues are named strings (see types.QueueName) and carry a single
// opaque UTF-8 payload per job.
package queue

import (
	"context"
	"time"

	"github.com/go-redis/redis/v9"

	"github.com/ironvale-labs/dtcforge/pkg/errors"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// redisCommander is the slice of *redis.Client this package actually uses,
// narrowed to an interface so tests can substitute a fake without a real
// Redis server.
type redisCommander interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Queue is a thin wrapper over a shared Redis client. It holds no
// authoritative state of its own (spec §5) — a lost message is always
// recoverable from the document's stage column.
type Queue struct {
	client redisCommander
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Push appends payload to the tail of queue. Idempotency, if needed, is the
// caller's responsibility (spec §4.1) — the queue itself performs no dedup.
func (q *Queue) Push(ctx context.Context, queue types.QueueName, payload string) error {
	if err := q.client.LPush(ctx, string(queue), payload).Err(); err != nil {
		return errors.Wrap(err, "Queue.Push", "failed to push job")
	}
	return nil
}

// Pop blocks up to timeout waiting for a job on queue. Returns ("", false)
// if timeout elapses with no job, never an error for that case.
func (q *Queue) Pop(ctx context.Context, queue types.QueueName, timeout time.Duration) (string, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, string(queue)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "Queue.Pop", "failed to pop job")
	}
	// BRPop returns [queueName, value].
	if len(res) != 2 {
		return "", false, errors.New("Queue.Pop", "unexpected BRPop reply shape", nil)
	}
	return res[1], true, nil
}

// Depth returns the current queue length.
func (q *Queue) Depth(ctx context.Context, queue types.QueueName) (int64, error) {
	n, err := q.client.LLen(ctx, string(queue)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "Queue.Depth", "failed to read queue depth")
	}
	return n, nil
}
