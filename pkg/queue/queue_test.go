package queue

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// fakeRedis implements redisCommander backed by plain in-memory lists, just
// enough surface to exercise Push/Pop/Depth without a live Redis server.
type fakeRedis struct {
	lists map[string][]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: make(map[string][]string)}
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append([]string{v.(string)}, f.lists[key]...)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeRedis) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	for _, key := range keys {
		l := f.lists[key]
		if len(l) == 0 {
			continue
		}
		v := l[len(l)-1]
		f.lists[key] = l[:len(l)-1]
		cmd.SetVal([]string{key, v})
		return cmd
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

func (f *fakeRedis) LLen(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func TestQueuePushPopFIFO(t *testing.T) {
	q := &Queue{client: newFakeRedis()}
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, types.QueueChunk, "doc-1"))
	require.NoError(t, q.Push(ctx, types.QueueChunk, "doc-2"))

	payload, ok, err := q.Pop(ctx, types.QueueChunk, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-1", payload)

	payload, ok, err = q.Pop(ctx, types.QueueChunk, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-2", payload)
}

func TestQueuePopEmptyReturnsFalseNoError(t *testing.T) {
	q := &Queue{client: newFakeRedis()}
	ctx := context.Background()

	_, ok, err := q.Pop(ctx, types.QueueEmbed, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueDepth(t *testing.T) {
	q := &Queue{client: newFakeRedis()}
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, types.QueueResolve, "a"))
	require.NoError(t, q.Push(ctx, types.QueueResolve, "b"))

	n, err := q.Depth(ctx, types.QueueResolve)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
