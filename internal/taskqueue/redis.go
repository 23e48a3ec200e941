package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript pops the earliest task whose score (due time, unix ms) is <= now.
// ZRANGEBYSCORE + ZREM inside one script so two workers never claim the same member.
var claimScript = redis.NewScript(`
-- KEYS[1] = zset key
-- ARGV[1] = now unix ms
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #items == 0 then
  return false
end
redis.call('ZREM', KEYS[1], items[1])
return items[1]
`)

// RedisQueue is a delayed queue stored in a single sorted set scored by due time.
// Tasks are never cancelled once scheduled.
type RedisQueue struct {
	rdb   redis.Cmdable
	key   string
	clock func() time.Time
}

func NewRedisQueue(rdb redis.Cmdable, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key, clock: time.Now}
}

func (q *RedisQueue) Enqueue(ctx context.Context, kind Kind, payload any, delay time.Duration) (Task, error) {
	if q == nil || q.rdb == nil {
		return Task{}, ErrQueueClosed
	}
	t, err := newTask(uuid.NewString(), kind, payload, q.clock().UTC(), delay)
	if err != nil {
		return Task{}, err
	}
	member, err := json.Marshal(t)
	if err != nil {
		return Task{}, err
	}
	if err := q.rdb.ZAdd(ctx, q.key, redis.Z{Score: float64(t.DueAt.UnixMilli()), Member: member}).Err(); err != nil {
		return Task{}, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return t, nil
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time) (Task, bool, error) {
	if q == nil || q.rdb == nil {
		return Task{}, false, ErrQueueClosed
	}
	res, err := claimScript.Run(ctx, q.rdb, []string{q.key}, strconv.FormatInt(now.UnixMilli(), 10)).Text()
	if errors.Is(err, redis.Nil) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, err
	}
	var t Task
	if err := json.Unmarshal([]byte(res), &t); err != nil {
		return Task{}, false, fmt.Errorf("corrupt task member: %w", err)
	}
	return t, true, nil
}

// Pending reports how many tasks are waiting, due or not.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}
