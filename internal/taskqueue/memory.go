package taskqueue

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue and Source for tests and single-process runs.
type MemoryQueue struct {
	mu     sync.Mutex
	nextID int
	tasks  []Task
	// Enqueued keeps every task ever accepted, in order, including claimed ones.
	Enqueued []Task
	// FailWith makes Enqueue return this error.
	FailWith error

	clock func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{clock: time.Now}
}

// WithClock pins the queue's notion of now.
func (q *MemoryQueue) WithClock(clock func() time.Time) *MemoryQueue {
	q.clock = clock
	return q
}

func (q *MemoryQueue) Enqueue(_ context.Context, kind Kind, payload any, delay time.Duration) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailWith != nil {
		return Task{}, q.FailWith
	}
	q.nextID++
	t, err := newTask("mem-"+strconv.Itoa(q.nextID), kind, payload, q.clock().UTC(), delay)
	if err != nil {
		return Task{}, err
	}
	q.tasks = append(q.tasks, t)
	q.Enqueued = append(q.Enqueued, t)
	return t, nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time) (Task, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sort.SliceStable(q.tasks, func(i, j int) bool { return q.tasks[i].DueAt.Before(q.tasks[j].DueAt) })
	if len(q.tasks) == 0 || q.tasks[0].DueAt.After(now) {
		return Task{}, false, nil
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true, nil
}

// OfKind returns accepted tasks of kind in enqueue order.
func (q *MemoryQueue) OfKind(kind Kind) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Task
	for _, t := range q.Enqueued {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Delay is the scheduled offset of t from its enqueue time.
func Delay(t Task) time.Duration {
	return t.DueAt.Sub(t.EnqueuedAt)
}
