package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callpilot/internal/metrics"
	"callpilot/pkg/logger"
)

// Handler processes one task. Returned errors are logged; tasks are not retried.
type Handler func(ctx context.Context, t Task) error

// Worker polls a Source and runs handlers on a fixed pool of goroutines.
type Worker struct {
	src      Source
	handlers map[Kind]Handler
	log      *slog.Logger

	Concurrency  int
	PollInterval time.Duration
	TaskTimeout  time.Duration

	clock func() time.Time
}

func NewWorker(src Source, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		src:          src,
		handlers:     map[Kind]Handler{},
		log:          log,
		Concurrency:  4,
		PollInterval: time.Second,
		TaskTimeout:  10 * time.Minute,
		clock:        time.Now,
	}
}

// Handle registers h for kind, replacing any earlier registration.
func (w *Worker) Handle(kind Kind, h Handler) {
	w.handlers[kind] = h
}

// Run blocks until ctx is cancelled and all in-flight tasks have finished.
func (w *Worker) Run(ctx context.Context) error {
	n := w.Concurrency
	if n <= 0 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) loop(ctx context.Context) {
	poll := w.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	for {
		if ctx.Err() != nil {
			return
		}
		t, ok, err := w.src.Claim(ctx, w.clock())
		if err != nil && ctx.Err() == nil {
			w.log.Error("claim task failed", "err", err)
		}
		if ok {
			_ = w.Process(ctx, t)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(poll):
		}
	}
}

// Drain processes every task already due and returns how many ran. Used by one-shot commands and tests.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		t, ok, err := w.src.Claim(ctx, w.clock())
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		_ = w.Process(ctx, t)
		n++
	}
}

// Process runs a single task under its own timeout.
func (w *Worker) Process(ctx context.Context, t Task) (err error) {
	log := w.log.With("task_id", t.ID, "kind", string(t.Kind))
	h, ok := w.handlers[t.Kind]
	if !ok {
		log.Error("no handler registered")
		metrics.Tasks.WithLabelValues(string(t.Kind), "unhandled").Inc()
		return ErrNoHandler
	}

	timeout := w.TaskTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	tctx, cancel := context.WithTimeout(logger.With(ctx, log), timeout)
	defer cancel()

	start := w.clock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		metrics.TaskDuration.WithLabelValues(string(t.Kind)).Observe(time.Since(start).Seconds())
		switch {
		case err == nil:
			metrics.Tasks.WithLabelValues(string(t.Kind), "ok").Inc()
			log.Debug("task done")
		case errors.Is(err, context.DeadlineExceeded):
			metrics.Tasks.WithLabelValues(string(t.Kind), "timeout").Inc()
			log.Error("task timed out", "timeout", timeout.String(), "err", err)
		default:
			metrics.Tasks.WithLabelValues(string(t.Kind), "error").Inc()
			log.Error("task failed", "err", err)
		}
	}()
	return h(tctx, t)
}
