package campaign

import (
	"context"
	"log/slog"
	"time"
)

// Locker grants a lease to one scheduler process per tick.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Scheduler runs InitiateAll every Interval. With a Locker, only one process fires per interval.
type Scheduler struct {
	orch     *Orchestrator
	locker   Locker
	log      *slog.Logger
	Interval time.Duration
}

func NewScheduler(orch *Orchestrator, locker Locker, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{orch: orch, locker: locker, log: log, Interval: 5 * time.Minute}
}

// Run blocks until ctx is cancelled. The first tick fires immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.Tick(ctx, interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Tick runs one scheduling round and reports whether this process ran it.
// The lease is left to expire so a peer ticking moments later stays idle.
func (s *Scheduler) Tick(ctx context.Context, interval time.Duration) bool {
	if s.locker != nil {
		_, ok, err := s.locker.Acquire(ctx, "campaign:initiate_all", interval*9/10)
		if err != nil {
			s.log.Error("scheduler lock failed", "err", err)
			return false
		}
		if !ok {
			s.log.Debug("scheduler tick held by another process")
			return false
		}
	}
	n, err := s.orch.InitiateAll(ctx)
	if err != nil {
		s.log.Error("initiate all interviews failed", "err", err)
		return true
	}
	s.log.Info("initiated bulk interview calls", "organizations", n)
	return true
}
