package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 20 || c.Timeout != 3*time.Second || c.MaxConnAge != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	o := c.options()
	if o.ReadTimeout != c.Timeout || o.PoolTimeout != 4*time.Second {
		t.Fatalf("unexpected options: %+v", o)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestLocker_RejectsInvalidArgs(t *testing.T) {
	var l *Locker
	if _, _, err := l.Acquire(context.Background(), "k", time.Second); !errors.Is(err, errLockArgs) {
		t.Fatalf("expected errLockArgs for nil locker, got %v", err)
	}
	l = NewLocker(nil, "p:")
	if _, _, err := l.Acquire(context.Background(), "", time.Second); !errors.Is(err, errLockArgs) {
		t.Fatalf("expected errLockArgs for empty key, got %v", err)
	}
}
