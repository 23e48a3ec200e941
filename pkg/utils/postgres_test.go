package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 20 || c.MaxIdleConns != 20 || c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	c = PostgresPoolConfig{MaxOpenConns: 3, MaxIdleConns: 10}.withDefaults()
	if c.MaxOpenConns != 3 || c.MaxIdleConns != 3 {
		t.Fatalf("expected idle clamped to open, got %+v", c)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert call config: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(dup) {
		t.Fatalf("expected wrapped 23505 to match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) || IsUniqueViolation(errors.New("boom")) {
		t.Fatalf("unexpected match")
	}
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("expected 23503 to match")
	}
}
