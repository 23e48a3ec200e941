package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindInterviewCall     Kind = "interview.call"
	KindApplicationStatus Kind = "ats.application_status"
	KindCampaignBulk      Kind = "campaign.bulk"
	KindSMS               Kind = "sms.send"
)

// Task is one unit of delayed work. Payload is the JSON-encoded request the handler expects.
type Task struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	DueAt      time.Time       `json:"due_at"`
}

var (
	ErrNoHandler   = errors.New("taskqueue: no handler for kind")
	ErrInvalidKind = errors.New("taskqueue: kind is required")
	ErrQueueClosed = errors.New("taskqueue: queue closed")
)

// Queue accepts tasks to run no earlier than delay from now.
type Queue interface {
	Enqueue(ctx context.Context, kind Kind, payload any, delay time.Duration) (Task, error)
}

// Source hands out due tasks. A claimed task belongs to exactly one caller.
type Source interface {
	Claim(ctx context.Context, now time.Time) (Task, bool, error)
}

func newTask(id string, kind Kind, payload any, now time.Time, delay time.Duration) (Task, error) {
	if kind == "" {
		return Task{}, ErrInvalidKind
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	if delay < 0 {
		delay = 0
	}
	return Task{
		ID:         id,
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: now,
		DueAt:      now.Add(delay),
	}, nil
}

// Decode unmarshals the task payload into T.
func Decode[T any](t Task) (T, error) {
	var v T
	if err := json.Unmarshal(t.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", t.Kind, err)
	}
	return v, nil
}
