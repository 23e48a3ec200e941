package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service writes the operator audit trail. HTTP handlers log a failed write and carry on;
// no route reads the trail back.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID <= 0 || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.Metadata != "" && !json.Valid([]byte(e.Metadata)) {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) log(ctx context.Context, organizationID int64, typ EventType, a Actor, interviewID int64, message string, details any) error {
	var metadata string
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		metadata = string(b)
	}
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           typ,
		ActorUserID:    a.UserID,
		ActorRole:      a.Role,
		IPAddress:      a.IP,
		InterviewID:    interviewID,
		Message:        message,
		Metadata:       metadata,
	})
}

// LogRetry records a user-triggered retry of one interview.
func (s *Service) LogRetry(ctx context.Context, organizationID int64, a Actor, interviewID int64) error {
	return s.log(ctx, organizationID, EventTypeInterviewRetry, a, interviewID, "interview call retried", nil)
}

// LogBulkRetry records a bulk retry with its outcome.
func (s *Service) LogBulkRetry(ctx context.Context, organizationID int64, a Actor, details any) error {
	return s.log(ctx, organizationID, EventTypeBulkRetry, a, 0, "disconnected interviews retried", details)
}

// LogCampaignTrigger records a manual campaign run.
func (s *Service) LogCampaignTrigger(ctx context.Context, organizationID int64, a Actor) error {
	return s.log(ctx, organizationID, EventTypeCampaignTrigger, a, 0, "campaign run requested", nil)
}

// LogConfigChange records a create, update or delete of the call configuration.
func (s *Service) LogConfigChange(ctx context.Context, organizationID int64, a Actor, action string) error {
	return s.log(ctx, organizationID, EventTypeConfigChange, a, 0, "call configuration "+action, nil)
}
