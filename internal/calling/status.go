package calling

import (
	"context"
	"errors"

	"callpilot/internal/interview"
	"callpilot/internal/taskqueue"
	"callpilot/internal/telephony"
	"callpilot/pkg/logger"
)

// StatusUpdate asks for an ATS application to be moved to StatusID.
// A zero StatusID means the organization's status_when_call_is_placed.
type StatusUpdate struct {
	OrganizationID int64 `json:"organization_id"`
	ApplicationID  int64 `json:"application_id"`
	StatusID       int64 `json:"status_id,omitempty"`
}

// ConfigSource returns an organization's call configuration.
type ConfigSource interface {
	Config(ctx context.Context, organizationID int64) (interview.CallConfig, error)
}

type StatusWriter interface {
	UpdateApplicationStatus(ctx context.Context, applicationID, statusID int64) bool
}

// OpenFunc opens an ATS session for a platform connection.
type OpenFunc func(ctx context.Context, platformID int64) (StatusWriter, error)

// StatusSyncer applies queued application status updates.
type StatusSyncer struct {
	configs ConfigSource
	open    OpenFunc
}

func NewStatusSyncer(configs ConfigSource, open OpenFunc) *StatusSyncer {
	return &StatusSyncer{configs: configs, open: open}
}

// Apply performs the update. Missing configuration or status is logged and skipped;
// ATS failures are logged by the session and not retried.
func (s *StatusSyncer) Apply(ctx context.Context, u StatusUpdate) error {
	log := logger.From(ctx).With("organization_id", u.OrganizationID, "application_id", u.ApplicationID)
	cfg, err := s.configs.Config(ctx, u.OrganizationID)
	if errors.Is(err, interview.ErrConfigNotFound) {
		log.Warn("no call configuration, status update skipped")
		return nil
	}
	if err != nil {
		return err
	}
	statusID := u.StatusID
	if statusID == 0 {
		statusID = cfg.StatusWhenCallIsPlaced
	}
	if statusID == 0 {
		log.Info("no status_when_call_is_placed configured")
		return nil
	}
	sess, err := s.open(ctx, cfg.PlatformID)
	if err != nil {
		return err
	}
	sess.UpdateApplicationStatus(ctx, u.ApplicationID, statusID)
	return nil
}

// HandleTask is the taskqueue handler for taskqueue.KindApplicationStatus.
func (s *StatusSyncer) HandleTask(ctx context.Context, t taskqueue.Task) error {
	u, err := taskqueue.Decode[StatusUpdate](t)
	if err != nil {
		return err
	}
	return s.Apply(ctx, u)
}

// Followups queues the work that follows a recorded interview.
type Followups struct {
	queue taskqueue.Queue
}

func NewFollowups(q taskqueue.Queue) *Followups {
	return &Followups{queue: q}
}

func (f *Followups) ApplicationStatus(ctx context.Context, organizationID, applicationID, statusID int64) error {
	_, err := f.queue.Enqueue(ctx, taskqueue.KindApplicationStatus, StatusUpdate{
		OrganizationID: organizationID,
		ApplicationID:  applicationID,
		StatusID:       statusID,
	}, 0)
	return err
}

func (f *Followups) SMS(ctx context.Context, organizationID int64, to, from, body string) error {
	_, err := f.queue.Enqueue(ctx, taskqueue.KindSMS, telephony.Message{
		OrganizationID: organizationID,
		To:             to,
		From:           from,
		Body:           body,
	}, 0)
	return err
}
