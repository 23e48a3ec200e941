package telephony

import (
	"context"

	"callpilot/internal/taskqueue"
	"callpilot/pkg/logger"
)

// Sender delivers queued sms.send tasks. Failed sends are not retried.
type Sender struct {
	Provider SMSProvider
}

func (s Sender) HandleTask(ctx context.Context, t taskqueue.Task) error {
	msg, err := taskqueue.Decode[Message](t)
	if err != nil {
		return err
	}
	log := logger.From(ctx).With("organization_id", msg.OrganizationID, "provider", s.Provider.Name())
	res, err := s.Provider.SendSMS(ctx, msg)
	if err != nil {
		log.Error("sms send failed", "to", msg.To, "err", err)
		return err
	}
	log.Info("sms sent", "to", msg.To, "provider_message_id", res.ProviderMessageID, "status", res.Status)
	return nil
}
