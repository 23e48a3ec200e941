package telephony

import (
	"context"
	"errors"
	"strings"
)

// SMSProvider defines the provider-agnostic interface used by business logic.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Every message carries the organization it is sent for.
type SMSProvider interface {
	Name() string
	SendSMS(ctx context.Context, msg Message) (SendResult, error)
}

// Message is an outbound text message. It is also the payload of the sms.send task.
type Message struct {
	OrganizationID int64  `json:"organization_id"`
	To             string `json:"to"`
	From           string `json:"from"`
	Body           string `json:"body"`
}

type SendResult struct {
	// ProviderMessageID is the provider's unique identifier for this message.
	ProviderMessageID string `json:"provider_message_id"`
	Status            string `json:"status"`
}

var ErrInvalidMessage = errors.New("telephony: message requires organization, to, from and body")

func (m Message) Validate() error {
	if m.OrganizationID <= 0 || strings.TrimSpace(m.To) == "" || strings.TrimSpace(m.From) == "" || m.Body == "" {
		return ErrInvalidMessage
	}
	return nil
}
