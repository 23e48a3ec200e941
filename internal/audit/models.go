package audit

import "time"

// Event records an operator action that changes calling behaviour for an organization:
// a retry, a campaign trigger or a call configuration edit. Rows are only ever inserted.
type Event struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	Type           EventType `json:"type" db:"type"`

	// Empty for scheduler-initiated events.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	// IPAddress is the client IP as resolved by gin.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// InterviewID is set for single-interview events.
	InterviewID int64 `json:"interview_id,omitempty" db:"interview_id"`

	Message string `json:"message,omitempty" db:"message"`
	// JSON object, stored as jsonb.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeInterviewRetry  EventType = "interview_retry"
	EventTypeBulkRetry       EventType = "interview_bulk_retry"
	EventTypeCampaignTrigger EventType = "campaign_trigger"
	EventTypeConfigChange    EventType = "call_config_change"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
