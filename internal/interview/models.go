package interview

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

type Type string

const (
	TypeAICall     Type = "AI_CALL"
	TypeAISMS      Type = "AI_SMS"
	TypeAIWhatsApp Type = "AI_WHATSAPP"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAICall, TypeAISMS, TypeAIWhatsApp:
		return true
	}
	return false
}

type ProgressStatus string

const (
	StatusInitiated  ProgressStatus = "INITIATED"
	StatusInProgress ProgressStatus = "IN_PROGRESS"
	StatusCompleted  ProgressStatus = "COMPLETED"
)

func (s ProgressStatus) Valid() bool {
	switch s {
	case StatusInitiated, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// AI decisions reported by the calling engine.
const (
	DecisionSuccessful        = "successful"
	DecisionUnsuccessful      = "unsuccessful"
	DecisionUserDisconnect    = "user_disconnect"
	DecisionNetworkDisconnect = "network_disconnect"
)

// DisconnectDecisions are the outcomes that make an interview retryable.
var DisconnectDecisions = []string{DecisionUserDisconnect, DecisionNetworkDisconnect}

func IsDisconnect(decision string) bool {
	return decision == DecisionUserDisconnect || decision == DecisionNetworkDisconnect
}

const (
	QuestionActive = "ACTIVE"
	QuestionHidden = "HIDDEN"
)

var (
	ErrNotFound       = errors.New("interview: not found")
	ErrConfigNotFound = errors.New("interview: call configuration not found")
	ErrConfigExists   = errors.New("interview: call configuration already exists")
	// ErrCallSIDTaken means the call SID already holds another organization's transcript.
	ErrCallSIDTaken = errors.New("interview: call sid belongs to another organization")
)

// ValidationError carries per-field messages back to the API caller.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Interview is the record of one interview attempt, written by the calling engine.
// Records are never hard-deleted.
type Interview struct {
	ID                  int64           `json:"id"`
	OrganizationID      int64           `json:"organization_id"`
	ApplicationID       *int64          `json:"application_id"`
	CandidateID         *int64          `json:"candidate_id"`
	CandidateName       string          `json:"candidate_name"`
	CandidateEmail      string          `json:"candidate_email"`
	CandidatePhone      string          `json:"candidate_phone"`
	JobID               *int64          `json:"job_id"`
	JobTitle            string          `json:"job_title"`
	JobDetails          json.RawMessage `json:"job_details,omitempty"`
	InterviewStatus     string          `json:"interview_status"`
	AIDecision          string          `json:"ai_decision"`
	StartedAt           *time.Time      `json:"started_at"`
	EndedAt             *time.Time      `json:"ended_at"`
	CallSID             string          `json:"call_sid"`
	CallDuration        string          `json:"call_duration"`
	CallStatus          string          `json:"call_status"`
	DisconnectionReason string          `json:"disconnection_reason"`
	FromNumber          string          `json:"from_number"`
	Type                Type            `json:"type"`
	Status              ProgressStatus  `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Conversation *Conversation `json:"interview_data,omitempty"`
}

// Conversation is the transcript of a call, keyed by the telephony call SID.
type Conversation struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	InterviewID    int64           `json:"interview_id"`
	CallSID        string          `json:"call_sid"`
	ApplicationID  int64           `json:"application_id"`
	CandidateID    int64           `json:"candidate_id"`
	CandidateName  string          `json:"candidate_name"`
	CandidateEmail string          `json:"candidate_email"`
	CandidatePhone string          `json:"candidate_phone"`
	JobID          int64           `json:"job_id"`
	Text           string          `json:"conversation_text"`
	Messages       json.RawMessage `json:"conversation_json"`
	MessageCount   int             `json:"message_count"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        time.Time       `json:"ended_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type PrimaryQuestion struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CallConfig is an organization's interview-calling policy for one ATS connection.
type CallConfig struct {
	ID                             int64             `json:"id"`
	OrganizationID                 int64             `json:"organization_id"`
	PlatformID                     int64             `json:"platform_id"`
	FromNumber                     string            `json:"from_number"`
	EndCallIfPrimaryAnswerNegative bool              `json:"end_call_if_primary_answer_negative"`
	ApplicationStatusForCalling    int64             `json:"application_status_for_calling"`
	JobAdStatusForCalling          string            `json:"jobad_status_for_calling"`
	CallingTimeAfterStatusUpdate   int               `json:"calling_time_after_status_update"`
	StatusForUnsuccessfulCall      int64             `json:"status_for_unsuccessful_call"`
	StatusForSuccessfulCall        int64             `json:"status_for_successful_call"`
	StatusWhenCallIsPlaced         int64             `json:"status_when_call_is_placed"`
	VoiceID                        string            `json:"voice_id"`
	SendDocumentUploadLink         bool              `json:"sent_document_upload_link"`
	DocumentUploadLink             string            `json:"document_upload_link"`
	Questions                      []PrimaryQuestion `json:"primary_questions"`
	CreatedAt                      time.Time         `json:"created_at"`
	UpdatedAt                      time.Time         `json:"updated_at"`
}

// QuestionTexts returns the primary questions in their configured order.
func (c CallConfig) QuestionTexts() []string {
	out := make([]string, 0, len(c.Questions))
	for _, q := range c.Questions {
		out = append(out, q.Question)
	}
	return out
}

// StatusForDecision maps a final AI decision to the ATS status the application should move to.
// ok is false when the decision does not move the application.
func (c CallConfig) StatusForDecision(decision string) (int64, bool) {
	var id int64
	switch decision {
	case DecisionSuccessful:
		id = c.StatusForSuccessfulCall
	case DecisionUnsuccessful:
		id = c.StatusForUnsuccessfulCall
	}
	return id, id > 0
}

// FlexString accepts either a JSON string or a JSON number. The calling engine
// reports durations both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// ListFilter narrows interview listings. Zero values mean "any".
type ListFilter struct {
	OrganizationID int64
	JobID          *int64
	AIDecisions    []string
	From, To       time.Time
	Limit          int
}
