package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"callpilot/internal/orgs"
	"callpilot/pkg/logger"
)

// Directory resolves organizations and their ATS connections.
type Directory interface {
	GetOrganization(ctx context.Context, id int64) (orgs.Organization, error)
	GetPlatform(ctx context.Context, id int64) (orgs.Platform, error)
}

// Followups schedules the asynchronous work triggered by a recorded interview.
type Followups interface {
	ApplicationStatus(ctx context.Context, organizationID, applicationID, statusID int64) error
	SMS(ctx context.Context, organizationID int64, to, from, body string) error
}

// Service owns interview records, transcripts and call configuration.
type Service struct {
	repo      Repository
	dir       Directory
	followups Followups
	clock     func() time.Time
}

func NewService(repo Repository, dir Directory, followups Followups) *Service {
	return &Service{repo: repo, dir: dir, followups: followups, clock: time.Now}
}

// CreateInput is the interview result posted by the calling engine.
type CreateInput struct {
	OrganizationID      int64           `json:"organization_id"`
	ApplicationID       *int64          `json:"application_id"`
	CandidateID         *int64          `json:"candidate_id"`
	CandidateName       string          `json:"candidate_name"`
	CandidateEmail      string          `json:"candidate_email"`
	CandidatePhone      string          `json:"candidate_phone"`
	JobID               *int64          `json:"job_id"`
	JobTitle            string          `json:"job_title"`
	JobDetails          json.RawMessage `json:"job_details"`
	InterviewStatus     string          `json:"interview_status"`
	AIDecision          string          `json:"ai_decision"`
	StartedAt           *time.Time      `json:"started_at"`
	EndedAt             *time.Time      `json:"ended_at"`
	CallSID             string          `json:"call_sid"`
	CallDuration        FlexString      `json:"call_duration"`
	CallStatus          string          `json:"call_status"`
	DisconnectionReason string          `json:"disconnection_reason"`
	FromNumber          string          `json:"from_number"`
	Type                Type            `json:"type"`
	Status              ProgressStatus  `json:"status"`
}

// DocumentLinkMessage is the SMS sent after a successful interview when the organization collects documents.
func DocumentLinkMessage(link string) string {
	return "Please Upload your updated documents in this link: " + link
}

// Create records an interview result and schedules its ATS status update and document-link SMS.
// Scheduling failures are logged; the interview stays recorded.
func (s *Service) Create(ctx context.Context, in CreateInput) (Interview, error) {
	if in.OrganizationID <= 0 {
		return Interview{}, invalid("organization_id", "This field is required.")
	}
	if in.Type == "" {
		in.Type = TypeAICall
	}
	if !in.Type.Valid() {
		return Interview{}, invalid("type", fmt.Sprintf("%q is not a valid choice.", in.Type))
	}
	if in.Status == "" {
		in.Status = StatusCompleted
	}
	if !in.Status.Valid() {
		return Interview{}, invalid("status", fmt.Sprintf("%q is not a valid choice.", in.Status))
	}
	if len(in.JobDetails) > 0 && !json.Valid(in.JobDetails) {
		return Interview{}, invalid("job_details", "Value must be valid JSON.")
	}

	if _, err := s.dir.GetOrganization(ctx, in.OrganizationID); err != nil {
		if errors.Is(err, orgs.ErrNotFound) {
			return Interview{}, invalid("organization_id", "No organization found with this given ID.")
		}
		return Interview{}, err
	}
	cfg, err := s.repo.GetConfig(ctx, in.OrganizationID)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return Interview{}, invalid("details", "No config found for this organization.")
		}
		return Interview{}, err
	}

	iv, err := s.repo.CreateInterview(ctx, Interview{
		OrganizationID:      in.OrganizationID,
		ApplicationID:       in.ApplicationID,
		CandidateID:         in.CandidateID,
		CandidateName:       in.CandidateName,
		CandidateEmail:      in.CandidateEmail,
		CandidatePhone:      in.CandidatePhone,
		JobID:               in.JobID,
		JobTitle:            in.JobTitle,
		JobDetails:          in.JobDetails,
		InterviewStatus:     in.InterviewStatus,
		AIDecision:          in.AIDecision,
		StartedAt:           in.StartedAt,
		EndedAt:             in.EndedAt,
		CallSID:             in.CallSID,
		CallDuration:        string(in.CallDuration),
		CallStatus:          in.CallStatus,
		DisconnectionReason: in.DisconnectionReason,
		FromNumber:          in.FromNumber,
		Type:                in.Type,
		Status:              in.Status,
	})
	if err != nil {
		return Interview{}, err
	}

	s.scheduleFollowups(ctx, cfg, iv)
	return iv, nil
}

func (s *Service) scheduleFollowups(ctx context.Context, cfg CallConfig, iv Interview) {
	if iv.ApplicationID == nil || s.followups == nil {
		return
	}
	log := logger.From(ctx).With("organization_id", iv.OrganizationID, "application_id", *iv.ApplicationID, "ai_decision", iv.AIDecision)

	if statusID, ok := cfg.StatusForDecision(iv.AIDecision); ok {
		if err := s.followups.ApplicationStatus(ctx, iv.OrganizationID, *iv.ApplicationID, statusID); err != nil {
			log.Error("schedule application status failed", "status_id", statusID, "err", err)
		}
	}

	if iv.AIDecision != DecisionSuccessful || !cfg.SendDocumentUploadLink {
		return
	}
	if strings.TrimSpace(iv.CandidatePhone) == "" || cfg.DocumentUploadLink == "" {
		log.Warn("document link sms skipped", "reason", "missing phone or link")
		return
	}
	if err := s.followups.SMS(ctx, iv.OrganizationID, iv.CandidatePhone, cfg.FromNumber, DocumentLinkMessage(cfg.DocumentUploadLink)); err != nil {
		log.Error("schedule document link sms failed", "err", err)
	}
}

// List returns the organization's interviews, newest first, each with its transcript when one exists.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Interview, error) {
	if f.OrganizationID <= 0 {
		return nil, invalid("organization_id", "This field is required.")
	}
	ivs, err := s.repo.ListInterviews(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(ivs) == 0 {
		return []Interview{}, nil
	}
	ids := make([]int64, 0, len(ivs))
	for _, iv := range ivs {
		ids = append(ids, iv.ID)
	}
	convs, err := s.repo.ConversationsByInterview(ctx, f.OrganizationID, ids)
	if err != nil {
		return nil, err
	}
	for i := range ivs {
		if c, ok := convs[ivs[i].ID]; ok {
			ivs[i].Conversation = &c
		}
	}
	return ivs, nil
}

// Get returns one interview scoped to organizationID.
func (s *Service) Get(ctx context.Context, organizationID, id int64) (Interview, error) {
	return s.repo.GetInterview(ctx, organizationID, id)
}

// Disconnected lists interviews whose AI decision marks them as retryable.
func (s *Service) Disconnected(ctx context.Context, organizationID int64, jobID *int64, limit int) ([]Interview, error) {
	return s.repo.ListInterviews(ctx, ListFilter{
		OrganizationID: organizationID,
		JobID:          jobID,
		AIDecisions:    DisconnectDecisions,
		Limit:          limit,
	})
}

// AlreadyInterviewed reports whether this candidate's application already has an interview record.
func (s *Service) AlreadyInterviewed(ctx context.Context, organizationID, candidateID, applicationID int64) (bool, error) {
	return s.repo.InterviewExists(ctx, organizationID, candidateID, applicationID)
}

// ConversationInput is the transcript payload posted by the calling engine.
type ConversationInput struct {
	CallSID        string          `json:"call_sid"`
	ApplicationID  int64           `json:"application_id"`
	InterviewID    int64           `json:"interview_id"`
	OrganizationID int64           `json:"organization_id"`
	CandidateID    int64           `json:"candidate_id"`
	JobID          int64           `json:"job_id"`
	Text           string          `json:"conversation_text"`
	Messages       json.RawMessage `json:"conversation_json"`
	MessageCount   int             `json:"message_count"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        time.Time       `json:"ended_at"`
	CandidateName  string          `json:"candidate_name"`
	CandidateEmail string          `json:"candidate_email"`
	CandidatePhone string          `json:"candidate_phone"`
}

func (in ConversationInput) validate() *ValidationError {
	fields := map[string]string{}
	required := "This field is required."
	if strings.TrimSpace(in.CallSID) == "" {
		fields["call_sid"] = required
	} else if len(in.CallSID) > 100 {
		fields["call_sid"] = "Ensure this field has no more than 100 characters."
	}
	if in.ApplicationID <= 0 {
		fields["application_id"] = required
	}
	if in.InterviewID <= 0 {
		fields["interview_id"] = required
	}
	if in.OrganizationID <= 0 {
		fields["organization_id"] = required
	}
	if in.CandidateID <= 0 {
		fields["candidate_id"] = required
	}
	if in.JobID <= 0 {
		fields["job_id"] = required
	}
	if strings.TrimSpace(in.Text) == "" {
		fields["conversation_text"] = required
	}
	if len(in.Messages) == 0 || !json.Valid(in.Messages) {
		fields["conversation_json"] = "Value must be valid JSON."
	}
	if in.MessageCount < 0 {
		fields["message_count"] = "Ensure this value is greater than or equal to 0."
	}
	if in.StartedAt.IsZero() {
		fields["started_at"] = required
	}
	if in.EndedAt.IsZero() {
		fields["ended_at"] = required
	}
	if in.CandidateName == "" {
		fields["candidate_name"] = required
	}
	if in.CandidateEmail == "" {
		fields["candidate_email"] = required
	}
	if in.CandidatePhone == "" {
		fields["candidate_phone"] = required
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// SaveConversation upserts the transcript keyed by call SID. Later saves overwrite earlier ones.
func (s *Service) SaveConversation(ctx context.Context, in ConversationInput) (Conversation, bool, error) {
	if verr := in.validate(); verr != nil {
		return Conversation{}, false, verr
	}
	if _, err := s.repo.GetInterview(ctx, in.OrganizationID, in.InterviewID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Conversation{}, false, invalid("interview_id", "No interview found for this organization.")
		}
		return Conversation{}, false, err
	}
	conv, created, err := s.repo.UpsertConversation(ctx, Conversation{
		OrganizationID: in.OrganizationID,
		InterviewID:    in.InterviewID,
		CallSID:        in.CallSID,
		ApplicationID:  in.ApplicationID,
		CandidateID:    in.CandidateID,
		CandidateName:  in.CandidateName,
		CandidateEmail: in.CandidateEmail,
		CandidatePhone: in.CandidatePhone,
		JobID:          in.JobID,
		Text:           in.Text,
		Messages:       in.Messages,
		MessageCount:   in.MessageCount,
		StartedAt:      in.StartedAt,
		EndedAt:        in.EndedAt,
	})
	if errors.Is(err, ErrCallSIDTaken) {
		return Conversation{}, false, invalid("call_sid", "This call is recorded for another organization.")
	}
	return conv, created, err
}

// Conversation returns a transcript visible to organizationID.
func (s *Service) Conversation(ctx context.Context, organizationID int64, callSID string) (Conversation, error) {
	return s.repo.GetConversation(ctx, organizationID, callSID)
}
