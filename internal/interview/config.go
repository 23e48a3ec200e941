package interview

import (
	"context"
	"errors"
	"strings"

	"callpilot/internal/orgs"
)

// ConfigInput is the writable part of a CallConfig.
// On update a nil QuestionIDs keeps the current questions; an empty slice clears them.
type ConfigInput struct {
	PlatformID                     int64   `json:"platform_id"`
	FromNumber                     string  `json:"from_number"`
	EndCallIfPrimaryAnswerNegative bool    `json:"end_call_if_primary_answer_negative"`
	ApplicationStatusForCalling    int64   `json:"application_status_for_calling"`
	JobAdStatusForCalling          string  `json:"jobad_status_for_calling"`
	CallingTimeAfterStatusUpdate   int     `json:"calling_time_after_status_update"`
	StatusForUnsuccessfulCall      int64   `json:"status_for_unsuccessful_call"`
	StatusForSuccessfulCall        int64   `json:"status_for_successful_call"`
	StatusWhenCallIsPlaced         int64   `json:"status_when_call_is_placed"`
	VoiceID                        string  `json:"voice_id"`
	SendDocumentUploadLink         bool    `json:"sent_document_upload_link"`
	DocumentUploadLink             string  `json:"document_upload_link"`
	QuestionIDs                    []int64 `json:"primary_question_ids"`
}

func (s *Service) validateConfig(ctx context.Context, organizationID int64, in ConfigInput) error {
	fields := map[string]string{}
	required := "This field is required."

	if in.PlatformID <= 0 {
		fields["platform_id"] = required
	} else {
		p, err := s.dir.GetPlatform(ctx, in.PlatformID)
		switch {
		case errors.Is(err, orgs.ErrNotFound) || (err == nil && p.OrganizationID != organizationID):
			fields["platform_id"] = "Invalid platform ID"
		case err != nil:
			return err
		}
	}
	if strings.TrimSpace(in.FromNumber) == "" {
		fields["from_number"] = required
	}
	if in.ApplicationStatusForCalling <= 0 {
		fields["application_status_for_calling"] = required
	}
	if strings.TrimSpace(in.JobAdStatusForCalling) == "" {
		fields["jobad_status_for_calling"] = required
	}
	if in.CallingTimeAfterStatusUpdate < 0 {
		fields["calling_time_after_status_update"] = "Ensure this value is greater than or equal to 0."
	}
	if in.StatusForUnsuccessfulCall <= 0 {
		fields["status_for_unsuccessful_call"] = required
	}
	if in.StatusForSuccessfulCall <= 0 {
		fields["status_for_successful_call"] = required
	}
	if in.StatusWhenCallIsPlaced < 0 {
		fields["status_when_call_is_placed"] = "Ensure this value is greater than or equal to 0."
	}
	if in.SendDocumentUploadLink && strings.TrimSpace(in.DocumentUploadLink) == "" {
		fields["document_upload_link"] = "Required when sent_document_upload_link is set."
	}

	if len(in.QuestionIDs) > 0 {
		seen := map[int64]struct{}{}
		for _, id := range in.QuestionIDs {
			seen[id] = struct{}{}
		}
		found, err := s.repo.QuestionsByIDs(ctx, in.QuestionIDs)
		if err != nil {
			return err
		}
		if len(seen) != len(in.QuestionIDs) || len(found) != len(seen) {
			fields["primary_question_ids"] = "Some question IDs are invalid."
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (in ConfigInput) apply(c CallConfig) CallConfig {
	c.PlatformID = in.PlatformID
	c.FromNumber = strings.TrimSpace(in.FromNumber)
	c.EndCallIfPrimaryAnswerNegative = in.EndCallIfPrimaryAnswerNegative
	c.ApplicationStatusForCalling = in.ApplicationStatusForCalling
	c.JobAdStatusForCalling = strings.TrimSpace(in.JobAdStatusForCalling)
	c.CallingTimeAfterStatusUpdate = in.CallingTimeAfterStatusUpdate
	c.StatusForUnsuccessfulCall = in.StatusForUnsuccessfulCall
	c.StatusForSuccessfulCall = in.StatusForSuccessfulCall
	c.StatusWhenCallIsPlaced = in.StatusWhenCallIsPlaced
	c.VoiceID = strings.TrimSpace(in.VoiceID)
	c.SendDocumentUploadLink = in.SendDocumentUploadLink
	c.DocumentUploadLink = strings.TrimSpace(in.DocumentUploadLink)
	return c
}

// Config returns the organization's active call configuration or ErrConfigNotFound.
func (s *Service) Config(ctx context.Context, organizationID int64) (CallConfig, error) {
	return s.repo.GetConfig(ctx, organizationID)
}

// CreateConfig stores the organization's single call configuration.
func (s *Service) CreateConfig(ctx context.Context, organizationID int64, in ConfigInput) (CallConfig, error) {
	if err := s.validateConfig(ctx, organizationID, in); err != nil {
		return CallConfig{}, err
	}
	ids := in.QuestionIDs
	if ids == nil {
		ids = []int64{}
	}
	c, err := s.repo.CreateConfig(ctx, in.apply(CallConfig{OrganizationID: organizationID}), ids)
	if errors.Is(err, ErrConfigExists) {
		return CallConfig{}, invalid("details", "Call configuration already exists.")
	}
	return c, err
}

// UpdateConfig replaces the organization's call configuration fields.
func (s *Service) UpdateConfig(ctx context.Context, organizationID int64, in ConfigInput) (CallConfig, error) {
	cur, err := s.repo.GetConfig(ctx, organizationID)
	if err != nil {
		return CallConfig{}, err
	}
	if err := s.validateConfig(ctx, organizationID, in); err != nil {
		return CallConfig{}, err
	}
	return s.repo.UpdateConfig(ctx, in.apply(cur), in.QuestionIDs)
}

// DeleteConfig removes the configuration and its question links. Questions themselves are shared and survive.
func (s *Service) DeleteConfig(ctx context.Context, organizationID int64) error {
	return s.repo.DeleteConfig(ctx, organizationID)
}

// ActiveQuestions lists the primary questions organizations may attach to a configuration.
func (s *Service) ActiveQuestions(ctx context.Context) ([]PrimaryQuestion, error) {
	return s.repo.ListQuestions(ctx, QuestionActive)
}
