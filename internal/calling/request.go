// Package calling places interview calls through the external calling engine.
package calling

import (
	"context"
	"time"

	"callpilot/internal/ats"
	"callpilot/internal/taskqueue"
)

// InterviewTypeGeneral is the only interview flavour the engine runs today.
const InterviewTypeGeneral = "general"

// CallRequest is the body of POST /initiate-call.
type CallRequest struct {
	ToPhoneNumber       string         `json:"to_phone_number"`
	FromPhoneNumber     string         `json:"from_phone_number"`
	OrganizationID      int64          `json:"organization_id"`
	ApplicationID       int64          `json:"application_id"`
	CandidateID         int64          `json:"candidate_id"`
	JobTitle            string         `json:"job_title"`
	JobID               int64          `json:"job_id"`
	JobDetails          ats.JobDetails `json:"job_details"`
	CandidateName       string         `json:"candidate_first_name"`
	InterviewType       string         `json:"interview_type"`
	PrimaryQuestions    []string       `json:"primary_questions"`
	EndOnNegativeAnswer bool           `json:"should_end_if_primary_question_failed"`
	WelcomeAudioURL     string         `json:"welcome_message_audio_url"`
	WelcomeText         string         `json:"welcome_text"`
	VoiceID             string         `json:"voice_id"`
	CandidateEmail      string         `json:"candidate_email"`
}

// Call is a queued dispatch: the engine request plus how to dispatch it.
type Call struct {
	Request CallRequest `json:"request"`
	// IsRetry skips the already-interviewed check.
	IsRetry bool `json:"is_retry"`
	// StatusID is the ATS status applied once the call is placed; zero means the
	// organization's status_when_call_is_placed.
	StatusID int64 `json:"status_id,omitempty"`
}

// Schedule queues call to be dispatched after delay.
func Schedule(ctx context.Context, q taskqueue.Queue, call Call, delay time.Duration) (taskqueue.Task, error) {
	if call.Request.InterviewType == "" {
		call.Request.InterviewType = InterviewTypeGeneral
	}
	if call.Request.PrimaryQuestions == nil {
		call.Request.PrimaryQuestions = []string{}
	}
	return q.Enqueue(ctx, taskqueue.KindInterviewCall, call, delay)
}
