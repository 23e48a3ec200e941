// Package retry re-dials candidates whose interview call was cut off.
package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"callpilot/internal/ats"
	"callpilot/internal/calling"
	"callpilot/internal/greeting"
	"callpilot/internal/interview"
	"callpilot/internal/metrics"
	"callpilot/internal/orgs"
	"callpilot/internal/phone"
	"callpilot/internal/taskqueue"
	"callpilot/pkg/logger"
)

const (
	DefaultLimit = 10
	// MaxLimit caps a bulk retry; each item renders a greeting before the request returns.
	MaxLimit       = 100
	DefaultStagger = 120 * time.Second
)

var (
	ErrInterviewNotFound     = errors.New("retry: interview not found")
	ErrConfigurationNotFound = errors.New("retry: call configuration not found")
	ErrNoPhone               = errors.New("retry: candidate has no phone number")
	ErrLimitTooLarge         = fmt.Errorf("retry: limit above %d", MaxLimit)
)

// NotRetryableError means the interview did not end in a disconnect.
type NotRetryableError struct {
	AIDecision string
}

func (e *NotRetryableError) Error() string {
	return fmt.Sprintf("retry: interview ended with %q, not a disconnect", e.AIDecision)
}

type Interviews interface {
	Get(ctx context.Context, organizationID, id int64) (interview.Interview, error)
	Config(ctx context.Context, organizationID int64) (interview.CallConfig, error)
	Disconnected(ctx context.Context, organizationID int64, jobID *int64, limit int) ([]interview.Interview, error)
}

type Directory interface {
	GetOrganization(ctx context.Context, id int64) (orgs.Organization, error)
}

type Service struct {
	interviews Interviews
	dir        Directory
	speaker    greeting.Speaker
	queue      taskqueue.Queue
	policy     phone.Policy

	Stagger time.Duration
}

func NewService(interviews Interviews, dir Directory, speaker greeting.Speaker, queue taskqueue.Queue, policy phone.Policy) *Service {
	if policy == nil {
		policy = phone.UK
	}
	return &Service{
		interviews: interviews,
		dir:        dir,
		speaker:    speaker,
		queue:      queue,
		policy:     policy,
		Stagger:    DefaultStagger,
	}
}

type SingleResult struct {
	Message        string `json:"message"`
	CandidateName  string `json:"candidate_name"`
	CandidatePhone string `json:"candidate_phone"`
	JobTitle       string `json:"job_title"`
}

type FailedRetry struct {
	CandidateName string `json:"candidate_name"`
	Error         string `json:"error"`
}

type BulkResult struct {
	Message           string        `json:"message"`
	RetriedCount      int           `json:"retried_count"`
	TotalDisconnected int           `json:"total_disconnected"`
	FailedRetries     []FailedRetry `json:"failed_retries,omitempty"`
}

// RetrySingle re-dials one disconnected interview immediately.
func (s *Service) RetrySingle(ctx context.Context, organizationID, interviewID int64) (SingleResult, error) {
	iv, err := s.interviews.Get(ctx, organizationID, interviewID)
	if errors.Is(err, interview.ErrNotFound) {
		return SingleResult{}, ErrInterviewNotFound
	}
	if err != nil {
		return SingleResult{}, err
	}
	if !interview.IsDisconnect(iv.AIDecision) {
		metrics.Retries.WithLabelValues("single", "rejected").Inc()
		return SingleResult{}, &NotRetryableError{AIDecision: iv.AIDecision}
	}
	cfg, err := s.config(ctx, organizationID)
	if err != nil {
		return SingleResult{}, err
	}
	org, err := s.dir.GetOrganization(ctx, organizationID)
	if err != nil {
		return SingleResult{}, err
	}

	to, err := s.schedule(ctx, org, cfg, iv, 0)
	if err != nil {
		metrics.Retries.WithLabelValues("single", "error").Inc()
		return SingleResult{}, err
	}
	metrics.Retries.WithLabelValues("single", "ok").Inc()
	return SingleResult{
		Message:        "Call retry initiated successfully",
		CandidateName:  iv.CandidateName,
		CandidatePhone: to,
		JobTitle:       iv.JobTitle,
	}, nil
}

// RetryBulk re-dials up to limit disconnected interviews, optionally for one job.
// The i-th interview is delayed i*Stagger; per-interview failures are collected, never fatal.
func (s *Service) RetryBulk(ctx context.Context, organizationID int64, jobID *int64, limit int) (BulkResult, error) {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		return BulkResult{}, ErrLimitTooLarge
	}
	cfg, err := s.config(ctx, organizationID)
	if err != nil {
		return BulkResult{}, err
	}
	ivs, err := s.interviews.Disconnected(ctx, organizationID, jobID, limit)
	if err != nil {
		return BulkResult{}, err
	}
	if len(ivs) == 0 {
		return BulkResult{Message: "No disconnected candidates found"}, nil
	}
	org, err := s.dir.GetOrganization(ctx, organizationID)
	if err != nil {
		return BulkResult{}, err
	}

	res := BulkResult{TotalDisconnected: len(ivs)}
	for i, iv := range ivs {
		if _, err := s.schedule(ctx, org, cfg, iv, time.Duration(i)*s.Stagger); err != nil {
			metrics.Retries.WithLabelValues("bulk", "error").Inc()
			res.FailedRetries = append(res.FailedRetries, FailedRetry{CandidateName: iv.CandidateName, Error: err.Error()})
			continue
		}
		metrics.Retries.WithLabelValues("bulk", "ok").Inc()
		res.RetriedCount++
	}
	res.Message = fmt.Sprintf("Retry initiated for %d disconnected candidates", res.RetriedCount)
	return res, nil
}

func (s *Service) config(ctx context.Context, organizationID int64) (interview.CallConfig, error) {
	cfg, err := s.interviews.Config(ctx, organizationID)
	if errors.Is(err, interview.ErrConfigNotFound) {
		return interview.CallConfig{}, ErrConfigurationNotFound
	}
	return cfg, err
}

// schedule regenerates the greeting and queues a retry call. It returns the dialed number.
func (s *Service) schedule(ctx context.Context, org orgs.Organization, cfg interview.CallConfig, iv interview.Interview, delay time.Duration) (string, error) {
	log := logger.From(ctx).With("organization_id", iv.OrganizationID, "interview_id", iv.ID)
	to := s.policy.Normalize(iv.CandidatePhone)
	if to == "" {
		return "", ErrNoPhone
	}
	audio, err := s.speaker.Generate(ctx, greeting.WelcomeScript(org.Name, iv.JobTitle), cfg.VoiceID)
	if err != nil {
		log.Error("retry greeting failed", "err", err)
		return "", err
	}

	var details ats.JobDetails
	if len(iv.JobDetails) > 0 {
		if err := json.Unmarshal(iv.JobDetails, &details); err != nil {
			log.Warn("stored job details unreadable", "err", err)
		}
	}
	call := calling.Call{
		IsRetry: true,
		Request: calling.CallRequest{
			ToPhoneNumber:       to,
			FromPhoneNumber:     cfg.FromNumber,
			OrganizationID:      iv.OrganizationID,
			ApplicationID:       deref(iv.ApplicationID),
			CandidateID:         deref(iv.CandidateID),
			JobTitle:            iv.JobTitle,
			JobID:               deref(iv.JobID),
			JobDetails:          details,
			CandidateName:       iv.CandidateName,
			InterviewType:       calling.InterviewTypeGeneral,
			PrimaryQuestions:    cfg.QuestionTexts(),
			EndOnNegativeAnswer: cfg.EndCallIfPrimaryAnswerNegative,
			WelcomeAudioURL:     audio.URL,
			WelcomeText:         audio.Script,
			VoiceID:             cfg.VoiceID,
			CandidateEmail:      iv.CandidateEmail,
		},
	}
	if _, err := calling.Schedule(ctx, s.queue, call, delay); err != nil {
		log.Error("queue retry call failed", "err", err)
		return "", err
	}
	log.Info("retry call queued", "delay", delay.String())
	return to, nil
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
