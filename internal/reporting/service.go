package reporting

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"callpilot/internal/interview"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
// Implementations must enforce organization filtering; interview.Repository satisfies it.
type Repository interface {
	ListInterviews(ctx context.Context, f interview.ListFilter) ([]interview.Interview, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) InterviewSummary(ctx context.Context, req InterviewSummaryRequest) (InterviewSummary, error) {
	if req.OrganizationID <= 0 {
		return InterviewSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return InterviewSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return InterviewSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListInterviews(ctx, interview.ListFilter{
		OrganizationID: req.OrganizationID,
		JobID:          req.JobID,
		From:           req.Range.From,
		To:             req.Range.To,
	})
	if err != nil {
		return InterviewSummary{}, err
	}

	out := InterviewSummary{
		OrganizationID: req.OrganizationID,
		JobID:          req.JobID,
		ByStatus:       map[string]int{},
		ByType:         map[string]int{},
		ByAIDecision:   map[string]int{},
	}
	for _, iv := range rows {
		out.TotalInterviews++
		out.ByStatus[string(iv.Status)]++
		out.ByType[string(iv.Type)]++
		if iv.AIDecision != "" {
			out.ByAIDecision[iv.AIDecision]++
		}
		switch {
		case iv.AIDecision == interview.DecisionSuccessful:
			out.Successful++
		case iv.AIDecision == interview.DecisionUnsuccessful:
			out.Unsuccessful++
		case interview.IsDisconnect(iv.AIDecision):
			out.Disconnected++
		}
		if d, ok := durationSeconds(iv.CallDuration); ok {
			out.TimedInterviews++
			out.TotalDurationSeconds += d
		}
	}
	if out.TimedInterviews > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / float64(out.TimedInterviews)
	}
	if decided := out.Successful + out.Unsuccessful; decided > 0 {
		out.SuccessRate = float64(out.Successful) / float64(decided)
	}
	return out, nil
}

// durationSeconds parses the engine's call duration, which arrives as "45" or "45.5".
func durationSeconds(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}
