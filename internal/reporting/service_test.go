package reporting

import (
	"context"
	"testing"
	"time"

	"callpilot/internal/interview"
)

func seed(t *testing.T, repo *interview.MemoryRepo, ivs ...interview.Interview) {
	t.Helper()
	for _, iv := range ivs {
		if _, err := repo.CreateInterview(context.Background(), iv); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func window() TimeRange {
	now := time.Now().UTC()
	return TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}
}

func TestReporting_OrganizationIsolation(t *testing.T) {
	repo := interview.NewMemoryRepo()
	seed(t, repo,
		interview.Interview{OrganizationID: 1, AIDecision: interview.DecisionSuccessful, Type: interview.TypeAICall, Status: interview.StatusCompleted},
		interview.Interview{OrganizationID: 2, AIDecision: interview.DecisionSuccessful, Type: interview.TypeAICall, Status: interview.StatusCompleted},
	)
	svc := NewService(repo)

	out, err := svc.InterviewSummary(context.Background(), InterviewSummaryRequest{OrganizationID: 1, Range: window()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalInterviews != 1 {
		t.Fatalf("expected 1 interview, got %d", out.TotalInterviews)
	}
}

func TestReporting_InterviewSummaryAggregates(t *testing.T) {
	repo := interview.NewMemoryRepo()
	job := int64(55)
	other := int64(56)
	seed(t, repo,
		interview.Interview{OrganizationID: 1, JobID: &job, AIDecision: interview.DecisionSuccessful, CallDuration: "60", Type: interview.TypeAICall, Status: interview.StatusCompleted},
		interview.Interview{OrganizationID: 1, JobID: &job, AIDecision: interview.DecisionUnsuccessful, CallDuration: "30.5", Type: interview.TypeAICall, Status: interview.StatusCompleted},
		interview.Interview{OrganizationID: 1, JobID: &job, AIDecision: interview.DecisionUserDisconnect, CallDuration: "n/a", Type: interview.TypeAICall, Status: interview.StatusCompleted},
		interview.Interview{OrganizationID: 1, JobID: &job, AIDecision: interview.DecisionNetworkDisconnect, Type: interview.TypeAISMS, Status: interview.StatusInProgress},
		interview.Interview{OrganizationID: 1, JobID: &other, AIDecision: interview.DecisionSuccessful, CallDuration: "10", Type: interview.TypeAICall, Status: interview.StatusCompleted},
	)
	svc := NewService(repo)

	out, err := svc.InterviewSummary(context.Background(), InterviewSummaryRequest{OrganizationID: 1, JobID: &job, Range: window()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalInterviews != 4 || out.Successful != 1 || out.Unsuccessful != 1 || out.Disconnected != 2 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.ByType[string(interview.TypeAISMS)] != 1 || out.ByStatus[string(interview.StatusCompleted)] != 3 {
		t.Fatalf("unexpected breakdowns: %+v", out)
	}
	if out.TimedInterviews != 2 || out.TotalDurationSeconds != 90.5 {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if out.AverageDurationSeconds != 45.25 {
		t.Fatalf("expected average 45.25, got %v", out.AverageDurationSeconds)
	}
	if out.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %v", out.SuccessRate)
	}
}

func TestReporting_RejectsInvalidRange(t *testing.T) {
	svc := NewService(interview.NewMemoryRepo())
	now := time.Now()

	if _, err := svc.InterviewSummary(context.Background(), InterviewSummaryRequest{OrganizationID: 1, Range: TimeRange{From: now, To: now}}); err == nil {
		t.Fatalf("expected error for empty range")
	}
	if _, err := svc.InterviewSummary(context.Background(), InterviewSummaryRequest{Range: window()}); err == nil {
		t.Fatalf("expected error for missing organization")
	}
}
