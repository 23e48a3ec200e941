package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// InterviewSummaryRequest requests aggregated interview metrics.
// Organization isolation: OrganizationID is required.
type InterviewSummaryRequest struct {
	OrganizationID int64     `json:"organization_id"`
	Range          TimeRange `json:"range"`
	JobID          *int64    `json:"job_id,omitempty"`
}

type InterviewSummary struct {
	OrganizationID int64  `json:"organization_id"`
	JobID          *int64 `json:"job_id,omitempty"`

	TotalInterviews int `json:"total_interviews"`
	Successful      int `json:"successful"`
	Unsuccessful    int `json:"unsuccessful"`
	Disconnected    int `json:"disconnected"`

	ByStatus     map[string]int `json:"by_status"`
	ByType       map[string]int `json:"by_type"`
	ByAIDecision map[string]int `json:"by_ai_decision"`

	// Durations that cannot be parsed are left out of the totals.
	TimedInterviews        int     `json:"timed_interviews"`
	TotalDurationSeconds   float64 `json:"total_duration_seconds"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`

	// SuccessRate is successful over decided (successful + unsuccessful) interviews.
	SuccessRate float64 `json:"success_rate"`
}
