package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CallDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpilot_call_dispatch_total",
		Help: "Interview call dispatch attempts by outcome",
	}, []string{"outcome"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpilot_ats_token_refresh_total",
		Help: "ATS access token refresh attempts by result",
	}, []string{"result"})

	ATSRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpilot_ats_requests_total",
		Help: "ATS HTTP requests by operation and status class",
	}, []string{"op", "code"})

	SpeechGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpilot_speech_generation_total",
		Help: "Greeting audio generations by result",
	}, []string{"result"})

	Tasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpilot_tasks_total",
		Help: "Background tasks processed by kind and result",
	}, []string{"kind", "result"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callpilot_task_duration_seconds",
		Help:    "Background task handler latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callpilot_interview_retries_total",
		Help: "Interview retry requests by mode and result",
	}, []string{"mode", "result"})

	CampaignCandidates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callpilot_campaign_candidates_total",
		Help: "Eligible candidates scheduled by bulk campaigns",
	})
)

// Handler exposes the default registry for gin.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// StatusClass buckets an HTTP status for label cardinality; 0 means a transport error.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code == 401:
		return "401"
	case code < 300:
		return "2xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
