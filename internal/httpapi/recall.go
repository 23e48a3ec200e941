package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"callpilot/internal/audit"
	"callpilot/internal/greeting"
	"callpilot/internal/retry"

	"github.com/gin-gonic/gin"
)

// RetryInterview re-dials one disconnected interview.
func (h Handlers) RetryInterview(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	interviewID, err := strconv.ParseInt(c.Param("interview_id"), 10, 64)
	if err != nil || interviewID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "interview_id must be a positive integer"})
		return
	}

	res, err := h.Retry.RetrySingle(c.Request.Context(), orgID, interviewID)
	if err != nil {
		writeRetryError(c, err)
		return
	}
	a := actor(c)
	h.record(c, func(ctx context.Context, s *audit.Service) error {
		return s.LogRetry(ctx, orgID, a, interviewID)
	})
	c.JSON(http.StatusOK, res)
}

// RetryDisconnected re-dials up to limit disconnected interviews, optionally for one job.
func (h Handlers) RetryDisconnected(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	jobID, ok := optionalID(c, "job_id")
	if !ok {
		return
	}
	limit, ok := optionalInt(c, "limit")
	if !ok {
		return
	}

	res, err := h.Retry.RetryBulk(c.Request.Context(), orgID, jobID, limit)
	if err != nil {
		writeRetryError(c, err)
		return
	}
	if res.TotalDisconnected > 0 {
		a := actor(c)
		h.record(c, func(ctx context.Context, s *audit.Service) error {
			return s.LogBulkRetry(ctx, orgID, a, res)
		})
	}
	c.JSON(http.StatusOK, res)
}

func writeRetryError(c *gin.Context, err error) {
	var notRetryable *retry.NotRetryableError
	switch {
	case errors.As(err, &notRetryable):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":       "This candidate was not disconnected",
			"ai_decision": notRetryable.AIDecision,
		})
	case errors.Is(err, retry.ErrInterviewNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Interview not found"})
	case errors.Is(err, retry.ErrConfigurationNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No call configuration found for this organization"})
	case errors.Is(err, retry.ErrLimitTooLarge):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be at most " + strconv.Itoa(retry.MaxLimit)})
	case errors.Is(err, retry.ErrNoPhone):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Candidate has no phone number"})
	case errors.Is(err, greeting.ErrSpeechGeneration):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Welcome message generation failed"})
	default:
		writeError(c, err)
	}
}
