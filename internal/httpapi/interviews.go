package httpapi

import (
	"net/http"
	"strings"
	"time"

	"callpilot/internal/interview"
	"callpilot/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CreateInterview records an interview result posted by the calling engine.
func (h Handlers) CreateInterview(c *gin.Context) {
	var req interview.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	iv, err := h.Interviews.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	logger.FromGin(c).Info("interview recorded", "organization_id", iv.OrganizationID, "interview_id", iv.ID, "ai_decision", iv.AIDecision)
	c.JSON(http.StatusCreated, iv)
}

// SaveConversation upserts a call transcript. 201 on first save, 200 on overwrite.
func (h Handlers) SaveConversation(c *gin.Context) {
	var req interview.ConversationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	conv, created, err := h.Interviews.SaveConversation(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"created": created, "conversation": conv})
}

// ListInterviews returns the caller organization's interviews with transcripts attached.
// Query: job_id, ai_decision (comma separated), from/to (RFC 3339), limit.
func (h Handlers) ListInterviews(c *gin.Context) {
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
	f := interview.ListFilter{OrganizationID: orgID, JobID: jobID, Limit: limit}
	if raw := c.Query("ai_decision"); raw != "" {
		f.AIDecisions = strings.Split(raw, ",")
	}
	var err error
	if f.From, err = optionalTime(c.Query("from")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
		return
	}
	if f.To, err = optionalTime(c.Query("to")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
		return
	}

	ivs, err := h.Interviews.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ivs), "results": ivs})
}

// GetConversation returns one transcript by call SID, scoped to the caller's organization.
func (h Handlers) GetConversation(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	conv, err := h.Interviews.Conversation(c.Request.Context(), orgID, c.Param("call_sid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func optionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
