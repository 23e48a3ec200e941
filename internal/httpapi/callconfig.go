package httpapi

import (
	"context"
	"net/http"

	"callpilot/internal/audit"
	"callpilot/internal/interview"

	"github.com/gin-gonic/gin"
)

// GetCallConfig returns the organization's call configuration or 404.
func (h Handlers) GetCallConfig(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	cfg, err := h.Interviews.Config(c.Request.Context(), orgID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) CreateCallConfig(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	var req interview.ConfigInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cfg, err := h.Interviews.CreateConfig(c.Request.Context(), orgID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.configChanged(c, orgID, "created")
	c.JSON(http.StatusCreated, cfg)
}

func (h Handlers) UpdateCallConfig(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	var req interview.ConfigInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cfg, err := h.Interviews.UpdateConfig(c.Request.Context(), orgID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.configChanged(c, orgID, "updated")
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) DeleteCallConfig(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	if err := h.Interviews.DeleteConfig(c.Request.Context(), orgID); err != nil {
		writeError(c, err)
		return
	}
	h.configChanged(c, orgID, "deleted")
	c.Status(http.StatusNoContent)
}

// ListPrimaryQuestions returns the active question bank.
func (h Handlers) ListPrimaryQuestions(c *gin.Context) {
	qs, err := h.Interviews.ActiveQuestions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, qs)
}

func (h Handlers) configChanged(c *gin.Context, orgID int64, action string) {
	a := actor(c)
	h.record(c, func(ctx context.Context, s *audit.Service) error {
		return s.LogConfigChange(ctx, orgID, a, action)
	})
}
