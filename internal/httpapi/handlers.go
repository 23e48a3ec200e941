package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"callpilot/internal/ats"
	"callpilot/internal/audit"
	"callpilot/internal/auth"
	"callpilot/internal/interview"
	"callpilot/internal/reporting"
	"callpilot/internal/retry"
	"callpilot/internal/taskqueue"
	"callpilot/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StatusLister resolves the ATS application statuses for an organization's configured platform.
type StatusLister interface {
	Statuses(ctx context.Context, organizationID int64) ([]ats.Status, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Interviews *interview.Service
	Retry      *retry.Service
	Reports    *reporting.Service
	Audit      *audit.Service
	Queue      taskqueue.Queue
	Statuses   StatusLister
}

func organizationID(c *gin.Context) (int64, bool) {
	id, err := auth.OrganizationID(c.Request.Context())
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return 0, false
	}
	return id, true
}

func actor(c *gin.Context) audit.Actor {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return audit.Actor{UserID: uid, Role: role, IP: c.ClientIP()}
}

// record writes an audit event. Failures are logged and never fail the request.
func (h Handlers) record(c *gin.Context, fn func(ctx context.Context, s *audit.Service) error) {
	if h.Audit == nil {
		return
	}
	if err := fn(c.Request.Context(), h.Audit); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var verr *interview.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, interview.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, interview.ErrConfigNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No call configuration found for this organization"})
	case errors.Is(err, ats.ErrTokenRefresh):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "ATS authorization expired; reconnect the platform"})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// optionalID parses an optional positive integer query parameter.
func optionalID(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return nil, false
	}
	return &v, true
}

func optionalInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}
