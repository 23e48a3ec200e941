package main

import (
	"net/http"
	"time"

	"callpilot/internal/auth"
	"callpilot/internal/httpapi"
	"callpilot/internal/metrics"
	"callpilot/internal/rbac"
	"callpilot/internal/subscription"
	"callpilot/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d *deps, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "postgres unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	// Greeting audio handed to the calling engine by URL.
	r.Static("/media", d.cfg.Blob.Dir)

	h := httpapi.Handlers{
		Interviews: d.interviews,
		Retry:      d.retry,
		Reports:    d.reports,
		Audit:      d.audit,
		Queue:      d.queue,
		Statuses:   d,
	}

	// Calling engine callbacks (shared secret, no user identity).
	callbacks := r.Group("/v1/callbacks", auth.RequireCallbackSecret(d.cfg.Calling.CallbackSecret))
	{
		callbacks.POST("/interviews", h.CreateInterview)
		callbacks.POST("/conversations", h.SaveConversation)
	}

	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			oid, _ := auth.OrganizationID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "organization_id": oid, "role": role})
		})

		interviews := v1.Group("/interviews", rbac.Chain(rbac.Read...)...)
		{
			interviews.GET("", h.ListInterviews)
			interviews.GET("/conversations/:call_sid", h.GetConversation)
		}

		reports := v1.Group("/reports", rbac.Chain(rbac.Read...)...)
		{
			reports.GET("/interviews", h.InterviewReport)
		}

		cfg := v1.Group("/call-config", rbac.Chain(rbac.Configure...)...)
		{
			cfg.GET("", h.GetCallConfig)
			cfg.POST("", h.CreateCallConfig)
			cfg.GET("/details", h.GetCallConfig)
			cfg.PUT("/details", h.UpdateCallConfig)
			cfg.DELETE("/details", h.DeleteCallConfig)
			cfg.GET("/primary-questions", h.ListPrimaryQuestions)
		}

		atsGroup := v1.Group("/ats", rbac.Chain(rbac.Configure...)...)
		{
			atsGroup.GET("/statuses", h.ListATSStatuses)
		}

		// Placing calls consumes quota; the AI_CALL feature gates both routes.
		calling := append(rbac.Chain(rbac.Operate...), subscription.RequireFeature(d.subscriptions, subscription.FeatureAICall))
		recall := v1.Group("/recall", calling...)
		{
			recall.POST("", h.RetryDisconnected)
			recall.POST("/:interview_id", h.RetryInterview)
		}

		campaigns := v1.Group("/campaigns", rbac.Chain(rbac.Configure...)...)
		campaigns.Use(subscription.RequireFeature(d.subscriptions, subscription.FeatureAICall))
		{
			campaigns.POST("/run", h.RunCampaign)
		}
	}
}
