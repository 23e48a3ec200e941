package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"callpilot/internal/audit"
	"callpilot/internal/campaign"
	"callpilot/internal/reporting"
	"callpilot/internal/taskqueue"

	"github.com/gin-gonic/gin"
)

// RunCampaign queues a bulk interview-calling run for the caller's organization.
// The run happens on a worker; the response only carries the task id.
func (h Handlers) RunCampaign(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	t, err := h.Queue.Enqueue(c.Request.Context(), taskqueue.KindCampaignBulk, campaign.BulkRequest{OrganizationID: orgID}, 0)
	if err != nil {
		writeError(c, err)
		return
	}
	a := actor(c)
	h.record(c, func(ctx context.Context, s *audit.Service) error {
		return s.LogCampaignTrigger(ctx, orgID, a)
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "task_id": t.ID})
}

// ListATSStatuses returns the application statuses defined in the organization's ATS.
func (h Handlers) ListATSStatuses(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	out, err := h.Statuses.Statuses(c.Request.Context(), orgID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// InterviewReport summarizes interviews in [from, to). Defaults to the last 30 days.
func (h Handlers) InterviewReport(c *gin.Context) {
	orgID, ok := organizationID(c)
	if !ok {
		return
	}
	jobID, ok := optionalID(c, "job_id")
	if !ok {
		return
	}
	to, err := optionalTime(c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
		return
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from, err := optionalTime(c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
		return
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	out, err := h.Reports.InterviewSummary(c.Request.Context(), reporting.InterviewSummaryRequest{
		OrganizationID: orgID,
		JobID:          jobID,
		Range:          reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report range"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
