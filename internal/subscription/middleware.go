package subscription

import (
	"context"
	"net/http"

	"callpilot/internal/auth"

	"github.com/gin-gonic/gin"
)

// FeatureChecker is the minimal subscription service interface needed by middleware.
type FeatureChecker interface {
	HasFeature(ctx context.Context, organizationID int64, feature FeatureType) (bool, error)
}

// RequireFeature blocks the request unless the caller's organization holds feature with quota left.
func RequireFeature(svc FeatureChecker, feature FeatureType) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := auth.OrganizationID(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
			return
		}

		ok, err := svc.HasFeature(c.Request.Context(), orgID, feature)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "subscription lookup failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "no active " + string(feature) + " subscription"})
			return
		}
		c.Next()
	}
}
