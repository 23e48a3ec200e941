package rbac

import (
	"net/http"

	"callpilot/internal/auth"

	"github.com/gin-gonic/gin"
)

// Allow admits callers that act for an organization and hold one of roles.
// A missing organization or role is 401; a role outside the set is 403. Owners are always admitted.
func Allow(roles ...string) gin.HandlerFunc {
	permitted := make(map[string]bool, len(roles)+1)
	permitted[RoleOwner] = true
	for _, r := range roles {
		permitted[r] = true
	}

	return func(c *gin.Context) {
		id, ok := auth.FromContext(c.Request.Context())
		switch {
		case !ok || id.OrganizationID <= 0:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		case id.Role == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
		case !permitted[id.Role]:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			c.Next()
		}
	}
}

// Chain is the handler list route groups mount; more checks can be appended by callers.
func Chain(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{Allow(roles...)}
}
