package rbac

// Organization roles. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner     = "owner"
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleRecruiter = "recruiter"
	RoleViewer    = "viewer"
)

// Role groups used by the route table.
var (
	// Configure may change call configuration and trigger campaigns.
	Configure = []string{RoleOwner, RoleAdmin}
	// Operate may retry interviews.
	Operate = []string{RoleOwner, RoleAdmin, RoleManager, RoleRecruiter}
	// Read may list interviews and reports.
	Read = []string{RoleOwner, RoleAdmin, RoleManager, RoleRecruiter, RoleViewer}
)
