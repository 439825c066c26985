package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
//
// The hierarchy is three-tier: admin > manager > agent. Read visibility per
// role is derived in internal/sessions (AccessScope); these middlewares only
// gate route access.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleAgent   = "agent"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func KnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleAgent:
		return true
	default:
		return false
	}
}
