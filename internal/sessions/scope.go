package sessions

import (
	"context"
	"fmt"

	"crm-platform/internal/rbac"
)

// Scope is the role-derived visibility predicate over sessions. It is built
// once per request and composed into every read/listing query. Write paths
// (initiation, ingestion) are never scoped: a session belongs to exactly the
// owner computed at creation time.
type Scope struct {
	// All grants unrestricted visibility (admins).
	All bool

	// OwnerIDs restricts visibility to sessions owned by one of these users.
	// Sessions without an owner (unmatched inbound) match no scoped read;
	// they are admin-only.
	OwnerIDs []string
}

// TeamDirectory resolves the agents reporting to a manager.
type TeamDirectory interface {
	AgentIDs(ctx context.Context, managerID string) ([]string, error)
}

// ScopeFor builds the visibility scope for a user:
// admin sees everything, a manager sees their own sessions plus their
// agents', an agent sees only their own.
func ScopeFor(ctx context.Context, userID, role string, teams TeamDirectory) (Scope, error) {
	switch role {
	case rbac.RoleAdmin:
		return Scope{All: true}, nil
	case rbac.RoleManager:
		owners := []string{userID}
		if teams != nil {
			agents, err := teams.AgentIDs(ctx, userID)
			if err != nil {
				return Scope{}, fmt.Errorf("sessions: team lookup: %w", err)
			}
			owners = append(owners, agents...)
		}
		return Scope{OwnerIDs: owners}, nil
	case rbac.RoleAgent:
		return Scope{OwnerIDs: []string{userID}}, nil
	default:
		return Scope{}, fmt.Errorf("sessions: unknown role %q: %w", role, ErrInvalidArgument)
	}
}

// Allows reports whether the scope permits reading s.
func (sc Scope) Allows(s Session) bool {
	if sc.All {
		return true
	}
	if s.OwnerUserID == "" {
		return false
	}
	for _, id := range sc.OwnerIDs {
		if id == s.OwnerUserID {
			return true
		}
	}
	return false
}
