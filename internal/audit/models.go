package audit

import "time"

// Fact is an immutable, append-only audit record emitted by the session
// lifecycle engine.
//
// Invariants:
// - Facts are never updated or deleted.
// - Emission is best-effort; critical flows must not block on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_facts with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Fact struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the record.
	Type FactType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the fact, when one
	// exists (webhook-driven facts have no actor).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Target identifiers (optional, depending on the fact type).
	SessionID     string `json:"session_id,omitempty" db:"session_id"`
	CorrelationID string `json:"correlation_id,omitempty" db:"correlation_id"`
	LeadID        string `json:"lead_id,omitempty" db:"lead_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type FactType string

const (
	FactSessionInitiated   FactType = "session_initiated"
	FactSessionTransition  FactType = "session_transition"
	FactEventRejected      FactType = "webhook_event_rejected"
	FactTerminateRequested FactType = "terminate_requested"
	FactLeadResolved       FactType = "lead_resolved"
)
