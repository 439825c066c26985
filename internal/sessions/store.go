package sessions

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("sessions: not found")
	ErrInvalidArgument = errors.New("sessions: invalid argument")

	// ErrIllegalTransition is returned when a conditional status update finds
	// the session outside the legal predecessor set for the target status
	// (duplicate, out-of-order or post-terminal event). Callers drop the
	// event as a no-op.
	ErrIllegalTransition = errors.New("sessions: illegal transition")

	// ErrDuplicateCorrelation is returned when Create loses the race on the
	// provider correlation id unique constraint. The caller should re-fetch
	// and apply the event as a transition instead.
	ErrDuplicateCorrelation = errors.New("sessions: duplicate provider correlation id")

	// ErrLeadAlreadyAssigned is returned by AssignLead when lead_id is
	// already set. Lead assignment happens at most once.
	ErrLeadAlreadyAssigned = errors.New("sessions: lead already assigned")
)

// TransitionUpdate carries the terminal-side fields an applied transition may
// set alongside the status itself. Nil/empty fields are left untouched.
type TransitionUpdate struct {
	TerminatedAt    *time.Time
	DurationSeconds *int
	RecordingURL    string
	FailureReason   string
}

// ListFilter selects sessions for the listing/reporting paths.
// Scope is mandatory there; write paths never use it.
type ListFilter struct {
	Scope Scope

	Kind      Kind
	Status    Status
	LeadID    string
	Direction Direction

	// CounterpartContains is a substring match over counterpart_number.
	CounterpartContains string

	From time.Time
	To   time.Time

	// Pagination. Limit <= 0 means the store default.
	Limit  int
	Offset int
}

// Store is the durable persistence contract for sessions.
//
// ApplyTransition, SetPlacement and MarkFailed implement the atomic
// check-and-write required for idempotent webhook ingestion: the status
// update is conditional on the current status being a legal predecessor of
// the target, so concurrent or out-of-order events for the same session can
// never regress it regardless of interleaving.
type Store interface {
	Create(ctx context.Context, s Session) error
	GetByID(ctx context.Context, sessionID string) (Session, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (Session, error)

	// SetPlacement records the synchronous provider acceptance of an
	// outbound session: correlation id plus the accepted status, conditional
	// on the session still being in its initial status.
	SetPlacement(ctx context.Context, sessionID, correlationID string, status Status) (Session, error)

	// MarkFailed moves a session to failed with a reason, conditional on the
	// current status being a legal predecessor of failed.
	MarkFailed(ctx context.Context, sessionID, reason string, at time.Time) (Session, error)

	// ApplyTransition atomically moves the session to target iff legal,
	// applying upd in the same write. Returns ErrIllegalTransition otherwise.
	ApplyTransition(ctx context.Context, sessionID string, target Status, upd TransitionUpdate, at time.Time) (Session, error)

	// AssignLead sets lead_id (and owner if non-empty) iff no lead is
	// assigned yet.
	AssignLead(ctx context.Context, sessionID, leadID, ownerUserID string) error

	List(ctx context.Context, f ListFilter) ([]Session, error)
}
