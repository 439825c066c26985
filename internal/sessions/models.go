package sessions

import "time"

// Session is the unified record for one tracked communication: a voice call
// or a text message, inbound or outbound, from initiation (or first sight of
// an inbound event) to a terminal status.
//
// Invariants:
// - ProviderCorrelationID, once set, is stable and unique across all sessions.
// - Status only moves forward through the per-kind state machine; terminal
//   statuses are immutable, and TerminatedAt/DurationSeconds are set exactly once.
// - LeadID is assigned at most once; later resolution attempts are no-ops.
// - Sessions are never deleted; they are mutated in place only by legal transitions.

type Session struct {
	SessionID string    `json:"session_id" db:"session_id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Direction Direction `json:"direction" db:"direction"`

	// OwnerUserID is the initiating user (outbound) or the assigned agent
	// (inbound). Empty for an inbound session that matched no lead.
	OwnerUserID string `json:"owner_user_id,omitempty" db:"owner_user_id"`

	// CounterpartNumber and OwnerNumber are E.164.
	CounterpartNumber string `json:"counterpart_number" db:"counterpart_number"`
	OwnerNumber       string `json:"owner_number" db:"owner_number"`

	Status Status `json:"status" db:"status"`

	// ProviderCorrelationID is the provider's own identifier for this
	// session. It is the idempotency key for webhook matching.
	ProviderCorrelationID string `json:"provider_correlation_id,omitempty" db:"provider_correlation_id"`

	InitiatedAt  time.Time  `json:"initiated_at" db:"initiated_at"`
	TerminatedAt *time.Time `json:"terminated_at,omitempty" db:"terminated_at"`

	// DurationSeconds is call-only, computed once on the terminal transition.
	DurationSeconds int `json:"duration_seconds,omitempty" db:"duration_seconds"`

	LeadID string `json:"lead_id,omitempty" db:"lead_id"`

	// Content is the message body (messages only).
	Content string `json:"content,omitempty" db:"content"`
	// RecordingURL is call-only.
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	FailureReason string `json:"failure_reason,omitempty" db:"failure_reason"`

	Tags     []string          `json:"tags,omitempty" db:"tags"`
	Metadata map[string]string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Kind string

const (
	KindCall    Kind = "call"
	KindMessage Kind = "message"
)

func (k Kind) Valid() bool { return k == KindCall || k == KindMessage }

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Status string

const (
	// Call statuses.
	StatusPending    Status = "pending"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no_answer"

	// Message statuses.
	StatusQueued      Status = "queued"
	StatusSent        Status = "sent"
	StatusDelivered   Status = "delivered"
	StatusUndelivered Status = "undelivered"
	StatusReceived    Status = "received"

	// StatusFailed is shared by both kinds.
	StatusFailed Status = "failed"
)

// statusRank encodes the per-kind state machines as a monotonic ordering:
// a transition is legal iff the current status is non-terminal and the
// target outranks it. Late or duplicate events therefore never regress a
// session, and skipped intermediate statuses (providers do not guarantee
// delivery of every event) do not wedge it.
//
// Calls:    pending -> ringing -> in_progress -> {completed, busy, no_answer, failed}
// Messages: queued -> sent -> {delivered, undelivered, failed}
// Inbound messages are created directly in the terminal status "received";
// it is never a transition target.
var callRank = map[Status]int{
	StatusPending:    0,
	StatusRinging:    1,
	StatusInProgress: 2,
	StatusCompleted:  3,
	StatusBusy:       3,
	StatusNoAnswer:   3,
	StatusFailed:     3,
}

var messageRank = map[Status]int{
	StatusQueued:      0,
	StatusSent:        1,
	StatusDelivered:   2,
	StatusUndelivered: 2,
	StatusFailed:      2,
	StatusReceived:    2,
}

func rankTable(k Kind) map[Status]int {
	if k == KindMessage {
		return messageRank
	}
	return callRank
}

// ValidStatus reports whether s belongs to the state machine of kind k.
func ValidStatus(k Kind, s Status) bool {
	_, ok := rankTable(k)[s]
	return ok
}

// IsTerminal reports whether s is a terminal status for kind k.
func IsTerminal(k Kind, s Status) bool {
	switch k {
	case KindMessage:
		return s == StatusDelivered || s == StatusUndelivered || s == StatusFailed || s == StatusReceived
	default:
		return s == StatusCompleted || s == StatusBusy || s == StatusNoAnswer || s == StatusFailed
	}
}

// CanTransition is the generic legality check for (current -> target) of
// kind k. Illegal transitions (duplicates, regressions, anything out of a
// terminal status) must be dropped by callers as no-ops.
func CanTransition(k Kind, from, to Status) bool {
	ranks := rankTable(k)
	fromRank, ok := ranks[from]
	if !ok {
		return false
	}
	toRank, ok := ranks[to]
	if !ok {
		return false
	}
	if IsTerminal(k, from) {
		return false
	}
	if to == StatusReceived {
		// "received" only exists as the creation status of an inbound message.
		return false
	}
	return toRank > fromRank
}

// LegalPredecessors lists every status from which the target is reachable.
// The store uses this set for its conditional (atomic) status update.
func LegalPredecessors(k Kind, to Status) []Status {
	var out []Status
	for from := range rankTable(k) {
		if CanTransition(k, from, to) {
			out = append(out, from)
		}
	}
	return out
}

// InitialOutboundStatus is the status a new outbound session is persisted
// with before any provider call is made.
func InitialOutboundStatus(k Kind) Status {
	if k == KindMessage {
		return StatusQueued
	}
	return StatusPending
}
