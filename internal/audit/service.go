package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit facts.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, f Fact) error
}

// Service records internal audit facts for the session engine.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidFact = errors.New("audit: invalid fact")

func (s *Service) Append(ctx context.Context, f Fact) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if f.Type == "" {
		return ErrInvalidFact
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, f)
}

// SessionInitiated records an outbound initiation attempt and its outcome.
func (s *Service) SessionInitiated(ctx context.Context, sessionID, actorUserID, actorRole, message, metadata string) error {
	return s.Append(ctx, Fact{
		Type:        FactSessionInitiated,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		SessionID:   sessionID,
		Message:     message,
		Metadata:    metadata,
	})
}

// SessionTransition records an applied webhook transition.
func (s *Service) SessionTransition(ctx context.Context, sessionID, correlationID, message, metadata string) error {
	return s.Append(ctx, Fact{
		Type:          FactSessionTransition,
		SessionID:     sessionID,
		CorrelationID: correlationID,
		Message:       message,
		Metadata:      metadata,
	})
}

// EventRejected records a dropped webhook event (duplicate, out-of-order,
// post-terminal or unmatched).
func (s *Service) EventRejected(ctx context.Context, sessionID, correlationID, message, metadata string) error {
	return s.Append(ctx, Fact{
		Type:          FactEventRejected,
		SessionID:     sessionID,
		CorrelationID: correlationID,
		Message:       message,
		Metadata:      metadata,
	})
}

// TerminateRequested records a best-effort hangup/cancel request.
func (s *Service) TerminateRequested(ctx context.Context, sessionID, actorUserID, actorRole string) error {
	return s.Append(ctx, Fact{
		Type:        FactTerminateRequested,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		SessionID:   sessionID,
		Message:     "terminate requested",
	})
}

// LeadResolved records an inbound lead match, including ambiguous ones.
func (s *Service) LeadResolved(ctx context.Context, sessionID, leadID string, ambiguous bool, metadata string) error {
	msg := "lead resolved"
	if ambiguous {
		msg = "lead resolved (ambiguous match)"
	}
	return s.Append(ctx, Fact{
		Type:      FactLeadResolved,
		SessionID: sessionID,
		LeadID:    leadID,
		Message:   msg,
		Metadata:  metadata,
	})
}
