package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crm-platform/internal/audit"
	"crm-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrPlacementCapExceeded is returned when the owner already has the maximum
// number of in-flight outbound placements. No session is created.
var ErrPlacementCapExceeded = errors.New("sessions: too many in-flight placements")

// InitiatorConfig tunes outbound initiation.
type InitiatorConfig struct {
	// PlaceTimeout bounds the synchronous provider round trip. Default 10s.
	PlaceTimeout time.Duration

	// Origins maps session kind to the owned E.164 number used as caller
	// id / sender.
	Origins map[Kind]string

	// MaxInFlightPerOwner caps concurrent placements per owner via redis.
	// 0 disables the cap.
	MaxInFlightPerOwner int
}

func (c InitiatorConfig) withDefaults() InitiatorConfig {
	out := c
	if out.PlaceTimeout <= 0 {
		out.PlaceTimeout = 10 * time.Second
	}
	return out
}

// InitiateRequest is one outbound initiation attempt.
type InitiateRequest struct {
	Kind        Kind
	OwnerUserID string
	OwnerRole   string

	// CounterpartNumber is the raw destination; it is normalized to E.164
	// before anything is persisted.
	CounterpartNumber string

	// LeadID optionally links the session to a lead at creation time.
	LeadID string

	// Body is the message text (messages only).
	Body string
	// Record requests call recording (calls only).
	Record bool

	Tags     []string
	Metadata map[string]string
}

// Initiator orchestrates outbound session creation: persist a pending
// record, place the session at the provider under a bounded timeout, and
// record the synchronous outcome. It never returns with the session left in
// its initial pending/queued status.
type Initiator struct {
	store    Store
	adapters map[Kind]Adapter
	audits   *audit.Service
	rdb      *redis.Client
	log      *slog.Logger
	cfg      InitiatorConfig
	clock    func() time.Time
}

func NewInitiator(store Store, adapters map[Kind]Adapter, audits *audit.Service, rdb *redis.Client, log *slog.Logger, cfg InitiatorConfig) *Initiator {
	if log == nil {
		log = slog.Default()
	}
	return &Initiator{
		store:    store,
		adapters: adapters,
		audits:   audits,
		rdb:      rdb,
		log:      log,
		cfg:      cfg.withDefaults(),
		clock:    time.Now,
	}
}

// Initiate runs one outbound attempt end to end. On provider rejection or
// timeout the session is marked failed before this returns; the failed
// session is returned alongside the error so callers can surface both.
func (i *Initiator) Initiate(ctx context.Context, req InitiateRequest) (Session, error) {
	if !req.Kind.Valid() || req.OwnerUserID == "" {
		return Session{}, ErrInvalidArgument
	}
	if req.Kind == KindMessage && req.Body == "" {
		return Session{}, fmt.Errorf("message body required: %w", ErrInvalidArgument)
	}
	adapter, ok := i.adapters[req.Kind]
	if !ok {
		return Session{}, fmt.Errorf("no adapter for kind %q", req.Kind)
	}

	counterpart, err := adapter.NormalizeAddress(req.CounterpartNumber)
	if err != nil {
		return Session{}, err
	}
	origin := i.cfg.Origins[req.Kind]

	if i.rdb != nil && i.cfg.MaxInFlightPerOwner > 0 {
		capKey := "sessions:placing:" + req.OwnerUserID
		ok, err := utils.AcquireConcurrencyCap(ctx, i.rdb, capKey, i.cfg.MaxInFlightPerOwner, 2*i.cfg.PlaceTimeout)
		if err != nil {
			// Redis being down must not take down outbound calling.
			i.log.Warn("placement cap check failed, proceeding", "err", err)
		} else if !ok {
			return Session{}, ErrPlacementCapExceeded
		} else {
			defer func() {
				if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), i.rdb, capKey); err != nil {
					i.log.Warn("placement cap release failed", "err", err)
				}
			}()
		}
	}

	now := i.clock().UTC()
	s := Session{
		SessionID:         uuid.NewString(),
		Kind:              req.Kind,
		Direction:         DirectionOutbound,
		OwnerUserID:       req.OwnerUserID,
		CounterpartNumber: counterpart,
		OwnerNumber:       origin,
		Status:            InitialOutboundStatus(req.Kind),
		InitiatedAt:       now,
		LeadID:            req.LeadID,
		Content:           req.Body,
		Tags:              req.Tags,
		Metadata:          req.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := i.store.Create(ctx, s); err != nil {
		return Session{}, fmt.Errorf("sessions: create: %w", err)
	}

	placeCtx, cancel := context.WithTimeout(ctx, i.cfg.PlaceTimeout)
	defer cancel()

	res, placeErr := adapter.Place(placeCtx, PlaceRequest{
		To:       counterpart,
		From:     origin,
		Body:     req.Body,
		Record:   req.Record,
		Metadata: req.Metadata,
	})
	if placeErr != nil {
		// The session must never be left pending/queued after this call
		// returns, even if the caller's context is already gone.
		return i.failPlacement(context.WithoutCancel(ctx), s, adapter.Name(), placeErr)
	}

	accepted := res.InitialStatus
	if !ValidStatus(req.Kind, accepted) || accepted == InitialOutboundStatus(req.Kind) {
		accepted = acceptedStatus(req.Kind)
	}
	placed, err := i.store.SetPlacement(ctx, s.SessionID, res.CorrelationID, accepted)
	if err != nil {
		return Session{}, fmt.Errorf("sessions: record placement: %w", err)
	}

	i.emitInitiated(ctx, placed, req, "placed with "+adapter.Name())
	return placed, nil
}

func acceptedStatus(k Kind) Status {
	if k == KindMessage {
		return StatusSent
	}
	return StatusRinging
}

func (i *Initiator) failPlacement(ctx context.Context, s Session, providerName string, placeErr error) (Session, error) {
	reason := placementFailureReason(placeErr)

	failed, err := i.store.MarkFailed(ctx, s.SessionID, reason, i.clock().UTC())
	if err != nil {
		// The record is now in an unknown state; surface both problems.
		i.log.Error("failed to mark session failed", "session_id", s.SessionID, "err", err)
		return Session{}, errors.Join(placeErr, err)
	}

	i.emitInitiated(ctx, failed, InitiateRequest{OwnerUserID: s.OwnerUserID}, "placement failed: "+reason)
	i.log.Info("outbound placement failed",
		"session_id", s.SessionID,
		"provider", providerName,
		"kind", FailureKindOf(placeErr),
		"reason", reason,
	)
	return failed, placeErr
}

func placementFailureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "provider timeout"
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Reason != "" {
		return pe.Reason
	}
	return err.Error()
}

func (i *Initiator) emitInitiated(ctx context.Context, s Session, req InitiateRequest, message string) {
	if i.audits == nil {
		return
	}
	if err := i.audits.SessionInitiated(ctx, s.SessionID, req.OwnerUserID, req.OwnerRole, message, ""); err != nil {
		i.log.Warn("audit emit failed", "session_id", s.SessionID, "err", err)
	}
}

// Terminate requests a best-effort hangup/cancel at the provider. The
// synchronous acknowledgment does not finalize the session; the confirming
// webhook does, through the same atomic transition path as any other event.
// Terminating an already-terminal session is a no-op.
func (i *Initiator) Terminate(ctx context.Context, sessionID, actorUserID, actorRole string) (Session, error) {
	s, err := i.store.GetByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if IsTerminal(s.Kind, s.Status) {
		return s, nil
	}
	if s.ProviderCorrelationID == "" {
		return Session{}, fmt.Errorf("session has no provider correlation id yet: %w", ErrInvalidArgument)
	}
	adapter, ok := i.adapters[s.Kind]
	if !ok {
		return Session{}, fmt.Errorf("no adapter for kind %q", s.Kind)
	}

	if err := adapter.Terminate(ctx, s.ProviderCorrelationID); err != nil {
		return Session{}, err
	}

	if i.audits != nil {
		if err := i.audits.TerminateRequested(ctx, s.SessionID, actorUserID, actorRole); err != nil {
			i.log.Warn("audit emit failed", "session_id", s.SessionID, "err", err)
		}
	}
	return s, nil
}
