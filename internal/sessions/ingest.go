package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crm-platform/internal/audit"
	"crm-platform/internal/leads"
	"crm-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Outcome summarizes what ingestion did with one webhook event. The HTTP
// layer acknowledges 200 regardless; the outcome only feeds logs and audit.
type Outcome string

const (
	// OutcomeApplied: a legal transition was committed.
	OutcomeApplied Outcome = "applied"
	// OutcomeCreated: a new inbound session was created.
	OutcomeCreated Outcome = "created"
	// OutcomeIgnored: duplicate, out-of-order or post-terminal event,
	// dropped as a no-op.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeRejected: malformed event or no matching session for a
	// non-inbound event kind.
	OutcomeRejected Outcome = "rejected"
	// OutcomeDeadLettered: persistence kept failing; the event was written
	// to the dead-letter queue for manual reconciliation.
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// IngestorConfig tunes webhook ingestion.
type IngestorConfig struct {
	// LockTTL/LockWait bound the per-session redis lock. The lock only
	// reduces write contention; the store's conditional transition is the
	// correctness guarantee.
	LockTTL  time.Duration
	LockWait time.Duration

	// MaxAttempts and RetryBackoff bound retries of persistence failures.
	MaxAttempts  int
	RetryBackoff time.Duration

	// DeadLetterQueue is the redis list receiving exhausted events.
	DeadLetterQueue string
}

func (c IngestorConfig) withDefaults() IngestorConfig {
	out := c
	if out.LockTTL <= 0 {
		out.LockTTL = 5 * time.Second
	}
	if out.LockWait <= 0 {
		out.LockWait = 2 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.RetryBackoff <= 0 {
		out.RetryBackoff = 100 * time.Millisecond
	}
	if out.DeadLetterQueue == "" {
		out.DeadLetterQueue = "sessions:webhook:deadletter"
	}
	return out
}

// Ingestor reconciles asynchronous provider webhook events into session
// records. It is safe for unbounded concurrent invocation, including
// multiple events for the same session arriving out of order: the store
// applies each check-and-write atomically per session, so duplicates and
// regressions are dropped no matter the interleaving.
type Ingestor struct {
	store    Store
	resolver *leads.Resolver
	audits   *audit.Service
	rdb      *redis.Client
	log      *slog.Logger
	cfg      IngestorConfig
	clock    func() time.Time
	sleep    func(time.Duration)
}

func NewIngestor(store Store, resolver *leads.Resolver, audits *audit.Service, rdb *redis.Client, log *slog.Logger, cfg IngestorConfig) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		store:    store,
		resolver: resolver,
		audits:   audits,
		rdb:      rdb,
		log:      log,
		cfg:      cfg.withDefaults(),
		clock:    time.Now,
		sleep:    time.Sleep,
	}
}

// Handle processes one parsed webhook event to completion. It never returns
// an error to the HTTP layer: every path ends in an outcome, with failures
// dead-lettered rather than silently discarded.
func (g *Ingestor) Handle(ctx context.Context, ev WebhookEvent) Outcome {
	if err := ev.Validate(); err != nil {
		g.log.Warn("webhook event rejected", "provider", ev.Provider, "event", string(ev.Name), "err", err)
		g.emitRejected(ctx, "", ev, "malformed event")
		return OutcomeRejected
	}

	// Serialize same-session events across instances. Best-effort: if redis
	// is down or the lock stays contended past LockWait we proceed anyway
	// and let the store's conditional write arbitrate.
	if g.rdb != nil {
		key := "sessions:ingest:" + ev.CorrelationID
		token, ok, err := utils.AcquireKeyedLock(ctx, g.rdb, key, g.cfg.LockTTL, g.cfg.LockWait)
		switch {
		case err != nil:
			g.log.Warn("ingest lock unavailable, relying on store atomicity", "err", err)
		case !ok:
			g.log.Debug("ingest lock contended, proceeding", "correlation_id", ev.CorrelationID)
		default:
			defer func() {
				if err := utils.ReleaseKeyedLock(context.WithoutCancel(ctx), g.rdb, key, token); err != nil {
					g.log.Warn("ingest lock release failed", "err", err)
				}
			}()
		}
	}

	var (
		outcome Outcome
		err     error
	)
	backoff := g.cfg.RetryBackoff
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		outcome, err = g.process(ctx, ev)
		if err == nil {
			return outcome
		}
		g.log.Warn("webhook persistence failed",
			"provider", ev.Provider,
			"correlation_id", ev.CorrelationID,
			"attempt", attempt,
			"err", err,
		)
		if attempt < g.cfg.MaxAttempts {
			g.sleep(backoff)
			backoff *= 2
		}
	}

	g.deadLetter(ctx, ev, err)
	return OutcomeDeadLettered
}

func (g *Ingestor) process(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	s, err := g.store.GetByCorrelationID(ctx, ev.CorrelationID)
	switch {
	case err == nil:
		return g.applyTransition(ctx, s, ev)
	case errors.Is(err, ErrNotFound):
		if !ev.NewInbound() {
			// Correlation id with no matching session and not a valid
			// new-inbound kind: drop, log, acknowledge.
			g.log.Warn("webhook for unknown session dropped",
				"provider", ev.Provider,
				"event", string(ev.Name),
				"correlation_id", ev.CorrelationID,
			)
			g.emitRejected(ctx, "", ev, "no matching session")
			return OutcomeRejected, nil
		}
		return g.createInbound(ctx, ev)
	default:
		return "", err
	}
}

func (g *Ingestor) applyTransition(ctx context.Context, s Session, ev WebhookEvent) (Outcome, error) {
	at := ev.OccurredAt
	if at.IsZero() {
		at = g.clock().UTC()
	}
	upd := TransitionUpdate{
		DurationSeconds: ev.DurationSeconds,
		RecordingURL:    ev.RecordingURL,
		FailureReason:   ev.FailureReason,
	}
	target := ev.TargetStatus()
	if IsTerminal(s.Kind, target) && !ev.OccurredAt.IsZero() {
		upd.TerminatedAt = &ev.OccurredAt
	}

	updated, err := g.store.ApplyTransition(ctx, s.SessionID, target, upd, at)
	if errors.Is(err, ErrIllegalTransition) {
		g.log.Debug("illegal or duplicate transition dropped",
			"session_id", s.SessionID,
			"current", string(s.Status),
			"event", string(ev.Name),
		)
		g.emitRejected(ctx, s.SessionID, ev, fmt.Sprintf("illegal transition %s -> %s", s.Status, target))
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	g.emitTransition(ctx, updated.SessionID, ev, fmt.Sprintf("%s -> %s", s.Status, updated.Status))
	return OutcomeApplied, nil
}

func (g *Ingestor) createInbound(ctx context.Context, ev WebhookEvent) (Outcome, error) {
	at := ev.OccurredAt
	if at.IsZero() {
		at = g.clock().UTC()
	}

	s := Session{
		SessionID:             uuid.NewString(),
		Kind:                  ev.Kind(),
		Direction:             DirectionInbound,
		CounterpartNumber:     ev.From,
		OwnerNumber:           ev.To,
		Status:                ev.TargetStatus(),
		ProviderCorrelationID: ev.CorrelationID,
		InitiatedAt:           at,
		Content:               ev.Body,
		CreatedAt:             at,
		UpdatedAt:             at,
	}
	if IsTerminal(s.Kind, s.Status) {
		s.TerminatedAt = &at
	}

	err := g.store.Create(ctx, s)
	if errors.Is(err, ErrDuplicateCorrelation) {
		// Another webhook for the same provider session won the insert race.
		existing, err := g.store.GetByCorrelationID(ctx, ev.CorrelationID)
		if err != nil {
			return "", err
		}
		return g.applyTransition(ctx, existing, ev)
	}
	if err != nil {
		return "", err
	}

	g.resolveLead(ctx, s)
	g.emitTransition(ctx, s.SessionID, ev, "inbound session created as "+string(s.Status))
	return OutcomeCreated, nil
}

// resolveLead is best-effort: a resolver or store failure leaves the session
// unowned rather than failing the webhook.
func (g *Ingestor) resolveLead(ctx context.Context, s Session) {
	if g.resolver == nil {
		return
	}
	res, err := g.resolver.Resolve(ctx, s.CounterpartNumber)
	if err != nil {
		g.log.Warn("lead resolution failed", "session_id", s.SessionID, "err", err)
		return
	}
	if !res.Found {
		return
	}

	err = g.store.AssignLead(ctx, s.SessionID, res.Lead.LeadID, res.Lead.AssignedAgentID)
	if err != nil && !errors.Is(err, ErrLeadAlreadyAssigned) {
		g.log.Warn("lead assignment failed", "session_id", s.SessionID, "lead_id", res.Lead.LeadID, "err", err)
		return
	}
	if g.audits != nil {
		if err := g.audits.LeadResolved(ctx, s.SessionID, res.Lead.LeadID, res.Ambiguous, ""); err != nil {
			g.log.Warn("audit emit failed", "session_id", s.SessionID, "err", err)
		}
	}
}

func (g *Ingestor) deadLetter(ctx context.Context, ev WebhookEvent, cause error) {
	payload := ev.Raw
	if payload == "" {
		if b, err := json.Marshal(ev); err == nil {
			payload = string(b)
		}
	}

	ctx = context.WithoutCancel(ctx)
	if g.rdb != nil {
		if err := utils.PushDeadLetter(ctx, g.rdb, g.cfg.DeadLetterQueue, []byte(payload)); err == nil {
			g.log.Error("webhook event dead-lettered",
				"provider", ev.Provider,
				"correlation_id", ev.CorrelationID,
				"cause", cause,
			)
			return
		}
	}
	// Last resort: the full payload goes to the log so the event is never lost.
	g.log.Error("webhook event dropped after retries, dead-letter unavailable",
		"provider", ev.Provider,
		"correlation_id", ev.CorrelationID,
		"cause", cause,
		"payload", payload,
	)
}

func (g *Ingestor) emitTransition(ctx context.Context, sessionID string, ev WebhookEvent, message string) {
	if g.audits == nil {
		return
	}
	if err := g.audits.SessionTransition(ctx, sessionID, ev.CorrelationID, message, ""); err != nil {
		g.log.Warn("audit emit failed", "session_id", sessionID, "err", err)
	}
}

func (g *Ingestor) emitRejected(ctx context.Context, sessionID string, ev WebhookEvent, message string) {
	if g.audits == nil {
		return
	}
	if err := g.audits.EventRejected(ctx, sessionID, ev.CorrelationID, message, ""); err != nil {
		g.log.Warn("audit emit failed", "correlation_id", ev.CorrelationID, "err", err)
	}
}
