package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"crm-platform/internal/audit"
)

type fakeAdapter struct {
	kind         Kind
	placeFn      func(ctx context.Context, req PlaceRequest) (PlaceResult, error)
	normalizeErr error
	terminated   []string
}

func (f *fakeAdapter) Name() string { return "fake" }
func (f *fakeAdapter) Kind() Kind   { return f.kind }

func (f *fakeAdapter) Place(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	return f.placeFn(ctx, req)
}

func (f *fakeAdapter) Terminate(ctx context.Context, correlationID string) error {
	f.terminated = append(f.terminated, correlationID)
	return nil
}

func (f *fakeAdapter) NormalizeAddress(raw string) (string, error) {
	if f.normalizeErr != nil {
		return "", f.normalizeErr
	}
	return raw, nil
}

func newTestInitiator(store Store, adapter *fakeAdapter, cfg InitiatorConfig) *Initiator {
	if cfg.Origins == nil {
		cfg.Origins = map[Kind]string{
			KindCall:    "+15551230000",
			KindMessage: "+15551230001",
		}
	}
	return NewInitiator(store, map[Kind]Adapter{adapter.kind: adapter}, audit.NewService(audit.NewMemoryRepo()), nil, slog.Default(), cfg)
}

func allSessions(t *testing.T, store Store) []Session {
	t.Helper()
	out, err := store.List(context.Background(), ListFilter{Scope: Scope{All: true}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return out
}

func TestInitiate_CallAccepted(t *testing.T) {
	store := NewMemoryStore()
	adapter := &fakeAdapter{
		kind: KindCall,
		placeFn: func(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
			if req.To != "+15557654321" || req.From != "+15551230000" {
				return PlaceResult{}, fmt.Errorf("unexpected numbers %q %q", req.To, req.From)
			}
			return PlaceResult{CorrelationID: "CA1", InitialStatus: StatusRinging}, nil
		},
	}
	i := newTestInitiator(store, adapter, InitiatorConfig{})

	s, err := i.Initiate(context.Background(), InitiateRequest{
		Kind:              KindCall,
		OwnerUserID:       "agent-1",
		OwnerRole:         "agent",
		CounterpartNumber: "+15557654321",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if s.Status != StatusRinging {
		t.Fatalf("expected ringing, got %s", s.Status)
	}
	if s.ProviderCorrelationID != "CA1" {
		t.Fatalf("expected correlation id recorded")
	}
	if s.OwnerUserID != "agent-1" || s.Direction != DirectionOutbound {
		t.Fatalf("unexpected session: %+v", s)
	}

	stored, err := store.GetByCorrelationID(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status == StatusPending {
		t.Fatalf("session left in initial status")
	}
}

func TestInitiate_MessageDefaultsToSent(t *testing.T) {
	store := NewMemoryStore()
	adapter := &fakeAdapter{
		kind: KindMessage,
		placeFn: func(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
			return PlaceResult{CorrelationID: "SM1"}, nil
		},
	}
	i := newTestInitiator(store, adapter, InitiatorConfig{})

	s, err := i.Initiate(context.Background(), InitiateRequest{
		Kind:              KindMessage,
		OwnerUserID:       "agent-1",
		CounterpartNumber: "+15557654321",
		Body:              "hello",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if s.Status != StatusSent {
		t.Fatalf("expected sent, got %s", s.Status)
	}
	if s.Content != "hello" {
		t.Fatalf("expected body persisted")
	}
}

func TestInitiate_ProviderRejectionMarksFailed(t *testing.T) {
	store := NewMemoryStore()
	adapter := &fakeAdapter{
		kind: KindCall,
		placeFn: func(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
			return PlaceResult{}, &ProviderError{Provider: "fake", Kind: FailurePermanent, Reason: "destination blacklisted"}
		},
	}
	i := newTestInitiator(store, adapter, InitiatorConfig{})

	s, err := i.Initiate(context.Background(), InitiateRequest{
		Kind:              KindCall,
		OwnerUserID:       "agent-1",
		CounterpartNumber: "+15557654321",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if FailureKindOf(err) != FailurePermanent {
		t.Fatalf("expected permanent failure")
	}
	if s.Status != StatusFailed || s.FailureReason != "destination blacklisted" {
		t.Fatalf("unexpected failed session: %+v", s)
	}

	stored := allSessions(t, store)
	if len(stored) != 1 || stored[0].Status != StatusFailed {
		t.Fatalf("store left inconsistent: %+v", stored)
	}
}

func TestInitiate_TimeoutMarksFailed(t *testing.T) {
	store := NewMemoryStore()
	adapter := &fakeAdapter{
		kind: KindCall,
		placeFn: func(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
			<-ctx.Done()
			return PlaceResult{}, ctx.Err()
		},
	}
	i := newTestInitiator(store, adapter, InitiatorConfig{PlaceTimeout: 10 * time.Millisecond})

	s, err := i.Initiate(context.Background(), InitiateRequest{
		Kind:              KindCall,
		OwnerUserID:       "agent-1",
		CounterpartNumber: "+15557654321",
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if s.Status != StatusFailed || s.FailureReason != "provider timeout" {
		t.Fatalf("unexpected session after timeout: %+v", s)
	}
}

func TestInitiate_InvalidAddressRejectedBeforeProvider(t *testing.T) {
	store := NewMemoryStore()
	adapter := &fakeAdapter{
		kind:         KindCall,
		normalizeErr: fmt.Errorf("not a number: %w", ErrInvalidAddress),
		placeFn: func(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
			panic("provider must not be called")
		},
	}
	i := newTestInitiator(store, adapter, InitiatorConfig{})

	_, err := i.Initiate(context.Background(), InitiateRequest{
		Kind:              KindCall,
		OwnerUserID:       "agent-1",
		CounterpartNumber: "bogus",
	})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if got := allSessions(t, store); len(got) != 0 {
		t.Fatalf("no session may be created for an invalid address, got %d", len(got))
	}
}

func TestInitiate_MessageRequiresBody(t *testing.T) {
	store := NewMemoryStore()
	adapter := &fakeAdapter{kind: KindMessage, placeFn: func(context.Context, PlaceRequest) (PlaceResult, error) {
		return PlaceResult{CorrelationID: "SM1"}, nil
	}}
	i := newTestInitiator(store, adapter, InitiatorConfig{})

	_, err := i.Initiate(context.Background(), InitiateRequest{
		Kind:              KindMessage,
		OwnerUserID:       "agent-1",
		CounterpartNumber: "+15557654321",
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestTerminate_LiveSessionReachesProvider(t *testing.T) {
	store := NewMemoryStore()
	adapter := &fakeAdapter{kind: KindCall, placeFn: func(context.Context, PlaceRequest) (PlaceResult, error) {
		return PlaceResult{CorrelationID: "CA9", InitialStatus: StatusRinging}, nil
	}}
	i := newTestInitiator(store, adapter, InitiatorConfig{})

	s, err := i.Initiate(context.Background(), InitiateRequest{
		Kind:              KindCall,
		OwnerUserID:       "agent-1",
		CounterpartNumber: "+15557654321",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	got, err := i.Terminate(context.Background(), s.SessionID, "agent-1", "agent")
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	// Termination does not finalize locally; the webhook does.
	if IsTerminal(got.Kind, got.Status) {
		t.Fatalf("terminate must not finalize the session, got %s", got.Status)
	}
	if len(adapter.terminated) != 1 || adapter.terminated[0] != "CA9" {
		t.Fatalf("expected provider terminate call, got %v", adapter.terminated)
	}
}

func TestTerminate_TerminalSessionIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	adapter := &fakeAdapter{kind: KindCall}
	i := newTestInitiator(store, adapter, InitiatorConfig{})

	start := time.Unix(1700000000, 0).UTC()
	s := seedOutboundCall(t, store, "CA10", StatusRinging, start)
	if _, err := store.ApplyTransition(context.Background(), s.SessionID, StatusCompleted, TransitionUpdate{}, start.Add(time.Minute)); err != nil {
		t.Fatalf("seed transition: %v", err)
	}

	got, err := i.Terminate(context.Background(), s.SessionID, "agent-1", "agent")
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if len(adapter.terminated) != 0 {
		t.Fatalf("terminal session must not reach the provider")
	}
}
