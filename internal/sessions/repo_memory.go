package sessions

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and early development. The
// mutex makes every check-and-write atomic, matching the conditional-update
// semantics of the Postgres store.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Session
	byCorr map[string]string // correlation id -> session id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Session),
		byCorr: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	if s.SessionID == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.SessionID]; ok {
		return ErrInvalidArgument
	}
	if s.ProviderCorrelationID != "" {
		if _, ok := m.byCorr[s.ProviderCorrelationID]; ok {
			return ErrDuplicateCorrelation
		}
		m.byCorr[s.ProviderCorrelationID] = s.SessionID
	}
	cp := s
	m.byID[s.SessionID] = &cp
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *s, nil
}

func (m *MemoryStore) GetByCorrelationID(ctx context.Context, correlationID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCorr[correlationID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *m.byID[id], nil
}

func (m *MemoryStore) SetPlacement(ctx context.Context, sessionID, correlationID string, status Status) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if s.Status != InitialOutboundStatus(s.Kind) {
		return Session{}, ErrIllegalTransition
	}
	if _, taken := m.byCorr[correlationID]; taken {
		return Session{}, ErrDuplicateCorrelation
	}
	s.ProviderCorrelationID = correlationID
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
	m.byCorr[correlationID] = sessionID
	return *s, nil
}

func (m *MemoryStore) MarkFailed(ctx context.Context, sessionID, reason string, at time.Time) (Session, error) {
	return m.ApplyTransition(ctx, sessionID, StatusFailed, TransitionUpdate{FailureReason: reason}, at)
}

func (m *MemoryStore) ApplyTransition(ctx context.Context, sessionID string, target Status, upd TransitionUpdate, at time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if !CanTransition(s.Kind, s.Status, target) {
		return Session{}, ErrIllegalTransition
	}
	s.Status = target
	if IsTerminal(s.Kind, target) {
		term := at
		if upd.TerminatedAt != nil {
			term = *upd.TerminatedAt
		}
		s.TerminatedAt = &term
		if s.Kind == KindCall {
			if upd.DurationSeconds != nil {
				s.DurationSeconds = *upd.DurationSeconds
			} else if !s.InitiatedAt.IsZero() && term.After(s.InitiatedAt) {
				s.DurationSeconds = int(term.Sub(s.InitiatedAt) / time.Second)
			}
		}
	}
	if upd.RecordingURL != "" {
		s.RecordingURL = upd.RecordingURL
	}
	if upd.FailureReason != "" {
		s.FailureReason = upd.FailureReason
	}
	s.UpdatedAt = at
	return *s, nil
}

func (m *MemoryStore) AssignLead(ctx context.Context, sessionID, leadID, ownerUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.LeadID != "" {
		return ErrLeadAlreadyAssigned
	}
	s.LeadID = leadID
	if ownerUserID != "" && s.OwnerUserID == "" {
		s.OwnerUserID = ownerUserID
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ListFilter) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0)
	for _, s := range m.byID {
		if !f.Scope.Allows(*s) {
			continue
		}
		if f.Kind != "" && s.Kind != f.Kind {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.Direction != "" && s.Direction != f.Direction {
			continue
		}
		if f.LeadID != "" && s.LeadID != f.LeadID {
			continue
		}
		if f.CounterpartContains != "" && !strings.Contains(s.CounterpartNumber, f.CounterpartContains) {
			continue
		}
		if !f.From.IsZero() && s.InitiatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !s.InitiatedAt.Before(f.To) {
			continue
		}
		out = append(out, *s)
	}

	// Chronological listing, newest first.
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatedAt.After(out[j].InitiatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Session{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
