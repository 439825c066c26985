package reporting

import (
	"context"
	"errors"
	"time"

	"crm-platform/internal/sessions"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service aggregates session metrics. Every query is composed with the
// caller's AccessScope; reporting never widens visibility beyond what the
// listing path would return.
type Service struct {
	store sessions.Store
}

func NewService(store sessions.Store) *Service { return &Service{store: store} }

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type SummaryRequest struct {
	Scope sessions.Scope
	Range TimeRange

	// Kind optionally narrows the summary to calls or messages.
	Kind sessions.Kind
}

type SessionsSummary struct {
	TotalSessions int `json:"total_sessions"`
	Inbound       int `json:"inbound"`
	Outbound      int `json:"outbound"`

	ByStatus map[string]int `json:"by_status"`

	// Call metrics.
	TotalCallSeconds       int `json:"total_call_seconds"`
	AverageCallSeconds     int `json:"average_call_seconds"`
	CompletedCalls         int `json:"completed_calls"`
	RecordedCalls          int `json:"recorded_calls"`
	UnansweredOrBusyCalls  int `json:"unanswered_or_busy_calls"`

	// Message metrics.
	DeliveredMessages int `json:"delivered_messages"`
	FailedMessages    int `json:"failed_messages"`
	ReceivedMessages  int `json:"received_messages"`
}

const summaryPageSize = 200

func (s *Service) SessionsSummary(ctx context.Context, req SummaryRequest) (SessionsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SessionsSummary{}, ErrInvalidRequest
	}
	if s.store == nil {
		return SessionsSummary{}, errors.New("reporting: store not configured")
	}

	out := SessionsSummary{ByStatus: map[string]int{}}
	terminalCalls := 0

	for offset := 0; ; offset += summaryPageSize {
		page, err := s.store.List(ctx, sessions.ListFilter{
			Scope:  req.Scope,
			Kind:   req.Kind,
			From:   req.Range.From,
			To:     req.Range.To,
			Limit:  summaryPageSize,
			Offset: offset,
		})
		if err != nil {
			return SessionsSummary{}, err
		}

		for _, sess := range page {
			out.TotalSessions++
			out.ByStatus[string(sess.Status)]++
			if sess.Direction == sessions.DirectionInbound {
				out.Inbound++
			} else {
				out.Outbound++
			}

			switch sess.Kind {
			case sessions.KindCall:
				if sessions.IsTerminal(sess.Kind, sess.Status) {
					terminalCalls++
					out.TotalCallSeconds += sess.DurationSeconds
				}
				if sess.RecordingURL != "" {
					out.RecordedCalls++
				}
				switch sess.Status {
				case sessions.StatusCompleted:
					out.CompletedCalls++
				case sessions.StatusBusy, sessions.StatusNoAnswer:
					out.UnansweredOrBusyCalls++
				}
			case sessions.KindMessage:
				switch sess.Status {
				case sessions.StatusDelivered:
					out.DeliveredMessages++
				case sessions.StatusFailed, sessions.StatusUndelivered:
					out.FailedMessages++
				case sessions.StatusReceived:
					out.ReceivedMessages++
				}
			}
		}

		if len(page) < summaryPageSize {
			break
		}
	}

	if terminalCalls > 0 {
		out.AverageCallSeconds = out.TotalCallSeconds / terminalCalls
	}
	return out, nil
}
