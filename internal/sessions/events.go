package sessions

import (
	"fmt"
	"time"
)

// EventName is the closed set of webhook event kinds the engine understands.
// Provider payloads are parsed into one of these at the HTTP boundary;
// anything outside the set is acknowledged and dropped there.
type EventName string

const (
	EventCallRinging   EventName = "call.ringing"
	EventCallAnswered  EventName = "call.answered"
	EventCallCompleted EventName = "call.completed"
	EventCallBusy      EventName = "call.busy"
	EventCallNoAnswer  EventName = "call.no_answer"
	EventCallFailed    EventName = "call.failed"
	EventCallInbound   EventName = "call.inbound"

	EventMessageSent        EventName = "message.sent"
	EventMessageDelivered   EventName = "message.delivered"
	EventMessageUndelivered EventName = "message.undelivered"
	EventMessageFailed      EventName = "message.failed"
	EventMessageInbound     EventName = "message.inbound"
)

// eventTargets maps each event to the session kind it belongs to and the
// status it drives the session toward.
var eventTargets = map[EventName]struct {
	kind   Kind
	status Status
}{
	EventCallRinging:   {KindCall, StatusRinging},
	EventCallAnswered:  {KindCall, StatusInProgress},
	EventCallCompleted: {KindCall, StatusCompleted},
	EventCallBusy:      {KindCall, StatusBusy},
	EventCallNoAnswer:  {KindCall, StatusNoAnswer},
	EventCallFailed:    {KindCall, StatusFailed},
	EventCallInbound:   {KindCall, StatusRinging},

	EventMessageSent:        {KindMessage, StatusSent},
	EventMessageDelivered:   {KindMessage, StatusDelivered},
	EventMessageUndelivered: {KindMessage, StatusUndelivered},
	EventMessageFailed:      {KindMessage, StatusFailed},
	EventMessageInbound:     {KindMessage, StatusReceived},
}

// WebhookEvent is the normalized form of one provider callback, produced by
// the per-provider parsers in internal/provider.
type WebhookEvent struct {
	Provider string
	Name     EventName

	// CorrelationID is the provider's identifier for the session.
	CorrelationID string

	// From and To are E.164 where the provider supplies them.
	From string
	To   string

	// DurationSeconds is the provider-reported call duration, when present
	// on a terminal call event. Preferred over the locally computed value.
	DurationSeconds *int

	RecordingURL  string
	FailureReason string

	// Body is the inbound message text.
	Body string

	OccurredAt time.Time

	// Raw is the original payload, kept for the dead-letter record.
	Raw string
}

// Kind returns the session kind the event applies to.
func (e WebhookEvent) Kind() Kind { return eventTargets[e.Name].kind }

// TargetStatus returns the status the event drives the session toward.
func (e WebhookEvent) TargetStatus() Status { return eventTargets[e.Name].status }

// NewInbound reports whether the event may create a brand-new inbound
// session when no matching record exists.
func (e WebhookEvent) NewInbound() bool {
	return e.Name == EventCallInbound || e.Name == EventMessageInbound
}

// Validate checks structural validity; parsers guarantee the event name,
// this guards the rest.
func (e WebhookEvent) Validate() error {
	if _, ok := eventTargets[e.Name]; !ok {
		return fmt.Errorf("unknown event %q: %w", e.Name, ErrInvalidArgument)
	}
	if e.CorrelationID == "" {
		return fmt.Errorf("missing correlation id: %w", ErrInvalidArgument)
	}
	return nil
}
