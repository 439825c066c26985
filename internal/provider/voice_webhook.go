package provider

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"crm-platform/internal/sessions"
)

// voiceEventPayload is the voice provider's webhook body (JSON). Keep it
// minimal and adapter-only; the closed sessions.EventName set is the only
// thing that travels downstream.
type voiceEventPayload struct {
	Event        string `json:"event"`
	CallID       string `json:"call_id"`
	From         string `json:"from"`
	To           string `json:"to"`
	Duration     *int   `json:"duration,omitempty"`
	RecordingURL string `json:"recording_url,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

var voiceEventNames = map[string]sessions.EventName{
	"call.ringing":   sessions.EventCallRinging,
	"call.answered":  sessions.EventCallAnswered,
	"call.completed": sessions.EventCallCompleted,
	"call.busy":      sessions.EventCallBusy,
	"call.no-answer": sessions.EventCallNoAnswer,
	"call.failed":    sessions.EventCallFailed,
	"call.inbound":   sessions.EventCallInbound,
}

// ParseVoiceEvent decodes a voice webhook into the closed event set.
// recognized=false means a structurally valid payload of an event kind we do
// not handle; the caller acknowledges and drops it.
func ParseVoiceEvent(r *http.Request) (ev sessions.WebhookEvent, recognized bool, err error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return sessions.WebhookEvent{}, false, err
	}

	var p voiceEventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return sessions.WebhookEvent{}, false, err
	}

	name, ok := voiceEventNames[p.Event]
	if !ok {
		return sessions.WebhookEvent{}, false, nil
	}

	var occurredAt time.Time
	if p.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			occurredAt = t.UTC()
		}
	}

	return sessions.WebhookEvent{
		Provider:        "voice",
		Name:            name,
		CorrelationID:   p.CallID,
		From:            p.From,
		To:              p.To,
		DurationSeconds: p.Duration,
		RecordingURL:    p.RecordingURL,
		FailureReason:   p.Reason,
		OccurredAt:      occurredAt,
		Raw:             string(raw),
	}, true, nil
}
