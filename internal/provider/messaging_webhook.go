package provider

import (
	"net/http"

	"crm-platform/internal/sessions"
)

// The messaging provider posts application/x-www-form-urlencoded webhooks:
// delivery status callbacks and inbound message receipts are separate
// endpoints with separate field sets.

var messagingStatusNames = map[string]sessions.EventName{
	"sent":        sessions.EventMessageSent,
	"delivered":   sessions.EventMessageDelivered,
	"undelivered": sessions.EventMessageUndelivered,
	"failed":      sessions.EventMessageFailed,
	// "queued", "sending" and "accepted" precede our recorded initial
	// status and carry no transition; they fall through as unrecognized.
}

// ParseMessagingStatusEvent decodes a delivery status callback.
func ParseMessagingStatusEvent(r *http.Request) (ev sessions.WebhookEvent, recognized bool, err error) {
	if err := r.ParseForm(); err != nil {
		return sessions.WebhookEvent{}, false, err
	}

	status := r.PostFormValue("MessageStatus")
	name, ok := messagingStatusNames[status]
	if !ok {
		return sessions.WebhookEvent{}, false, nil
	}

	return sessions.WebhookEvent{
		Provider:      "messaging",
		Name:          name,
		CorrelationID: r.PostFormValue("MessageSid"),
		From:          r.PostFormValue("From"),
		To:            r.PostFormValue("To"),
		FailureReason: r.PostFormValue("ErrorMessage"),
		Raw:           r.PostForm.Encode(),
	}, true, nil
}

// ParseMessagingInboundEvent decodes an inbound message receipt.
func ParseMessagingInboundEvent(r *http.Request) (ev sessions.WebhookEvent, recognized bool, err error) {
	if err := r.ParseForm(); err != nil {
		return sessions.WebhookEvent{}, false, err
	}

	sid := r.PostFormValue("MessageSid")
	if sid == "" {
		sid = r.PostFormValue("SmsSid")
	}

	return sessions.WebhookEvent{
		Provider:      "messaging",
		Name:          sessions.EventMessageInbound,
		CorrelationID: sid,
		From:          r.PostFormValue("From"),
		To:            r.PostFormValue("To"),
		Body:          r.PostFormValue("Body"),
		Raw:           r.PostForm.Encode(),
	}, true, nil
}
