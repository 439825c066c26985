package provider

import (
	"context"
	"net/http"

	"crm-platform/internal/sessions"
	"crm-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// EventSink consumes parsed webhook events. Implemented by sessions.Ingestor.
type EventSink interface {
	Handle(ctx context.Context, ev sessions.WebhookEvent) sessions.Outcome
}

// WebhookHandlers converts provider callbacks to internal events and hands
// them to the ingestor.
//
// Every endpoint answers 200 regardless of the internal outcome: providers
// retry on non-2xx, and a retry storm of events we have already decided to
// drop helps nobody. The outcome is recorded via logs/audit only.
//
// No business logic here.

type WebhookHandlers struct {
	Ingest EventSink
}

func (h WebhookHandlers) ack(c *gin.Context, outcome sessions.Outcome) {
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": string(outcome)})
}

func (h WebhookHandlers) handleParsed(c *gin.Context, ev sessions.WebhookEvent, recognized bool, parseErr error) {
	log := logger.FromGin(c)

	if parseErr != nil {
		log.Warn("webhook parse failed", "path", c.Request.URL.Path, "err", parseErr)
		h.ack(c, sessions.OutcomeRejected)
		return
	}
	if !recognized {
		log.Info("unrecognized webhook event acknowledged", "path", c.Request.URL.Path)
		h.ack(c, sessions.OutcomeIgnored)
		return
	}
	if h.Ingest == nil {
		log.Error("webhook ingestor not configured")
		h.ack(c, sessions.OutcomeRejected)
		return
	}

	outcome := h.Ingest.Handle(c.Request.Context(), ev)
	h.ack(c, outcome)
}

// VoiceStatus handles voice call status callbacks (JSON).
func (h WebhookHandlers) VoiceStatus(c *gin.Context) {
	ev, recognized, err := ParseVoiceEvent(c.Request)
	h.handleParsed(c, ev, recognized, err)
}

// VoiceInbound handles new inbound call notifications (JSON).
func (h WebhookHandlers) VoiceInbound(c *gin.Context) {
	ev, recognized, err := ParseVoiceEvent(c.Request)
	h.handleParsed(c, ev, recognized, err)
}

// MessagingStatus handles message delivery callbacks (form-encoded).
func (h WebhookHandlers) MessagingStatus(c *gin.Context) {
	ev, recognized, err := ParseMessagingStatusEvent(c.Request)
	h.handleParsed(c, ev, recognized, err)
}

// MessagingInbound handles inbound message receipts (form-encoded).
func (h WebhookHandlers) MessagingInbound(c *gin.Context) {
	ev, recognized, err := ParseMessagingInboundEvent(c.Request)
	h.handleParsed(c, ev, recognized, err)
}
