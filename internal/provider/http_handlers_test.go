package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crm-platform/internal/sessions"

	"github.com/gin-gonic/gin"
)

type sinkFunc func(ctx context.Context, ev sessions.WebhookEvent) sessions.Outcome

func (f sinkFunc) Handle(ctx context.Context, ev sessions.WebhookEvent) sessions.Outcome {
	return f(ctx, ev)
}

func webhookRouter(sink EventSink) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := WebhookHandlers{Ingest: sink}
	r.POST("/webhooks/voice/status", h.VoiceStatus)
	r.POST("/webhooks/messaging/status", h.MessagingStatus)
	r.POST("/webhooks/messaging/inbound", h.MessagingInbound)
	return r
}

func ackOutcome(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Received bool   `json:"received"`
		Outcome  string `json:"outcome"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !resp.Received {
		t.Fatalf("expected received=true")
	}
	return resp.Outcome
}

func TestWebhook_VoiceStatusDeliveredToSink(t *testing.T) {
	var got sessions.WebhookEvent
	r := webhookRouter(sinkFunc(func(_ context.Context, ev sessions.WebhookEvent) sessions.Outcome {
		got = ev
		return sessions.OutcomeApplied
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status",
		strings.NewReader(`{"event":"call.completed","call_id":"CA1","duration":10}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if out := ackOutcome(t, w); out != string(sessions.OutcomeApplied) {
		t.Fatalf("expected applied ack, got %s", out)
	}
	if got.Name != sessions.EventCallCompleted || got.CorrelationID != "CA1" {
		t.Fatalf("sink received wrong event: %+v", got)
	}
}

func TestWebhook_MalformedPayloadStillAcked(t *testing.T) {
	called := false
	r := webhookRouter(sinkFunc(func(context.Context, sessions.WebhookEvent) sessions.Outcome {
		called = true
		return sessions.OutcomeApplied
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status", strings.NewReader("garbage"))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("malformed payload must still be acked 200, got %d", w.Code)
	}
	if out := ackOutcome(t, w); out != string(sessions.OutcomeRejected) {
		t.Fatalf("expected rejected ack, got %s", out)
	}
	if called {
		t.Fatalf("unparseable payload must not reach the ingestor")
	}
}

func TestWebhook_UnrecognizedStatusAckedAsIgnored(t *testing.T) {
	r := webhookRouter(sinkFunc(func(context.Context, sessions.WebhookEvent) sessions.Outcome {
		t.Fatalf("unrecognized event must not reach the ingestor")
		return sessions.OutcomeRejected
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/messaging/status",
		strings.NewReader("MessageSid=SM1&MessageStatus=queued"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if out := ackOutcome(t, w); out != string(sessions.OutcomeIgnored) {
		t.Fatalf("expected ignored ack, got %s", out)
	}
}

func TestWebhook_InboundMessageAckedWithOutcome(t *testing.T) {
	r := webhookRouter(sinkFunc(func(_ context.Context, ev sessions.WebhookEvent) sessions.Outcome {
		if ev.Name != sessions.EventMessageInbound {
			t.Fatalf("expected inbound event, got %s", ev.Name)
		}
		return sessions.OutcomeCreated
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/messaging/inbound",
		strings.NewReader("MessageSid=SM2&From=%2B15557654321&Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	if out := ackOutcome(t, w); out != string(sessions.OutcomeCreated) {
		t.Fatalf("expected created ack, got %s", out)
	}
}
