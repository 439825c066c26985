package provider

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm-platform/internal/sessions"
)

func TestParseVoiceEvent_Completed(t *testing.T) {
	body := strings.NewReader(`{
		"event": "call.completed",
		"call_id": "CA123",
		"from": "+15551234567",
		"to": "+15557654321",
		"duration": 42,
		"recording_url": "https://cdn.example.com/rec/CA123.mp3",
		"timestamp": "2026-08-30T12:00:00Z"
	}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status", body)
	r.Header.Set("Content-Type", "application/json")

	ev, recognized, err := ParseVoiceEvent(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !recognized {
		t.Fatalf("expected recognized event")
	}
	if ev.Name != sessions.EventCallCompleted || ev.CorrelationID != "CA123" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.DurationSeconds == nil || *ev.DurationSeconds != 42 {
		t.Fatalf("expected duration 42")
	}
	if ev.RecordingURL == "" {
		t.Fatalf("expected recording url")
	}
	want := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if !ev.OccurredAt.Equal(want) {
		t.Fatalf("expected timestamp %v, got %v", want, ev.OccurredAt)
	}
	if ev.Raw == "" {
		t.Fatalf("expected raw payload retained")
	}
}

func TestParseVoiceEvent_NoAnswerHyphenMapped(t *testing.T) {
	body := strings.NewReader(`{"event":"call.no-answer","call_id":"CA124"}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status", body)

	ev, recognized, err := ParseVoiceEvent(r)
	if err != nil || !recognized {
		t.Fatalf("parse: recognized=%v err=%v", recognized, err)
	}
	if ev.Name != sessions.EventCallNoAnswer {
		t.Fatalf("expected no_answer event, got %s", ev.Name)
	}
}

func TestParseVoiceEvent_UnknownEventUnrecognized(t *testing.T) {
	body := strings.NewReader(`{"event":"call.transcription-ready","call_id":"CA125"}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status", body)

	_, recognized, err := ParseVoiceEvent(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if recognized {
		t.Fatalf("expected unrecognized event")
	}
}

func TestParseVoiceEvent_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status", strings.NewReader("{not json"))
	if _, _, err := ParseVoiceEvent(r); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseVoiceEvent_BadTimestampTolerated(t *testing.T) {
	body := strings.NewReader(`{"event":"call.ringing","call_id":"CA126","timestamp":"yesterday"}`)
	r := httptest.NewRequest(http.MethodPost, "/webhooks/voice/status", body)

	ev, recognized, err := ParseVoiceEvent(r)
	if err != nil || !recognized {
		t.Fatalf("parse: recognized=%v err=%v", recognized, err)
	}
	if !ev.OccurredAt.IsZero() {
		t.Fatalf("bad timestamp must be dropped, got %v", ev.OccurredAt)
	}
}
