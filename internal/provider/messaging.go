package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crm-platform/internal/sessions"
)

// MessagingClient sends and cancels text messages through the messaging
// provider's form-encoded REST API (Twilio-compatible surface).
type MessagingClient struct {
	cfg  MessagingConfig
	http *http.Client
}

type MessagingConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string

	// StatusCallbackURL is where the provider posts delivery webhooks.
	StatusCallbackURL string

	DefaultRegion string

	Timeout time.Duration
}

func NewMessagingClient(cfg MessagingConfig) *MessagingClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DefaultRegion == "" {
		cfg.DefaultRegion = "US"
	}
	return &MessagingClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (m *MessagingClient) Name() string        { return "messaging" }
func (m *MessagingClient) Kind() sessions.Kind { return sessions.KindMessage }

func (m *MessagingClient) NormalizeAddress(raw string) (string, error) {
	return normalizeE164(raw, m.cfg.DefaultRegion)
}

type messageResponse struct {
	Sid          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (m *MessagingClient) messagesURL(suffix string) string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages%s", m.cfg.BaseURL, m.cfg.AccountSID, suffix)
}

func (m *MessagingClient) Place(ctx context.Context, req sessions.PlaceRequest) (sessions.PlaceResult, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Body", req.Body)
	if m.cfg.StatusCallbackURL != "" {
		form.Set("StatusCallback", m.cfg.StatusCallbackURL)
	}

	out, err := m.post(ctx, m.messagesURL(".json"), form)
	if err != nil {
		return sessions.PlaceResult{}, err
	}
	if out.Sid == "" {
		return sessions.PlaceResult{}, &sessions.ProviderError{
			Provider: m.Name(), Kind: sessions.FailureTransient,
			Reason: "provider accepted the message but returned no sid",
		}
	}
	return sessions.PlaceResult{
		CorrelationID: out.Sid,
		InitialStatus: sessions.StatusSent,
	}, nil
}

// Terminate cancels a not-yet-delivered message. Best-effort, like call
// hangup: the delivery webhook has the final word.
func (m *MessagingClient) Terminate(ctx context.Context, correlationID string) error {
	form := url.Values{}
	form.Set("Status", "canceled")
	_, err := m.post(ctx, m.messagesURL("/"+correlationID+".json"), form)
	return err
}

func (m *MessagingClient) post(ctx context.Context, endpoint string, form url.Values) (messageResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return messageResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(m.cfg.AccountSID, m.cfg.AuthToken)

	resp, err := m.http.Do(httpReq)
	if err != nil {
		kind := sessions.FailureTransient
		reason := "provider unreachable"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "provider timeout"
		}
		return messageResponse{}, &sessions.ProviderError{Provider: m.Name(), Kind: kind, Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var out messageResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 {
		kind := sessions.FailureTransient
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = sessions.FailurePermanent
		}
		reason := fmt.Sprintf("provider returned HTTP %d", resp.StatusCode)
		if out.ErrorMessage != "" {
			reason = reason + ": " + out.ErrorMessage
		}
		return messageResponse{}, &sessions.ProviderError{Provider: m.Name(), Kind: kind, Reason: reason}
	}
	return out, nil
}
