package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"crm-platform/internal/sessions"
)

// VoiceClient places and terminates calls through the voice provider's JSON
// REST API.
//
// Rules (shared with the messaging adapter):
// - No provider API calls outside this package.
// - Request/response types stay provider-local; only sessions.* types leak out.
type VoiceClient struct {
	cfg  VoiceConfig
	http *http.Client
}

type VoiceConfig struct {
	BaseURL string
	APIKey  string

	// StatusCallbackURL is where the provider posts call status webhooks.
	StatusCallbackURL string

	// DefaultRegion for numbers dialed without a country prefix.
	DefaultRegion string

	Timeout time.Duration
}

func NewVoiceClient(cfg VoiceConfig) *VoiceClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DefaultRegion == "" {
		cfg.DefaultRegion = "US"
	}
	return &VoiceClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (v *VoiceClient) Name() string        { return "voice" }
func (v *VoiceClient) Kind() sessions.Kind { return sessions.KindCall }

func (v *VoiceClient) NormalizeAddress(raw string) (string, error) {
	return normalizeE164(raw, v.cfg.DefaultRegion)
}

type voiceCallRequest struct {
	To             string `json:"to"`
	From           string `json:"from"`
	Record         bool   `json:"record,omitempty"`
	StatusCallback string `json:"status_callback,omitempty"`
}

type voiceCallResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (v *VoiceClient) Place(ctx context.Context, req sessions.PlaceRequest) (sessions.PlaceResult, error) {
	body, err := json.Marshal(voiceCallRequest{
		To:             req.To,
		From:           req.From,
		Record:         req.Record,
		StatusCallback: v.cfg.StatusCallbackURL,
	})
	if err != nil {
		return sessions.PlaceResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.BaseURL+"/v1/calls", bytes.NewReader(body))
	if err != nil {
		return sessions.PlaceResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)

	resp, err := v.http.Do(httpReq)
	if err != nil {
		return sessions.PlaceResult{}, v.wrap(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var out voiceCallResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 {
		return sessions.PlaceResult{}, v.statusError(resp.StatusCode, out.Error)
	}
	if out.CallID == "" {
		return sessions.PlaceResult{}, &sessions.ProviderError{
			Provider: v.Name(), Kind: sessions.FailureTransient,
			Reason: "provider accepted the call but returned no call id",
		}
	}
	return sessions.PlaceResult{
		CorrelationID: out.CallID,
		InitialStatus: sessions.StatusRinging,
	}, nil
}

func (v *VoiceClient) Terminate(ctx context.Context, correlationID string) error {
	url := fmt.Sprintf("%s/v1/calls/%s/hangup", v.cfg.BaseURL, correlationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)

	resp, err := v.http.Do(httpReq)
	if err != nil {
		return v.wrap(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 300 {
		return v.statusError(resp.StatusCode, "")
	}
	return nil
}

func (v *VoiceClient) wrap(err error) error {
	kind := sessions.FailureTransient
	reason := "provider unreachable"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "provider timeout"
	}
	return &sessions.ProviderError{Provider: v.Name(), Kind: kind, Reason: reason, Err: err}
}

func (v *VoiceClient) statusError(code int, detail string) error {
	kind := sessions.FailureTransient
	reason := fmt.Sprintf("provider returned HTTP %d", code)
	if code >= 400 && code < 500 {
		kind = sessions.FailurePermanent
	}
	if detail != "" {
		reason = reason + ": " + detail
	}
	return &sessions.ProviderError{Provider: v.Name(), Kind: kind, Reason: reason}
}
