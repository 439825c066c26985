package sessions

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidAddress marks a malformed destination number, rejected before
// any provider call is made.
var ErrInvalidAddress = errors.New("sessions: invalid address")

// FailureKind classifies provider-call failures.
type FailureKind string

const (
	// FailureTransient covers network errors and timeouts; the caller may
	// retry the outbound attempt.
	FailureTransient FailureKind = "transient"
	// FailurePermanent covers invalid destinations, auth failures and
	// provider-side rejections; retrying will not help.
	FailurePermanent FailureKind = "permanent"
)

// ProviderError is the explicit failure result of a provider call.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Reason   string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider %s failure: %s: %v", e.Provider, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s provider %s failure: %s", e.Provider, e.Kind, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// FailureKindOf extracts the classification from err, defaulting to
// transient for anything unclassified (unknown failures are retryable).
func FailureKindOf(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return FailureTransient
}

// PlaceRequest is the provider-agnostic outbound placement request.
type PlaceRequest struct {
	// To and From are E.164.
	To   string
	From string

	// Body is the message text (messages only).
	Body string

	// Record requests call recording (calls only).
	Record bool

	Metadata map[string]string
}

// PlaceResult is the synchronous provider acceptance of an outbound session.
type PlaceResult struct {
	CorrelationID string
	InitialStatus Status
}

// Adapter is the single provider contract, implemented once per provider
// family (voice, messaging). Implementations wrap the provider's REST API;
// no provider-specific types may leak out of them.
type Adapter interface {
	Name() string
	Kind() Kind

	Place(ctx context.Context, req PlaceRequest) (PlaceResult, error)

	// Terminate requests a hangup/cancel at the provider. Best-effort: the
	// acknowledgment does not finalize the session, the confirming webhook does.
	Terminate(ctx context.Context, correlationID string) error

	// NormalizeAddress validates raw and returns it in E.164, or an error
	// wrapping ErrInvalidAddress.
	NormalizeAddress(raw string) (string, error)
}
