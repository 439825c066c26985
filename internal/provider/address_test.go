package provider

import (
	"errors"
	"testing"

	"crm-platform/internal/sessions"
)

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		raw    string
		region string
		want   string
	}{
		{"+14155552671", "", "+14155552671"},
		{"(415) 555-2671", "US", "+14155552671"},
		{"415-555-2671", "US", "+14155552671"},
		{"+44 20 7946 0958", "", "+442079460958"},
	}
	for _, c := range cases {
		got, err := normalizeE164(c.raw, c.region)
		if err != nil {
			t.Fatalf("normalize %q: %v", c.raw, err)
		}
		if got != c.want {
			t.Fatalf("normalize %q: expected %q, got %q", c.raw, c.want, got)
		}
	}
}

func TestNormalizeE164_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "12345", "not-a-number", "+1999"} {
		_, err := normalizeE164(raw, "US")
		if !errors.Is(err, sessions.ErrInvalidAddress) {
			t.Fatalf("expected invalid address for %q, got %v", raw, err)
		}
	}
}
