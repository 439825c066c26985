package provider

import (
	"fmt"
	"strings"

	"crm-platform/internal/sessions"

	"github.com/nyaruka/phonenumbers"
)

// normalizeE164 validates raw and returns it in E.164. defaultRegion (ISO
// 3166-1 alpha-2) is used for numbers dialed without a country prefix.
func normalizeE164(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty number: %w", sessions.ErrInvalidAddress)
	}
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("parse %q: %v: %w", raw, err, sessions.ErrInvalidAddress)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("not a valid number %q: %w", raw, sessions.ErrInvalidAddress)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
