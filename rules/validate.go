package rules

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/forwarding/filter"
	"github.com/marcelsud/webhook-relay/signature"
)

// ValidateDestination checks a destination before anything is sent to it
func ValidateDestination(d forwarding.Destination) error {
	if d.ID == "" {
		return fmt.Errorf("destination id is required")
	}
	if err := d.Type.Validate(); err != nil {
		return fmt.Errorf("destination %s: %w", d.ID, err)
	}

	switch d.Type {
	case forwarding.Email:
		if len(d.Config.Recipients) == 0 {
			return fmt.Errorf("destination %s: email requires at least one recipient", d.ID)
		}
	default:
		if err := validateURL(d.Config.URL); err != nil {
			return fmt.Errorf("destination %s: %w", d.ID, err)
		}
	}

	if d.Config.Auth != nil {
		if d.Type != forwarding.Webhook {
			return fmt.Errorf("destination %s: auth is only supported by webhook destinations", d.ID)
		}
		if err := d.Config.Auth.Validate(); err != nil {
			return fmt.Errorf("destination %s: invalid auth configuration: %w", d.ID, err)
		}
	}
	if d.Config.SigningSecret != "" {
		if _, err := signature.ParseSecret(d.Config.SigningSecret); err != nil {
			return fmt.Errorf("destination %s: invalid signing secret: %w", d.ID, err)
		}
	}
	return nil
}

// ValidateRule checks a rule against the destinations of its endpoint
func ValidateRule(r forwarding.Rule, destinations map[string]forwarding.Destination) error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.DestinationID == "" {
		return fmt.Errorf("rule %s: destination is required", r.ID)
	}
	if _, ok := destinations[r.DestinationID]; !ok {
		return fmt.Errorf("rule %s: unknown destination %q", r.ID, r.DestinationID)
	}
	if r.Priority < 0 {
		return fmt.Errorf("rule %s: priority must not be negative", r.ID)
	}
	for _, p := range r.Filters.PathPatterns {
		if _, err := filter.CompilePattern(p); err != nil {
			return fmt.Errorf("rule %s: invalid path pattern %q: %w", r.ID, p, err)
		}
	}
	for name := range r.Filters.Headers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("rule %s: header filter with empty name", r.ID)
		}
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) url: %s", raw)
	}
	return nil
}
