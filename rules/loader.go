package rules

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/webhook-relay/forwarding"
	"gopkg.in/yaml.v3"
)

/* Loader reads the forwarding configuration from rules.yaml
 * Endpoints keep the order of the file
 */
type Loader struct {
	endpoints []Endpoint
	byID      map[string]int
}

func NewLoader() *Loader {
	return &Loader{byID: make(map[string]int)}
}

// Load reads, validates and keeps the endpoints of a rules file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading rules file: %w", err)
	}
	return l.Parse(data)
}

// Parse validates a rules document; nothing is kept when any part is invalid
func (l *Loader) Parse(data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing rules YAML: %w", err)
	}

	endpoints := make([]Endpoint, 0, len(file.Endpoints))
	byID := make(map[string]int, len(file.Endpoints))
	for _, ec := range file.Endpoints {
		ep, err := build(ec)
		if err != nil {
			return fmt.Errorf("validating endpoint %q: %w", ec.ID, err)
		}
		if _, dup := byID[ep.ID]; dup {
			return fmt.Errorf("validating endpoint %q: duplicate endpoint id", ep.ID)
		}
		byID[ep.ID] = len(endpoints)
		endpoints = append(endpoints, ep)
	}

	l.endpoints = endpoints
	l.byID = byID
	return nil
}

func build(ec EndpointConfig) (Endpoint, error) {
	if strings.TrimSpace(ec.ID) == "" {
		return Endpoint{}, fmt.Errorf("endpoint id is required")
	}
	ep := Endpoint{ID: ec.ID}

	destinations := make(map[string]forwarding.Destination, len(ec.Destinations))
	for _, dc := range ec.Destinations {
		d := dc.Destination
		d.EndpointID = ec.ID
		d.IsActive = isActive(dc.Active)
		if err := ValidateDestination(d); err != nil {
			return Endpoint{}, err
		}
		if _, dup := destinations[d.ID]; dup {
			return Endpoint{}, fmt.Errorf("duplicate destination id %q", d.ID)
		}
		destinations[d.ID] = d
		ep.Destinations = append(ep.Destinations, d)
	}

	seen := make(map[string]bool, len(ec.Rules))
	for _, rc := range ec.Rules {
		r := rc.Rule
		r.EndpointID = ec.ID
		r.IsActive = isActive(rc.Active)
		for i, m := range r.Filters.Methods {
			r.Filters.Methods[i] = strings.ToUpper(m)
		}
		if err := ValidateRule(r, destinations); err != nil {
			return Endpoint{}, err
		}
		if seen[r.ID] {
			return Endpoint{}, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		ep.Rules = append(ep.Rules, r)
	}
	return ep, nil
}

// Endpoints returns the loaded endpoints in file order
func (l *Loader) Endpoints() []Endpoint {
	out := make([]Endpoint, len(l.endpoints))
	copy(out, l.endpoints)
	return out
}

// Get retrieves an endpoint by its ID
func (l *Loader) Get(endpointID string) (Endpoint, error) {
	i, ok := l.byID[endpointID]
	if !ok {
		return Endpoint{}, fmt.Errorf("endpoint not found: %s", endpointID)
	}
	return l.endpoints[i], nil
}

// Seed saves the destinations of each endpoint before its rules
func (l *Loader) Seed(ctx context.Context, repo forwarding.RuleWriter) error {
	for _, ep := range l.endpoints {
		for _, d := range ep.Destinations {
			if err := repo.SaveDestination(ctx, d); err != nil {
				return fmt.Errorf("seeding endpoint %s: %w", ep.ID, err)
			}
		}
		for _, r := range ep.Rules {
			if err := repo.SaveRule(ctx, r); err != nil {
				return fmt.Errorf("seeding endpoint %s: %w", ep.ID, err)
			}
		}
	}
	return nil
}
