package rules

import (
	"github.com/marcelsud/webhook-relay/forwarding"
)

// File represents the structure of rules.yaml
type File struct {
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig is one endpoint with the destinations and rules it forwards to
type EndpointConfig struct {
	ID           string              `yaml:"id"`
	Destinations []DestinationConfig `yaml:"destinations"`
	Rules        []RuleConfig        `yaml:"rules"`
}

// DestinationConfig is active unless the file says otherwise
type DestinationConfig struct {
	forwarding.Destination `yaml:",inline"`
	Active                 *bool `yaml:"active"`
}

// RuleConfig is active unless the file says otherwise
type RuleConfig struct {
	forwarding.Rule `yaml:",inline"`
	Active          *bool `yaml:"active"`
}

// Endpoint holds the validated configuration of one endpoint
type Endpoint struct {
	ID           string
	Destinations []forwarding.Destination
	Rules        []forwarding.Rule
}

func isActive(flag *bool) bool {
	return flag == nil || *flag
}
