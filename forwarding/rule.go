package forwarding

import (
	"encoding/json"
	"fmt"
)

/* Rule routes the events of an endpoint to one destination
 * Lower Priority runs first; ties keep their original order
 */
type Rule struct {
	ID             string  `json:"id" yaml:"id"`
	EndpointID     string  `json:"endpointId" yaml:"-"`
	Name           string  `json:"name,omitempty" yaml:"name"`
	DestinationID  string  `json:"destinationId" yaml:"destination"`
	Priority       int     `json:"priority" yaml:"priority"`
	IsActive       bool    `json:"isActive" yaml:"-"`
	Filters        Filters `json:"filters" yaml:"filters"`
	Transformation string  `json:"transformation,omitempty" yaml:"transformation"`
}

// Filters are the predicates of a rule; zero value matches everything
type Filters struct {
	EventNames   []string              `json:"eventNames,omitempty" yaml:"event_names"`
	Methods      []string              `json:"methods,omitempty" yaml:"methods"`
	PathPatterns []string              `json:"pathPatterns,omitempty" yaml:"path_patterns"`
	Headers      map[string]StringList `json:"headers,omitempty" yaml:"headers"`
	CustomFilter string                `json:"customFilter,omitempty" yaml:"custom_filter"`
}

func (f Filters) IsEmpty() bool {
	return len(f.EventNames) == 0 &&
		len(f.Methods) == 0 &&
		len(f.PathPatterns) == 0 &&
		len(f.Headers) == 0 &&
		f.CustomFilter == ""
}

// StringList accepts either a single string or a list of strings
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}

func (l *StringList) UnmarshalYAML(unmarshal func(any) error) error {
	var one string
	if err := unmarshal(&one); err == nil {
		*l = StringList{one}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}

// FilterResult is the verdict of the filter stage; a rejection is not an error
type FilterResult struct {
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}
