package forwarding

import (
	"encoding/json"
	"fmt"
)

type DestinationType string

const (
	Webhook DestinationType = "webhook"
	Slack   DestinationType = "slack"
	Discord DestinationType = "discord"
	Teams   DestinationType = "teams"
	Email   DestinationType = "email"
)

func (t DestinationType) Validate() error {
	switch t {
	case Webhook, Slack, Discord, Teams, Email:
		return nil
	}
	return fmt.Errorf("invalid destination type: %q", string(t))
}

type Destination struct {
	ID         string            `json:"id" yaml:"id"`
	EndpointID string            `json:"endpointId" yaml:"-"`
	Name       string            `json:"name,omitempty" yaml:"name"`
	Type       DestinationType   `json:"type" yaml:"type"`
	Config     DestinationConfig `json:"config" yaml:"config"`
	IsActive   bool              `json:"isActive" yaml:"-"`
}

// DestinationConfig holds the fields of every destination type; each sender reads its own
type DestinationConfig struct {
	URL           string            `json:"url,omitempty" yaml:"url"`
	Channel       string            `json:"channel,omitempty" yaml:"channel"`
	Username      string            `json:"username,omitempty" yaml:"username"`
	IconEmoji     string            `json:"iconEmoji,omitempty" yaml:"icon_emoji"`
	AvatarURL     string            `json:"avatarUrl,omitempty" yaml:"avatar_url"`
	Headers       map[string]string `json:"headers,omitempty" yaml:"headers"`
	Auth          *Auth             `json:"auth,omitempty" yaml:"auth"`
	SigningSecret string            `json:"signingSecret,omitempty" yaml:"signing_secret"`
	Recipients    []string          `json:"recipients,omitempty" yaml:"recipients"`
}

type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api_key"
)

type Auth struct {
	Type       AuthType `json:"type" yaml:"type"`
	Token      string   `json:"token,omitempty" yaml:"token"`
	Username   string   `json:"username,omitempty" yaml:"username"`
	Password   string   `json:"password,omitempty" yaml:"password"`
	APIKey     string   `json:"apiKey,omitempty" yaml:"api_key"`
	HeaderName string   `json:"headerName,omitempty" yaml:"header_name"`
}

func (a Auth) Validate() error {
	switch a.Type {
	case AuthBearer:
		if a.Token == "" {
			return fmt.Errorf("bearer auth requires a token")
		}
	case AuthBasic:
		if a.Username == "" {
			return fmt.Errorf("basic auth requires a username")
		}
	case AuthAPIKey:
		if a.APIKey == "" || a.HeaderName == "" {
			return fmt.Errorf("api_key auth requires api_key and header_name")
		}
	default:
		return fmt.Errorf("invalid auth type: %q", string(a.Type))
	}
	return nil
}

// DestinationResponse is what a destination answered
type DestinationResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	// Partial is set when the body could not be read to the end
	Partial bool `json:"partial,omitempty"`
}

// DispatchResult is the outcome of one dispatch; senders never return errors
type DispatchResult struct {
	Success  bool                 `json:"success"`
	Response *DestinationResponse `json:"response,omitempty"`
	Error    string               `json:"error,omitempty"`
}
