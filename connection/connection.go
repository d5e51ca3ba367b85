package connection

import (
	"fmt"
	"strings"
	"time"
)

/* Connection is the durable record of one relay session for an endpoint
 * At most one connection per endpoint is open (DisconnectedAt nil) at a time
 * DisconnectedAt is written exactly once, when the session stops
 */
type Connection struct {
	ID             string     `json:"id"`
	EndpointID     string     `json:"endpointId"`
	ClientID       string     `json:"clientId"`
	IPAddress      string     `json:"ipAddress,omitempty"`
	ConnectedAt    time.Time  `json:"connectedAt"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
	LastPingAt     time.Time  `json:"lastPingAt"`
}

// IsOpen reports whether the connection has not been disconnected yet
func (c Connection) IsOpen() bool {
	return c.DisconnectedAt == nil
}

// Endpoint is the presence of an endpoint's relay as seen by the dashboard
type Endpoint struct {
	ID               string         `json:"id"`
	Status           EndpointStatus `json:"status"`
	LastConnectionAt *time.Time     `json:"lastConnectionAt,omitempty"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

type EndpointStatus int

const (
	Active EndpointStatus = iota + 1
	Inactive
)

func (s EndpointStatus) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	}
	return "unknown"
}

func NewEndpointStatus(s string) EndpointStatus {
	switch s {
	case "active":
		return Active
	case "inactive":
		return Inactive
	}
	return EndpointStatus(0)
}

func (s EndpointStatus) Validate() error {
	switch s {
	case Active, Inactive:
		return nil
	}
	return fmt.Errorf("invalid endpoint status: %d", s)
}

func (s EndpointStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *EndpointStatus) UnmarshalJSON(data []byte) error {
	*s = NewEndpointStatus(strings.Trim(string(data), `"`))
	return nil
}
