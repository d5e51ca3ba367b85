package connection

import (
	"context"
	"errors"
	"time"
)

var ErrEndpointNotFound = errors.New("endpoint not found")

// Reader provides read operations for connections
type Reader interface {
	// GetOpen returns the open connection of an endpoint, or nil when there is none
	GetOpen(ctx context.Context, endpointID string) (*Connection, error)
	// GetEndpoint returns ErrEndpointNotFound for endpoints that never had a relay
	GetEndpoint(ctx context.Context, endpointID string) (Endpoint, error)
}

// Writer provides write operations for connections and endpoint presence
type Writer interface {
	Insert(ctx context.Context, c Connection) error
	Ping(ctx context.Context, id string, at time.Time) error
	Disconnect(ctx context.Context, id string, at time.Time) error
	// DisconnectOpen closes every open connection of the endpoint
	DisconnectOpen(ctx context.Context, endpointID string, at time.Time) error
	// SetEndpointStatus records presence; Active also moves LastConnectionAt to at
	SetEndpointStatus(ctx context.Context, endpointID string, status EndpointStatus, at time.Time) error
	// RefreshEndpoint keeps an endpoint active without touching LastConnectionAt
	RefreshEndpoint(ctx context.Context, endpointID string, at time.Time) error
}

type Repository interface {
	Reader
	Writer
}
