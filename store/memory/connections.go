package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-relay/connection"
)

// ConnectionRepository implements connection.Repository
type ConnectionRepository struct {
	s *Store
}

func (r *ConnectionRepository) Insert(ctx context.Context, c connection.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.connections[c.ID]; ok {
		return fmt.Errorf("connection %s already exists", c.ID)
	}
	r.s.connections[c.ID] = c
	return nil
}

func (r *ConnectionRepository) Ping(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.connections[id]
	if !ok {
		return fmt.Errorf("connection %s not found", id)
	}
	c.LastPingAt = at
	r.s.connections[id] = c
	return nil
}

// Disconnect keeps the first disconnection time
func (r *ConnectionRepository) Disconnect(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.connections[id]
	if !ok {
		return fmt.Errorf("connection %s not found", id)
	}
	if c.DisconnectedAt == nil {
		c.DisconnectedAt = &at
		r.s.connections[id] = c
	}
	return nil
}

func (r *ConnectionRepository) DisconnectOpen(ctx context.Context, endpointID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, c := range r.s.connections {
		if c.EndpointID == endpointID && c.IsOpen() {
			c.DisconnectedAt = &at
			r.s.connections[id] = c
		}
	}
	return nil
}

func (r *ConnectionRepository) SetEndpointStatus(ctx context.Context, endpointID string, status connection.EndpointStatus, at time.Time) error {
	if err := status.Validate(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ep := r.s.endpoints[endpointID]
	ep.ID = endpointID
	ep.Status = status
	ep.UpdatedAt = at
	if status == connection.Active {
		ep.LastConnectionAt = &at
	}
	r.s.endpoints[endpointID] = ep
	return nil
}

func (r *ConnectionRepository) RefreshEndpoint(ctx context.Context, endpointID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ep := r.s.endpoints[endpointID]
	ep.ID = endpointID
	ep.Status = connection.Active
	ep.UpdatedAt = at
	r.s.endpoints[endpointID] = ep
	return nil
}

func (r *ConnectionRepository) GetOpen(ctx context.Context, endpointID string) (*connection.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var open *connection.Connection
	for _, c := range r.s.connections {
		if c.EndpointID == endpointID && c.IsOpen() {
			if open == nil || c.ConnectedAt.After(open.ConnectedAt) {
				c := c
				open = &c
			}
		}
	}
	return open, nil
}

func (r *ConnectionRepository) GetEndpoint(ctx context.Context, endpointID string) (connection.Endpoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ep, ok := r.s.endpoints[endpointID]
	if !ok {
		return connection.Endpoint{}, fmt.Errorf("%w: %s", connection.ErrEndpointNotFound, endpointID)
	}
	return ep, nil
}
