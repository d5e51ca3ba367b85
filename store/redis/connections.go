package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-relay/connection"
	"github.com/redis/go-redis/v9"
)

/* ConnectionRepository implements connection.Repository
 * Each open connection also owns a heartbeat key with a TTL; a relay that dies
 * without disconnecting drops out of the live count once the key expires
 */
type ConnectionRepository struct {
	client *redis.Client
}

func (r *ConnectionRepository) Insert(ctx context.Context, c connection.Connection) error {
	key := connectionKey(c.ID)
	created, err := r.client.HSetNX(ctx, key, "id", c.ID).Result()
	if err != nil {
		return fmt.Errorf("storing connection: %w", err)
	}
	if !created {
		return fmt.Errorf("connection %s already exists", c.ID)
	}

	fields := map[string]interface{}{
		"endpoint_id":  c.EndpointID,
		"client_id":    c.ClientID,
		"ip_address":   c.IPAddress,
		"connected_at": c.ConnectedAt.UnixMilli(),
		"last_ping_at": c.LastPingAt.UnixMilli(),
	}
	if c.DisconnectedAt != nil {
		fields["disconnected_at"] = c.DisconnectedAt.UnixMilli()
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if c.IsOpen() {
		pipe.SAdd(ctx, openConnectionsKey(c.EndpointID), c.ID)
		pipe.Set(ctx, heartbeatKey(c.EndpointID, c.ID), c.LastPingAt.UnixMilli(), heartbeatTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing connection metadata: %w", err)
	}
	return nil
}

// Ping records a heartbeat and renews the presence key
func (r *ConnectionRepository) Ping(ctx context.Context, id string, at time.Time) error {
	c, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, connectionKey(id), "last_ping_at", at.UnixMilli())
	if c.IsOpen() {
		pipe.Set(ctx, heartbeatKey(c.EndpointID, id), at.UnixMilli(), heartbeatTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("updating heartbeat: %w", err)
	}
	return nil
}

// Disconnect keeps the first disconnection time
func (r *ConnectionRepository) Disconnect(ctx context.Context, id string, at time.Time) error {
	c, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.HSetNX(ctx, connectionKey(id), "disconnected_at", at.UnixMilli())
	pipe.SRem(ctx, openConnectionsKey(c.EndpointID), id)
	pipe.Del(ctx, heartbeatKey(c.EndpointID, id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("disconnecting: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) DisconnectOpen(ctx context.Context, endpointID string, at time.Time) error {
	ids, err := r.client.SMembers(ctx, openConnectionsKey(endpointID)).Result()
	if err != nil {
		return fmt.Errorf("listing open connections: %w", err)
	}
	for _, id := range ids {
		if err := r.Disconnect(ctx, id, at); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConnectionRepository) SetEndpointStatus(ctx context.Context, endpointID string, status connection.EndpointStatus, at time.Time) error {
	if err := status.Validate(); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"id":         endpointID,
		"status":     status.String(),
		"updated_at": at.UnixMilli(),
	}
	if status == connection.Active {
		fields["last_connection_at"] = at.UnixMilli()
	}
	if err := r.client.HSet(ctx, endpointKey(endpointID), fields).Err(); err != nil {
		return fmt.Errorf("updating endpoint status: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) RefreshEndpoint(ctx context.Context, endpointID string, at time.Time) error {
	err := r.client.HSet(ctx, endpointKey(endpointID), map[string]interface{}{
		"id":         endpointID,
		"status":     connection.Active.String(),
		"updated_at": at.UnixMilli(),
	}).Err()
	if err != nil {
		return fmt.Errorf("refreshing endpoint: %w", err)
	}
	return nil
}

// GetOpen returns the most recent open connection, or nil when there is none
func (r *ConnectionRepository) GetOpen(ctx context.Context, endpointID string) (*connection.Connection, error) {
	ids, err := r.client.SMembers(ctx, openConnectionsKey(endpointID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing open connections: %w", err)
	}

	var open *connection.Connection
	for _, id := range ids {
		c, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if c.IsOpen() && (open == nil || c.ConnectedAt.After(open.ConnectedAt)) {
			c := c
			open = &c
		}
	}
	return open, nil
}

func (r *ConnectionRepository) GetEndpoint(ctx context.Context, endpointID string) (connection.Endpoint, error) {
	data, err := r.client.HGetAll(ctx, endpointKey(endpointID)).Result()
	if err != nil {
		return connection.Endpoint{}, fmt.Errorf("getting endpoint: %w", err)
	}
	if len(data) == 0 {
		return connection.Endpoint{}, fmt.Errorf("%w: %s", connection.ErrEndpointNotFound, endpointID)
	}
	return connection.Endpoint{
		ID:               data["id"],
		Status:           connection.NewEndpointStatus(data["status"]),
		LastConnectionAt: optionalTime(data, "last_connection_at"),
		UpdatedAt:        unixMilli(data["updated_at"]),
	}, nil
}

func (r *ConnectionRepository) get(ctx context.Context, id string) (connection.Connection, error) {
	data, err := r.client.HGetAll(ctx, connectionKey(id)).Result()
	if err != nil {
		return connection.Connection{}, fmt.Errorf("getting connection: %w", err)
	}
	if len(data) == 0 {
		return connection.Connection{}, fmt.Errorf("connection %s not found", id)
	}
	return connection.Connection{
		ID:             data["id"],
		EndpointID:     data["endpoint_id"],
		ClientID:       data["client_id"],
		IPAddress:      data["ip_address"],
		ConnectedAt:    unixMilli(data["connected_at"]),
		DisconnectedAt: optionalTime(data, "disconnected_at"),
		LastPingAt:     unixMilli(data["last_ping_at"]),
	}, nil
}
