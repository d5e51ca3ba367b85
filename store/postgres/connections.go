package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/webhook-relay/connection"
)

// ConnectionRepository implements connection.Repository
type ConnectionRepository struct {
	pool *pgxpool.Pool
}

func (r *ConnectionRepository) Insert(ctx context.Context, c connection.Connection) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO connections (id, endpoint_id, client_id, ip_address, connected_at, disconnected_at, last_ping_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.EndpointID, c.ClientID, c.IPAddress, c.ConnectedAt, c.DisconnectedAt, c.LastPingAt,
	)
	if err != nil {
		return fmt.Errorf("inserting connection: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) Ping(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE connections SET last_ping_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("updating heartbeat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s not found", id)
	}
	return nil
}

// Disconnect keeps the first disconnection time
func (r *ConnectionRepository) Disconnect(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE connections SET disconnected_at = COALESCE(disconnected_at, $2) WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("disconnecting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s not found", id)
	}
	return nil
}

func (r *ConnectionRepository) DisconnectOpen(ctx context.Context, endpointID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE connections SET disconnected_at = $2 WHERE endpoint_id = $1 AND disconnected_at IS NULL`, endpointID, at)
	if err != nil {
		return fmt.Errorf("disconnecting open connections: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) SetEndpointStatus(ctx context.Context, endpointID string, status connection.EndpointStatus, at time.Time) error {
	if err := status.Validate(); err != nil {
		return err
	}
	var lastConnection *time.Time
	if status == connection.Active {
		lastConnection = &at
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO endpoints (id, status, last_connection_at, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			last_connection_at = COALESCE(EXCLUDED.last_connection_at, endpoints.last_connection_at)`,
		endpointID, status.String(), lastConnection, at,
	)
	if err != nil {
		return fmt.Errorf("updating endpoint status: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) RefreshEndpoint(ctx context.Context, endpointID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO endpoints (id, status, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		endpointID, connection.Active.String(), at,
	)
	if err != nil {
		return fmt.Errorf("refreshing endpoint: %w", err)
	}
	return nil
}

// GetOpen returns the most recent open connection, or nil when there is none
func (r *ConnectionRepository) GetOpen(ctx context.Context, endpointID string) (*connection.Connection, error) {
	var c connection.Connection
	err := r.pool.QueryRow(ctx, `
		SELECT id, endpoint_id, client_id, ip_address, connected_at, disconnected_at, last_ping_at
		FROM connections WHERE endpoint_id = $1 AND disconnected_at IS NULL
		ORDER BY connected_at DESC LIMIT 1`, endpointID,
	).Scan(&c.ID, &c.EndpointID, &c.ClientID, &c.IPAddress, &c.ConnectedAt, &c.DisconnectedAt, &c.LastPingAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting open connection: %w", err)
	}
	return &c, nil
}

func (r *ConnectionRepository) GetEndpoint(ctx context.Context, endpointID string) (connection.Endpoint, error) {
	var (
		ep     connection.Endpoint
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, status, last_connection_at, updated_at FROM endpoints WHERE id = $1`, endpointID).
		Scan(&ep.ID, &status, &ep.LastConnectionAt, &ep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return connection.Endpoint{}, fmt.Errorf("%w: %s", connection.ErrEndpointNotFound, endpointID)
	}
	if err != nil {
		return connection.Endpoint{}, fmt.Errorf("selecting endpoint: %w", err)
	}
	ep.Status = connection.NewEndpointStatus(status)
	return ep, nil
}
