package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/webhook-relay/forwarding"
)

// ForwardingRepository implements forwarding.Repository
type ForwardingRepository struct {
	pool *pgxpool.Pool
}

// Rules returns the rules of an endpoint in the order they were first saved
func (r *ForwardingRepository) Rules(ctx context.Context, endpointID string) ([]forwarding.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, endpoint_id, name, destination_id, priority, is_active, filters, transformation
		FROM forwarding_rules WHERE endpoint_id = $1 ORDER BY seq`, endpointID)
	if err != nil {
		return nil, fmt.Errorf("selecting rules: %w", err)
	}

	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (forwarding.Rule, error) {
		var (
			rule    forwarding.Rule
			filters []byte
		)
		if err := row.Scan(&rule.ID, &rule.EndpointID, &rule.Name, &rule.DestinationID, &rule.Priority,
			&rule.IsActive, &filters, &rule.Transformation); err != nil {
			return rule, err
		}
		return rule, json.Unmarshal(filters, &rule.Filters)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning rules: %w", err)
	}
	return rules, nil
}

func (r *ForwardingRepository) Destinations(ctx context.Context, endpointID string) ([]forwarding.Destination, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, endpoint_id, name, type, config, is_active
		FROM forwarding_destinations WHERE endpoint_id = $1 ORDER BY seq`, endpointID)
	if err != nil {
		return nil, fmt.Errorf("selecting destinations: %w", err)
	}

	destinations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (forwarding.Destination, error) {
		var (
			d      forwarding.Destination
			typ    string
			config []byte
		)
		if err := row.Scan(&d.ID, &d.EndpointID, &d.Name, &typ, &config, &d.IsActive); err != nil {
			return d, err
		}
		d.Type = forwarding.DestinationType(typ)
		return d, json.Unmarshal(config, &d.Config)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning destinations: %w", err)
	}
	return destinations, nil
}

func (r *ForwardingRepository) SaveRule(ctx context.Context, rule forwarding.Rule) error {
	filters, err := json.Marshal(rule.Filters)
	if err != nil {
		return fmt.Errorf("marshaling filters: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO forwarding_rules (id, endpoint_id, name, destination_id, priority, is_active, filters, transformation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			endpoint_id = EXCLUDED.endpoint_id,
			name = EXCLUDED.name,
			destination_id = EXCLUDED.destination_id,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			filters = EXCLUDED.filters,
			transformation = EXCLUDED.transformation`,
		rule.ID, rule.EndpointID, rule.Name, rule.DestinationID, rule.Priority, rule.IsActive, filters, rule.Transformation,
	)
	if err != nil {
		return fmt.Errorf("saving rule %s: %w", rule.ID, err)
	}
	return nil
}

func (r *ForwardingRepository) SaveDestination(ctx context.Context, d forwarding.Destination) error {
	config, err := json.Marshal(d.Config)
	if err != nil {
		return fmt.Errorf("marshaling destination config: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO forwarding_destinations (id, endpoint_id, name, type, config, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			endpoint_id = EXCLUDED.endpoint_id,
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			config = EXCLUDED.config,
			is_active = EXCLUDED.is_active`,
		d.ID, d.EndpointID, d.Name, string(d.Type), config, d.IsActive,
	)
	if err != nil {
		return fmt.Errorf("saving destination %s: %w", d.ID, err)
	}
	return nil
}

func (r *ForwardingRepository) InsertExecution(ctx context.Context, e forwarding.Execution) error {
	var response []byte
	if e.DestinationResponse != nil {
		var err error
		if response, err = json.Marshal(e.DestinationResponse); err != nil {
			return fmt.Errorf("marshaling destination response: %w", err)
		}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO forwarding_executions (id, rule_id, event_id, destination_id, original_payload, transformed_payload,
			destination_response, success, error, execution_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.RuleID, e.EventID, e.DestinationID, nullJSON(e.OriginalPayload), nullJSON(e.TransformedPayload),
		response, e.Success, e.Error, e.ExecutionTimeMs, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

func (r *ForwardingRepository) Executions(ctx context.Context, eventID string) ([]forwarding.Execution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, rule_id, event_id, destination_id, original_payload, transformed_payload,
			destination_response, success, error, execution_time_ms, created_at
		FROM forwarding_executions WHERE event_id = $1 ORDER BY seq`, eventID)
	if err != nil {
		return nil, fmt.Errorf("selecting executions: %w", err)
	}

	executions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (forwarding.Execution, error) {
		var (
			e                               forwarding.Execution
			original, transformed, response []byte
		)
		if err := row.Scan(&e.ID, &e.RuleID, &e.EventID, &e.DestinationID, &original, &transformed,
			&response, &e.Success, &e.Error, &e.ExecutionTimeMs, &e.CreatedAt); err != nil {
			return e, err
		}
		e.OriginalPayload = original
		e.TransformedPayload = transformed
		if response != nil {
			e.DestinationResponse = &forwarding.DestinationResponse{}
			if err := json.Unmarshal(response, e.DestinationResponse); err != nil {
				return e, err
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning executions: %w", err)
	}
	return executions, nil
}

// nullJSON maps an absent payload to SQL NULL
func nullJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
