package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/redis/go-redis/v9"
)

/* ForwardingRepository implements forwarding.Repository
 * Rules and destinations live in one hash per endpoint, keyed by ID, with a
 * companion list that keeps the order they were first saved in
 */
type ForwardingRepository struct {
	client *redis.Client
}

func (r *ForwardingRepository) Rules(ctx context.Context, endpointID string) ([]forwarding.Rule, error) {
	var rules []forwarding.Rule
	if err := r.list(ctx, endpointKey(endpointID)+":rules", &rules); err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	return rules, nil
}

func (r *ForwardingRepository) Destinations(ctx context.Context, endpointID string) ([]forwarding.Destination, error) {
	var destinations []forwarding.Destination
	if err := r.list(ctx, endpointKey(endpointID)+":destinations", &destinations); err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	return destinations, nil
}

func (r *ForwardingRepository) SaveRule(ctx context.Context, rule forwarding.Rule) error {
	if err := r.save(ctx, endpointKey(rule.EndpointID)+":rules", rule.ID, rule); err != nil {
		return fmt.Errorf("saving rule %s: %w", rule.ID, err)
	}
	return nil
}

func (r *ForwardingRepository) SaveDestination(ctx context.Context, d forwarding.Destination) error {
	if err := r.save(ctx, endpointKey(d.EndpointID)+":destinations", d.ID, d); err != nil {
		return fmt.Errorf("saving destination %s: %w", d.ID, err)
	}
	return nil
}

func (r *ForwardingRepository) InsertExecution(ctx context.Context, e forwarding.Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling execution: %w", err)
	}
	if err := r.client.RPush(ctx, executionsKey(e.EventID), data).Err(); err != nil {
		return fmt.Errorf("storing execution: %w", err)
	}
	return nil
}

func (r *ForwardingRepository) Executions(ctx context.Context, eventID string) ([]forwarding.Execution, error) {
	items, err := r.client.LRange(ctx, executionsKey(eventID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	executions := make([]forwarding.Execution, 0, len(items))
	for _, item := range items {
		var e forwarding.Execution
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("unmarshaling execution: %w", err)
		}
		executions = append(executions, e)
	}
	return executions, nil
}

func (r *ForwardingRepository) save(ctx context.Context, key, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	added, err := r.client.HSet(ctx, key, id, data).Result()
	if err != nil {
		return err
	}
	if added > 0 {
		return r.client.RPush(ctx, key+":order", id).Err()
	}
	return nil
}

// list decodes the hash values in saved order into out, a pointer to a slice
func (r *ForwardingRepository) list(ctx context.Context, key string, out any) error {
	ids, err := r.client.LRange(ctx, key+":order", 0, -1).Result()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	values, err := r.client.HMGet(ctx, key, ids...).Result()
	if err != nil {
		return err
	}

	raw := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			raw = append(raw, json.RawMessage(s))
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
