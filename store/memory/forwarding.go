package memory

import (
	"context"
	"slices"

	"github.com/marcelsud/webhook-relay/forwarding"
)

// ForwardingRepository implements forwarding.Repository
type ForwardingRepository struct {
	s *Store
}

// Rules returns the rules of an endpoint in the order they were first saved
func (r *ForwardingRepository) Rules(ctx context.Context, endpointID string) ([]forwarding.Rule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slices.Clone(r.s.rules[endpointID]), nil
}

func (r *ForwardingRepository) Destinations(ctx context.Context, endpointID string) ([]forwarding.Destination, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slices.Clone(r.s.destinations[endpointID]), nil
}

func (r *ForwardingRepository) SaveRule(ctx context.Context, rule forwarding.Rule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	list := r.s.rules[rule.EndpointID]
	if i := slices.IndexFunc(list, func(x forwarding.Rule) bool { return x.ID == rule.ID }); i >= 0 {
		list[i] = rule
	} else {
		list = append(list, rule)
	}
	r.s.rules[rule.EndpointID] = list
	return nil
}

func (r *ForwardingRepository) SaveDestination(ctx context.Context, d forwarding.Destination) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	list := r.s.destinations[d.EndpointID]
	if i := slices.IndexFunc(list, func(x forwarding.Destination) bool { return x.ID == d.ID }); i >= 0 {
		list[i] = d
	} else {
		list = append(list, d)
	}
	r.s.destinations[d.EndpointID] = list
	return nil
}

func (r *ForwardingRepository) InsertExecution(ctx context.Context, e forwarding.Execution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.executions[e.EventID] = append(r.s.executions[e.EventID], e)
	return nil
}

func (r *ForwardingRepository) Executions(ctx context.Context, eventID string) ([]forwarding.Execution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slices.Clone(r.s.executions[eventID]), nil
}
