package memory

import (
	"bytes"
	"context"
	"maps"
	"sync"

	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/forwarding"
)

/* Store keeps every table in process memory
 * Used by tests and single-process development; nothing survives a restart
 */
type Store struct {
	mu           sync.RWMutex
	events       map[string]event.Event
	connections  map[string]connection.Connection
	endpoints    map[string]connection.Endpoint
	rules        map[string][]forwarding.Rule
	destinations map[string][]forwarding.Destination
	executions   map[string][]forwarding.Execution
	subscribers  map[string]map[*stream]struct{}
}

func New() *Store {
	return &Store{
		events:       map[string]event.Event{},
		connections:  map[string]connection.Connection{},
		endpoints:    map[string]connection.Endpoint{},
		rules:        map[string][]forwarding.Rule{},
		destinations: map[string][]forwarding.Destination{},
		executions:   map[string][]forwarding.Execution{},
		subscribers:  map[string]map[*stream]struct{}{},
	}
}

func (s *Store) Events() *EventRepository {
	return &EventRepository{s: s}
}

func (s *Store) Connections() *ConnectionRepository {
	return &ConnectionRepository{s: s}
}

func (s *Store) Forwarding() *ForwardingRepository {
	return &ForwardingRepository{s: s}
}

// GetStatusCounts returns the count of events by status
func (s *Store) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int64{}
	for _, ev := range s.events {
		counts[ev.Status.String()]++
	}
	return counts, nil
}

// GetOpenConnections returns the number of open connections per endpoint
func (s *Store) GetOpenConnections(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := map[string]int64{}
	for _, c := range s.connections {
		if c.IsOpen() {
			open[c.EndpointID]++
		}
	}
	return open, nil
}

func cloneEvent(ev event.Event) event.Event {
	ev.Request.Headers = maps.Clone(ev.Request.Headers)
	ev.Request.Body = bytes.Clone(ev.Request.Body)
	if ev.Response != nil {
		resp := *ev.Response
		resp.Headers = maps.Clone(resp.Headers)
		resp.Body = bytes.Clone(resp.Body)
		ev.Response = &resp
	}
	return ev
}
