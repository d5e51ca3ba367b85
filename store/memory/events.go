package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/relay"
)

// EventRepository implements event.Repository and relay.Feed
type EventRepository struct {
	s *Store
}

func (r *EventRepository) Insert(ctx context.Context, ev event.Event) error {
	r.s.mu.Lock()
	if _, ok := r.s.events[ev.ID]; ok {
		r.s.mu.Unlock()
		return fmt.Errorf("event %s already exists", ev.ID)
	}
	r.s.events[ev.ID] = cloneEvent(ev)
	subs := make([]*stream, 0, len(r.s.subscribers[ev.EndpointID]))
	for st := range r.s.subscribers[ev.EndpointID] {
		subs = append(subs, st)
	}
	r.s.mu.Unlock()

	for _, st := range subs {
		st.push(cloneEvent(ev))
	}
	return nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (event.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ev, ok := r.s.events[id]
	if !ok {
		return event.Event{}, fmt.Errorf("%w: %s", event.ErrNotFound, id)
	}
	return cloneEvent(ev), nil
}

func (r *EventRepository) Resolve(ctx context.Context, id string, status event.Status, resp event.Response, completedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ev, ok := r.s.events[id]
	if !ok {
		return fmt.Errorf("%w: %s", event.ErrNotFound, id)
	}
	ev.Status = status
	ev.Response = &resp
	ev.CompletedAt = &completedAt
	ev.UpdatedAt = completedAt
	r.s.events[id] = cloneEvent(ev)
	return nil
}

func (r *EventRepository) Subscribe(ctx context.Context, endpointID string) (relay.Stream, error) {
	st := &stream{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	st.detach = func() {
		r.s.mu.Lock()
		delete(r.s.subscribers[endpointID], st)
		r.s.mu.Unlock()
	}

	r.s.mu.Lock()
	if r.s.subscribers[endpointID] == nil {
		r.s.subscribers[endpointID] = map[*stream]struct{}{}
	}
	r.s.subscribers[endpointID][st] = struct{}{}
	r.s.mu.Unlock()
	return st, nil
}

// stream buffers without bound so Insert never blocks on a slow relay
type stream struct {
	mu     sync.Mutex
	queue  []event.Event
	notify chan struct{}
	closed chan struct{}
	once   sync.Once
	detach func()
}

func (st *stream) push(ev event.Event) {
	st.mu.Lock()
	st.queue = append(st.queue, ev)
	st.mu.Unlock()

	select {
	case st.notify <- struct{}{}:
	default:
	}
}

func (st *stream) Next(ctx context.Context) (event.Event, error) {
	for {
		select {
		case <-st.closed:
			return event.Event{}, relay.ErrStreamClosed
		default:
		}

		st.mu.Lock()
		if len(st.queue) > 0 {
			ev := st.queue[0]
			st.queue = st.queue[1:]
			st.mu.Unlock()
			return ev, nil
		}
		st.mu.Unlock()

		select {
		case <-ctx.Done():
			return event.Event{}, ctx.Err()
		case <-st.closed:
			return event.Event{}, relay.ErrStreamClosed
		case <-st.notify:
		}
	}
}

func (st *stream) Close() error {
	st.once.Do(func() {
		close(st.closed)
		st.detach()
	})
	return nil
}
