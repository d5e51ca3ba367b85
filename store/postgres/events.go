package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/relay"
)

// EventRepository implements event.Repository and relay.Feed
type EventRepository struct {
	pool *pgxpool.Pool
}

// Insert writes the row; the events_inserted trigger publishes the notification
func (r *EventRepository) Insert(ctx context.Context, ev event.Event) error {
	request, err := json.Marshal(ev.Request)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	var response []byte
	if ev.Response != nil {
		if response, err = json.Marshal(ev.Response); err != nil {
			return fmt.Errorf("marshaling response: %w", err)
		}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO events (id, endpoint_id, source, status, retry_count, max_retries, request, response, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, ev.EndpointID, ev.Source, ev.Status.String(), ev.RetryCount, ev.MaxRetries,
		request, response, ev.CreatedAt, ev.UpdatedAt, ev.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (event.Event, error) {
	var (
		ev                event.Event
		status            string
		request, response []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, endpoint_id, source, status, retry_count, max_retries, request, response, created_at, updated_at, completed_at
		FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.EndpointID, &ev.Source, &status, &ev.RetryCount, &ev.MaxRetries,
		&request, &response, &ev.CreatedAt, &ev.UpdatedAt, &ev.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return event.Event{}, fmt.Errorf("%w: %s", event.ErrNotFound, id)
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("selecting event: %w", err)
	}

	ev.Status = event.NewStatus(status)
	if err := json.Unmarshal(request, &ev.Request); err != nil {
		return event.Event{}, fmt.Errorf("unmarshaling request: %w", err)
	}
	if response != nil {
		var resp event.Response
		if err := json.Unmarshal(response, &resp); err != nil {
			return event.Event{}, fmt.Errorf("unmarshaling response: %w", err)
		}
		ev.Response = &resp
	}
	return ev, nil
}

func (r *EventRepository) Resolve(ctx context.Context, id string, status event.Status, resp event.Response, completedAt time.Time) error {
	response, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE events SET status = $2, response = $3, completed_at = $4, updated_at = $4
		WHERE id = $1`, id, status.String(), response, completedAt)
	if err != nil {
		return fmt.Errorf("resolving event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", event.ErrNotFound, id)
	}
	return nil
}

/* Subscribe holds a dedicated connection that LISTENs on the insert channel
 * Notifications for other endpoints are skipped; events inserted while no
 * relay listens are not replayed
 */
func (r *EventRepository) Subscribe(ctx context.Context, endpointID string) (relay.Stream, error) {
	pooled, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring listen connection: %w", err)
	}
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listening: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	return &stream{
		events:     r,
		conn:       conn,
		endpointID: endpointID,
		ctx:        sctx,
		cancel:     cancel,
	}, nil
}

type notification struct {
	ID         string `json:"id"`
	EndpointID string `json:"endpoint_id"`
}

type stream struct {
	events     *EventRepository
	endpointID string

	// mu is held by Next while it uses conn
	mu   sync.Mutex
	conn *pgx.Conn

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (st *stream) Next(ctx context.Context) (event.Event, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	waitCtx, cancel := context.WithCancel(st.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	for {
		if st.ctx.Err() != nil || st.conn == nil {
			return event.Event{}, relay.ErrStreamClosed
		}

		n, err := st.conn.WaitForNotification(waitCtx)
		if err != nil {
			if st.ctx.Err() != nil {
				return event.Event{}, relay.ErrStreamClosed
			}
			if ctx.Err() != nil {
				return event.Event{}, ctx.Err()
			}
			return event.Event{}, fmt.Errorf("waiting for notification: %w", err)
		}

		var msg notification
		if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil || msg.EndpointID != st.endpointID {
			continue
		}

		ev, err := st.events.Get(waitCtx, msg.ID)
		if errors.Is(err, event.ErrNotFound) {
			continue
		}
		if err != nil {
			return event.Event{}, err
		}
		return ev, nil
	}
}

// Close interrupts a pending Next and closes the listening connection
func (st *stream) Close() error {
	var err error
	st.once.Do(func() {
		st.cancel()

		st.mu.Lock()
		defer st.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = st.conn.Close(ctx)
		st.conn = nil
	})
	return err
}
