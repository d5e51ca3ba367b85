package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/relay"
	"github.com/redis/go-redis/v9"
)

// EventRepository implements event.Repository and relay.Feed
type EventRepository struct {
	client *redis.Client
}

/* Insert stores the event hash and appends its ID to the endpoint's stream
 * Both writes go in one MULTI/EXEC under WATCH, so a failed insert leaves nothing behind
 */
func (r *EventRepository) Insert(ctx context.Context, ev event.Event) error {
	requestJSON, err := json.Marshal(ev.Request)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	fields := map[string]interface{}{
		"id":          ev.ID,
		"endpoint_id": ev.EndpointID,
		"source":      ev.Source,
		"request":     string(requestJSON),
		"status":      ev.Status.String(),
		"retry_count": ev.RetryCount,
		"max_retries": ev.MaxRetries,
		"created_at":  ev.CreatedAt.UnixMilli(),
		"updated_at":  ev.UpdatedAt.UnixMilli(),
	}
	if ev.Response != nil {
		responseJSON, err := json.Marshal(ev.Response)
		if err != nil {
			return fmt.Errorf("marshaling response: %w", err)
		}
		fields["response"] = string(responseJSON)
	}
	if ev.CompletedAt != nil {
		fields["completed_at"] = ev.CompletedAt.UnixMilli()
	}

	key := eventKey(ev.ID)
	stream := streamKey(ev.EndpointID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("checking event: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("event %s already exists", ev.ID)
		}
		// EXEC does not roll back, so a stream key of the wrong type is rejected up front
		kind, err := tx.Type(ctx, stream).Result()
		if err != nil {
			return fmt.Errorf("checking stream: %w", err)
		}
		if kind != "none" && kind != "stream" {
			return fmt.Errorf("key %s holds a %s, not a stream", stream, kind)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: stream,
				Values: map[string]interface{}{"event_id": ev.ID},
			})
			return nil
		})
		return err
	}, key, stream)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("event %s already exists", ev.ID)
	}
	if err != nil {
		return fmt.Errorf("storing event: %w", err)
	}
	return nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (event.Event, error) {
	data, err := r.client.HGetAll(ctx, eventKey(id)).Result()
	if err != nil {
		return event.Event{}, fmt.Errorf("getting event: %w", err)
	}
	if len(data) == 0 {
		return event.Event{}, fmt.Errorf("%w: %s", event.ErrNotFound, id)
	}

	ev := event.Event{
		ID:          data["id"],
		EndpointID:  data["endpoint_id"],
		Source:      data["source"],
		Status:      event.NewStatus(data["status"]),
		RetryCount:  int(parseInt64(data["retry_count"])),
		MaxRetries:  int(parseInt64(data["max_retries"])),
		CreatedAt:   unixMilli(data["created_at"]),
		UpdatedAt:   unixMilli(data["updated_at"]),
		CompletedAt: optionalTime(data, "completed_at"),
	}
	if err := json.Unmarshal([]byte(data["request"]), &ev.Request); err != nil {
		return event.Event{}, fmt.Errorf("unmarshaling request: %w", err)
	}
	if raw, ok := data["response"]; ok && raw != "" {
		var resp event.Response
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return event.Event{}, fmt.Errorf("unmarshaling response: %w", err)
		}
		ev.Response = &resp
	}
	return ev, nil
}

func (r *EventRepository) Resolve(ctx context.Context, id string, status event.Status, resp event.Response, completedAt time.Time) error {
	key := eventKey(id)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking event: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", event.ErrNotFound, id)
	}

	responseJSON, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	err = r.client.HSet(ctx, key, map[string]interface{}{
		"status":       status.String(),
		"response":     string(responseJSON),
		"completed_at": completedAt.UnixMilli(),
		"updated_at":   completedAt.UnixMilli(),
	}).Err()
	if err != nil {
		return fmt.Errorf("resolving event: %w", err)
	}
	return nil
}

/* Subscribe joins the endpoint's consumer group
 * The group starts at the end of the stream; entries added while no relay
 * reads are delivered on the next subscription
 */
func (r *EventRepository) Subscribe(ctx context.Context, endpointID string) (relay.Stream, error) {
	key := streamKey(endpointID)
	group := groupName(endpointID)

	err := r.client.XGroupCreateMkStream(ctx, key, group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	return &stream{
		events:   r,
		key:      key,
		group:    group,
		consumer: "relay-" + uuid.NewString(),
		ctx:      sctx,
		cancel:   cancel,
	}, nil
}

type stream struct {
	events   *EventRepository
	key      string
	group    string
	consumer string

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	pending []redis.XMessage
}

func (st *stream) Next(ctx context.Context) (event.Event, error) {
	readCtx, cancel := context.WithCancel(st.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	for {
		if st.ctx.Err() != nil {
			return event.Event{}, relay.ErrStreamClosed
		}
		if err := ctx.Err(); err != nil {
			return event.Event{}, err
		}

		for len(st.pending) > 0 {
			msg := st.pending[0]
			st.pending = st.pending[1:]

			ev, err := st.load(readCtx, msg)
			if errors.Is(err, event.ErrNotFound) {
				continue
			}
			if err != nil {
				return event.Event{}, err
			}
			return ev, nil
		}

		streams, err := st.events.client.XReadGroup(readCtx, &redis.XReadGroupArgs{
			Group:    st.group,
			Consumer: st.consumer,
			Streams:  []string{st.key, ">"},
			Count:    streamReadMaxCount,
			Block:    streamReadBlock,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if st.ctx.Err() != nil {
				return event.Event{}, relay.ErrStreamClosed
			}
			if ctx.Err() != nil {
				return event.Event{}, ctx.Err()
			}
			return event.Event{}, fmt.Errorf("reading from stream: %w", err)
		}
		for _, s := range streams {
			st.pending = append(st.pending, s.Messages...)
		}
	}
}

// load fetches the row behind a stream entry and acknowledges the entry
func (st *stream) load(ctx context.Context, msg redis.XMessage) (event.Event, error) {
	id, _ := msg.Values["event_id"].(string)

	ev, err := st.events.Get(ctx, id)
	if err != nil && !errors.Is(err, event.ErrNotFound) {
		return event.Event{}, err
	}
	if ackErr := st.events.client.XAck(ctx, st.key, st.group, msg.ID).Err(); ackErr != nil {
		return event.Event{}, fmt.Errorf("acknowledging message: %w", ackErr)
	}
	return ev, err
}

func (st *stream) Close() error {
	st.once.Do(st.cancel)
	return nil
}
