package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

/* Redis implementation of the relay's tables
 * Hashes hold event, connection and endpoint rows
 * One stream per endpoint carries the "event inserted" notifications,
 * read through a consumer group so a relay that reconnects catches up
 */

const (
	eventPrefix        = "event"                // Hash naming: event:{event_id}
	streamPrefix       = "events"               // Stream naming: events:{endpoint_id}
	groupPrefix        = "relay"                // Consumer group naming: relay-{endpoint_id}
	connectionPrefix   = "connection"           // Hash naming: connection:{connection_id}
	endpointPrefix     = "endpoint"             // Hash naming: endpoint:{endpoint_id}
	heartbeatPrefix    = "connection:heartbeat" // Presence naming: connection:heartbeat:{endpoint_id}:{connection_id}
	executionPrefix    = "executions"           // List naming: executions:{event_id}
	heartbeatTTL       = 60 * time.Second
	scanCount          = 100
	streamReadBlock    = time.Second
	streamReadMaxCount = 10
)

type Store struct {
	client *redis.Client
}

// New connects to Redis and checks the connection
func New(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Events() *EventRepository {
	return &EventRepository{client: s.client}
}

func (s *Store) Connections() *ConnectionRepository {
	return &ConnectionRepository{client: s.client}
}

func (s *Store) Forwarding() *ForwardingRepository {
	return &ForwardingRepository{client: s.client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// GetStatusCounts returns the count of events by status
func (s *Store) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{}

	var cursor uint64
	for {
		keys, next, err := s.client.ScanType(ctx, cursor, eventPrefix+":*", scanCount, "hash").Result()
		if err != nil {
			return nil, fmt.Errorf("scanning event keys: %w", err)
		}

		if len(keys) > 0 {
			pipe := s.client.Pipeline()
			cmds := make([]*redis.StringCmd, len(keys))
			for i, key := range keys {
				cmds[i] = pipe.HGet(ctx, key, "status")
			}
			if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
				return nil, fmt.Errorf("reading event statuses: %w", err)
			}
			for _, cmd := range cmds {
				if status, err := cmd.Result(); err == nil {
					counts[status]++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return counts, nil
}

/* GetOpenConnections counts live relay sessions per endpoint
 * A session is live while its heartbeat key has not expired
 */
func (s *Store) GetOpenConnections(ctx context.Context) (map[string]int64, error) {
	open := map[string]int64{}

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, heartbeatPrefix+":*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning heartbeat keys: %w", err)
		}
		for _, key := range keys {
			rest := strings.TrimPrefix(key, heartbeatPrefix+":")
			if i := strings.LastIndex(rest, ":"); i > 0 {
				open[rest[:i]]++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return open, nil
}

// Client returns the underlying Redis client for advanced operations
func (s *Store) Client() *redis.Client {
	return s.client
}

func eventKey(id string) string {
	return eventPrefix + ":" + id
}

func streamKey(endpointID string) string {
	return streamPrefix + ":" + endpointID
}

func groupName(endpointID string) string {
	return groupPrefix + "-" + endpointID
}

func connectionKey(id string) string {
	return connectionPrefix + ":" + id
}

func endpointKey(id string) string {
	return endpointPrefix + ":" + id
}

func openConnectionsKey(endpointID string) string {
	return endpointKey(endpointID) + ":open"
}

func heartbeatKey(endpointID, connectionID string) string {
	return heartbeatPrefix + ":" + endpointID + ":" + connectionID
}

func executionsKey(eventID string) string {
	return executionPrefix + ":" + eventID
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func unixMilli(s string) time.Time {
	return time.UnixMilli(parseInt64(s)).UTC()
}

// optionalTime reads a time field that is absent until it is first written
func optionalTime(data map[string]string, field string) *time.Time {
	v, ok := data[field]
	if !ok || v == "" {
		return nil
	}
	t := unixMilli(v)
	return &t
}
