package store

import (
	"context"
	"fmt"

	"github.com/marcelsud/webhook-relay/config"
	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/metrics"
	"github.com/marcelsud/webhook-relay/relay"
	"github.com/marcelsud/webhook-relay/store/memory"
	"github.com/marcelsud/webhook-relay/store/postgres"
	"github.com/marcelsud/webhook-relay/store/redis"
)

const (
	Memory   = "memory"
	Redis    = "redis"
	Postgres = "postgres"
)

// EventStore is an event table that also publishes its inserts
type EventStore interface {
	event.Repository
	relay.Feed
}

/* Backend bundles the repositories of one store driver
 * Collector is the store itself and feeds the metrics gauges
 */
type Backend struct {
	Driver      string
	Events      EventStore
	Connections connection.Repository
	Forwarding  forwarding.Repository
	Collector   metrics.Collector
	close       func()
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects the store selected by STORE_DRIVER
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.StoreDriver {
	case Memory:
		s := memory.New()
		return &Backend{Driver: Memory, Events: s.Events(), Connections: s.Connections(), Forwarding: s.Forwarding(), Collector: s}, nil

	case Redis, "":
		s, err := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Driver: Redis, Events: s.Events(), Connections: s.Connections(), Forwarding: s.Forwarding(), Collector: s,
			close: func() { _ = s.Close() },
		}, nil

	case Postgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("POSTGRES_URL is required for the postgres store")
		}
		s, err := postgres.Connect(ctx, cfg.PostgresURL, 0)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Driver: Postgres, Events: s.Events(), Connections: s.Connections(), Forwarding: s.Forwarding(), Collector: s,
			close: s.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver: %q", cfg.StoreDriver)
}
