//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pending(id, endpointID string) event.Event {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return event.Event{
		ID:         id,
		EndpointID: endpointID,
		Source:     "github",
		Status:     event.Pending,
		CreatedAt:  now,
		UpdatedAt:  now,
		Request: event.Request{
			Method:    "POST",
			Headers:   map[string]string{"X-GitHub-Event": "push"},
			Body:      []byte(`{"ref":"refs/heads/main"}`),
			Path:      "/",
			SourceURL: "https://relay.example.com/e/" + endpointID,
		},
	}
}

func TestMigrate_Integration(t *testing.T) {
	ctx := context.Background()
	store := SetupStore(t, ctx)

	applied, err := store.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestEvents_Integration(t *testing.T) {
	ctx := context.Background()
	store := SetupStore(t, ctx)
	events := store.Events()

	t.Run("success - insert get and resolve", func(t *testing.T) {
		ev := pending("ev-1", "ep-1")
		require.NoError(t, events.Insert(ctx, ev))

		got, err := events.Get(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, ev.Request, got.Request)
		assert.Equal(t, event.Pending, got.Status)
		assert.Nil(t, got.CompletedAt)

		done := time.Now().UTC().Truncate(time.Microsecond)
		resp := event.Response{Status: 500, Headers: map[string]string{"content-type": "text/plain"}, Body: []byte("dial tcp: connection refused")}
		require.NoError(t, events.Resolve(ctx, "ev-1", event.Failed, resp, done))

		got, err = events.Get(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, event.Failed, got.Status)
		require.NotNil(t, got.Response)
		assert.Equal(t, resp, *got.Response)

		counts, err := store.GetStatusCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts["failed"])
	})

	t.Run("error - duplicate and unknown", func(t *testing.T) {
		assert.Error(t, events.Insert(ctx, pending("ev-1", "ep-1")))

		_, err := events.Get(ctx, "missing")
		assert.ErrorIs(t, err, event.ErrNotFound)
		assert.ErrorIs(t, events.Resolve(ctx, "missing", event.Completed, event.Response{}, time.Now()), event.ErrNotFound)
	})
}

func TestFeed_Integration(t *testing.T) {
	ctx := context.Background()
	store := SetupStore(t, ctx)
	events := store.Events()

	t.Run("success - delivers only the subscribed endpoint", func(t *testing.T) {
		stream, err := events.Subscribe(ctx, "ep-feed")
		require.NoError(t, err)
		defer stream.Close()

		require.NoError(t, events.Insert(ctx, pending("other", "ep-other")))
		require.NoError(t, events.Insert(ctx, pending("mine", "ep-feed")))

		nctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		got, err := stream.Next(nctx)
		require.NoError(t, err)
		assert.Equal(t, "mine", got.ID)
		assert.Equal(t, event.Pending, got.Status)
	})

	t.Run("error - close interrupts next", func(t *testing.T) {
		stream, err := events.Subscribe(ctx, "ep-closed")
		require.NoError(t, err)

		errCh := make(chan error, 1)
		go func() {
			_, err := stream.Next(ctx)
			errCh <- err
		}()
		time.Sleep(100 * time.Millisecond)
		require.NoError(t, stream.Close())
		require.NoError(t, stream.Close())

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, relay.ErrStreamClosed)
		case <-time.After(5 * time.Second):
			t.Fatal("next did not return after close")
		}
	})
}

func TestConnections_Integration(t *testing.T) {
	ctx := context.Background()
	store := SetupStore(t, ctx)
	conns := store.Connections()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("success - connection lifecycle", func(t *testing.T) {
		require.NoError(t, conns.Insert(ctx, connection.Connection{ID: "c-1", EndpointID: "ep-1", ClientID: "cli", ConnectedAt: now, LastPingAt: now}))
		require.NoError(t, conns.SetEndpointStatus(ctx, "ep-1", connection.Active, now))

		open, err := conns.GetOpen(ctx, "ep-1")
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, "c-1", open.ID)

		live, err := store.GetOpenConnections(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), live["ep-1"])

		require.NoError(t, conns.Ping(ctx, "c-1", now.Add(time.Second)))
		require.NoError(t, conns.RefreshEndpoint(ctx, "ep-1", now.Add(time.Second)))
		first := now.Add(2 * time.Second)
		require.NoError(t, conns.Disconnect(ctx, "c-1", first))
		require.NoError(t, conns.Disconnect(ctx, "c-1", now.Add(time.Minute)))
		require.NoError(t, conns.SetEndpointStatus(ctx, "ep-1", connection.Inactive, first))

		open, err = conns.GetOpen(ctx, "ep-1")
		require.NoError(t, err)
		assert.Nil(t, open)

		ep, err := conns.GetEndpoint(ctx, "ep-1")
		require.NoError(t, err)
		assert.Equal(t, connection.Inactive, ep.Status)
		require.NotNil(t, ep.LastConnectionAt)
		assert.True(t, now.Equal(*ep.LastConnectionAt))
	})

	t.Run("error - unknown connection and endpoint", func(t *testing.T) {
		assert.Error(t, conns.Ping(ctx, "missing", now))
		assert.Error(t, conns.Disconnect(ctx, "missing", now))
		_, err := conns.GetEndpoint(ctx, "missing")
		assert.ErrorIs(t, err, connection.ErrEndpointNotFound)
	})
}

func TestForwarding_Integration(t *testing.T) {
	ctx := context.Background()
	store := SetupStore(t, ctx)
	repo := store.Forwarding()

	t.Run("success - rules destinations and executions", func(t *testing.T) {
		d := forwarding.Destination{
			ID: "d-1", EndpointID: "ep-1", Type: forwarding.Webhook, IsActive: true,
			Config: forwarding.DestinationConfig{
				URL:  "https://example.com/hook",
				Auth: &forwarding.Auth{Type: forwarding.AuthBearer, Token: "t"},
			},
		}
		require.NoError(t, repo.SaveDestination(ctx, d))

		rule := forwarding.Rule{
			ID: "r-1", EndpointID: "ep-1", DestinationID: "d-1", Priority: 2, IsActive: true,
			Filters:        forwarding.Filters{Methods: []string{"POST"}, Headers: map[string]forwarding.StringList{"x-env": {"prod"}}},
			Transformation: "function transform(p) { return p }",
		}
		require.NoError(t, repo.SaveRule(ctx, rule))
		require.NoError(t, repo.SaveRule(ctx, forwarding.Rule{ID: "r-0", EndpointID: "ep-1", DestinationID: "d-1"}))
		rule.Priority = 1
		require.NoError(t, repo.SaveRule(ctx, rule))

		rules, err := repo.Rules(ctx, "ep-1")
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, rule, rules[0])
		assert.Equal(t, "r-0", rules[1].ID)

		destinations, err := repo.Destinations(ctx, "ep-1")
		require.NoError(t, err)
		require.Len(t, destinations, 1)
		assert.Equal(t, d, destinations[0])

		exec := forwarding.Execution{
			ID: "x-1", RuleID: "r-1", EventID: "ev-1", DestinationID: "d-1",
			OriginalPayload:     json.RawMessage(`{"a":1}`),
			DestinationResponse: &forwarding.DestinationResponse{Status: 200, Body: json.RawMessage(`"ok"`)},
			Success:             true,
			ExecutionTimeMs:     12,
			CreatedAt:           time.Now().UTC().Truncate(time.Microsecond),
		}
		require.NoError(t, repo.InsertExecution(ctx, exec))

		executions, err := repo.Executions(ctx, "ev-1")
		require.NoError(t, err)
		require.Len(t, executions, 1)
		assert.JSONEq(t, `{"a":1}`, string(executions[0].OriginalPayload))
		assert.Nil(t, executions[0].TransformedPayload)
		assert.Equal(t, 200, executions[0].DestinationResponse.Status)
		assert.True(t, exec.CreatedAt.Equal(executions[0].CreatedAt))
	})
}
