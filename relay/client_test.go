package relay_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/event/mocks"
	"github.com/marcelsud/webhook-relay/relay"
	"github.com/marcelsud/webhook-relay/store/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

// freePort returns a port nothing listens on
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func newEvent(id, path string, body string) event.Event {
	return event.Event{
		ID:         id,
		EndpointID: "ep-1",
		Status:     event.Pending,
		CreatedAt:  time.Now(),
		Request: event.Request{
			Method:    "POST",
			Headers:   map[string]string{"Content-Type": "application/json", "X-Trace": "abc", "Host": "hooks.example.com"},
			Body:      []byte(body),
			Path:      path,
			SourceURL: "https://hooks.example.com/e/ep-1" + path,
		},
	}
}

// watchedFeed reports every successful subscription
type watchedFeed struct {
	relay.Feed
	subscribed chan struct{}
}

func watch(f relay.Feed) *watchedFeed {
	return &watchedFeed{Feed: f, subscribed: make(chan struct{}, 8)}
}

func (f *watchedFeed) Subscribe(ctx context.Context, endpointID string) (relay.Stream, error) {
	st, err := f.Feed.Subscribe(ctx, endpointID)
	if err == nil {
		f.subscribed <- struct{}{}
	}
	return st, err
}

func (f *watchedFeed) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("relay never subscribed")
	}
}

func waitStatus(t *testing.T, events *memory.EventRepository, id string, want event.Status) event.Event {
	t.Helper()
	var got event.Event
	require.Eventually(t, func() bool {
		ev, err := events.Get(context.Background(), id)
		if err != nil {
			return false
		}
		got = ev
		return ev.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestClient_Delivery(t *testing.T) {
	ctx := context.Background()

	t.Run("success - local service answers and event completes", func(t *testing.T) {
		var gotPath, gotTrace, gotBody string
		local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.RequestURI()
			gotTrace = r.Header.Get("X-Trace")
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer local.Close()
		host, port := hostPort(t, local.URL)

		store := memory.New()
		events := store.Events()
		feed := watch(events)
		client := relay.NewClient(relay.Config{EndpointID: "ep-1", Host: host, Port: port, Feed: feed, Events: event.NewService(events, 3), Logger: zerolog.Nop()})
		require.NoError(t, client.Start(ctx))
		defer client.Stop(ctx)
		feed.wait(t)

		require.NoError(t, events.Insert(ctx, newEvent("ev-1", "/webhooks/stripe?x=1", `{"type":"payment.succeeded"}`)))

		got := waitStatus(t, events, "ev-1", event.Completed)
		assert.Equal(t, 200, got.Response.Status)
		assert.JSONEq(t, `{"ok":true}`, string(got.Response.Body))
		assert.Equal(t, "application/json", got.Response.Headers["content-type"])
		assert.NotNil(t, got.CompletedAt)
		assert.Equal(t, "/webhooks/stripe?x=1", gotPath)
		assert.Equal(t, "abc", gotTrace)
		assert.JSONEq(t, `{"type":"payment.succeeded"}`, gotBody)
	})

	t.Run("error - local service unreachable and event fails", func(t *testing.T) {
		store := memory.New()
		events := store.Events()
		feed := watch(events)
		client := relay.NewClient(relay.Config{EndpointID: "ep-1", Host: "127.0.0.1", Port: freePort(t), Feed: feed, Events: event.NewService(events, 3), Logger: zerolog.Nop()})
		require.NoError(t, client.Start(ctx))
		defer client.Stop(ctx)
		feed.wait(t)

		require.NoError(t, events.Insert(ctx, newEvent("ev-1", "/hook", `{}`)))

		got := waitStatus(t, events, "ev-1", event.Failed)
		assert.Equal(t, 500, got.Response.Status)
		assert.Equal(t, "text/plain", got.Response.Headers["content-type"])
		assert.Contains(t, string(got.Response.Body), "connection refused")
	})

	t.Run("success - error status from local service still completes", func(t *testing.T) {
		local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusUnprocessableEntity)
		}))
		defer local.Close()
		host, port := hostPort(t, local.URL)

		events := memory.New().Events()
		feed := watch(events)
		client := relay.NewClient(relay.Config{EndpointID: "ep-1", Host: host, Port: port, Feed: feed, Events: event.NewService(events, 3), Logger: zerolog.Nop()})
		require.NoError(t, client.Start(ctx))
		defer client.Stop(ctx)
		feed.wait(t)

		require.NoError(t, events.Insert(ctx, newEvent("ev-1", "/hook", `{}`)))

		got := waitStatus(t, events, "ev-1", event.Completed)
		assert.Equal(t, http.StatusUnprocessableEntity, got.Response.Status)
	})

	t.Run("success - terminal state is written through the resolver", func(t *testing.T) {
		local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer local.Close()
		host, port := hostPort(t, local.URL)

		events := memory.New().Events()
		feed := watch(events)
		resolver := mocks.NewResolver(t)
		resolved := make(chan event.Status, 1)
		resolver.On("Resolve", mock.Anything, "ev-1", event.Completed, mock.MatchedBy(func(r event.Response) bool {
			return r.Status == http.StatusNoContent
		})).Return(nil).Run(func(args mock.Arguments) {
			resolved <- args.Get(2).(event.Status)
		}).Once()

		client := relay.NewClient(relay.Config{EndpointID: "ep-1", Host: host, Port: port, Feed: feed, Events: resolver, Logger: zerolog.Nop()})
		require.NoError(t, client.Start(ctx))
		defer client.Stop(ctx)
		feed.wait(t)

		require.NoError(t, events.Insert(ctx, newEvent("ev-1", "/hook", `{}`)))

		select {
		case status := <-resolved:
			assert.True(t, status.IsFinal())
		case <-time.After(5 * time.Second):
			t.Fatal("event was never resolved")
		}
	})
}

// scriptedFeed fails the first subscriptions and then hands out a channel-backed stream
type scriptedFeed struct {
	failures int32
	attempts int32
	events   chan event.Event
}

func (f *scriptedFeed) Subscribe(ctx context.Context, endpointID string) (relay.Stream, error) {
	if atomic.AddInt32(&f.attempts, 1) <= f.failures {
		return nil, errors.New("connection reset")
	}
	return &chanStream{events: f.events, closed: make(chan struct{})}, nil
}

type chanStream struct {
	events chan event.Event
	closed chan struct{}
	once   sync.Once
}

func (s *chanStream) Next(ctx context.Context) (event.Event, error) {
	select {
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	case <-s.closed:
		return event.Event{}, relay.ErrStreamClosed
	case ev := <-s.events:
		return ev, nil
	}
}

func (s *chanStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestClient_Reconnect(t *testing.T) {
	ctx := context.Background()
	var hits int32
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer local.Close()
	host, port := hostPort(t, local.URL)

	store := memory.New()
	events := store.Events()
	feed := &scriptedFeed{failures: 3, events: make(chan event.Event, 4)}
	client := relay.NewClient(relay.Config{
		EndpointID:     "ep-1",
		Host:           host,
		Port:           port,
		ReconnectDelay: 10 * time.Millisecond,
		Feed:           feed,
		Events:         event.NewService(events, 3),
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, client.Start(ctx))
	defer client.Stop(ctx)

	ev := newEvent("ev-1", "/hook", `{}`)
	require.NoError(t, events.Insert(ctx, ev))
	feed.events <- ev

	done := ev
	done.ID = "ev-replayed"
	done.Status = event.Completed
	feed.events <- done

	waitStatus(t, events, "ev-1", event.Completed)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&feed.attempts), int32(4))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_Stop(t *testing.T) {
	ctx := context.Background()

	t.Run("success - waits for in-flight deliveries then disconnects once", func(t *testing.T) {
		release := make(chan struct{})
		arrived := make(chan struct{}, 1)
		local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			arrived <- struct{}{}
			<-release
			w.WriteHeader(http.StatusOK)
		}))
		defer local.Close()
		host, port := hostPort(t, local.URL)

		store := memory.New()
		events := store.Events()
		conns := store.Connections()
		feed := watch(events)
		manager := connection.NewManager(connection.ManagerConfig{Repo: conns, EndpointID: "ep-1", ClientID: "laptop", Logger: zerolog.Nop()})
		client := relay.NewClient(relay.Config{EndpointID: "ep-1", Host: host, Port: port, Feed: feed, Events: event.NewService(events, 3), Connections: manager, Logger: zerolog.Nop()})
		require.NoError(t, client.Start(ctx))

		open, err := conns.GetOpen(ctx, "ep-1")
		require.NoError(t, err)
		require.NotNil(t, open)
		feed.wait(t)

		require.NoError(t, events.Insert(ctx, newEvent("ev-1", "/slow", `{}`)))
		<-arrived

		stopped := make(chan struct{})
		go func() {
			client.Stop(ctx)
			close(stopped)
		}()

		select {
		case <-stopped:
			t.Fatal("stop returned before the in-flight delivery finished")
		case <-time.After(50 * time.Millisecond):
		}
		close(release)
		<-stopped
		client.Stop(ctx)

		got, err := events.Get(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, event.Completed, got.Status)

		open, err = conns.GetOpen(ctx, "ep-1")
		require.NoError(t, err)
		assert.Nil(t, open)
		ep, err := conns.GetEndpoint(ctx, "ep-1")
		require.NoError(t, err)
		assert.Equal(t, connection.Inactive, ep.Status)
		assert.Equal(t, connection.Stopped, manager.State())
	})

	t.Run("error - start after stop", func(t *testing.T) {
		events := memory.New().Events()
		feed := watch(events)
		client := relay.NewClient(relay.Config{EndpointID: "ep-1", Port: 1, Feed: feed, Events: event.NewService(events, 3), Logger: zerolog.Nop()})

		client.Stop(ctx)
		client.Stop(ctx)

		assert.ErrorIs(t, client.Start(ctx), connection.ErrStopped)
	})
}
