package connection_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/connection/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newManager(repo connection.Repository, interval time.Duration) *connection.Manager {
	return connection.NewManager(connection.ManagerConfig{
		Repo:              repo,
		EndpointID:        "ep-1",
		ClientID:          "laptop",
		HeartbeatInterval: interval,
		Logger:            zerolog.Nop(),
	})
}

func TestManager_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success - inserts row and activates endpoint", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		m := newManager(repo, time.Hour)

		repo.On("DisconnectOpen", ctx, "ep-1", mock.Anything).Return(nil).Once()
		repo.On("Insert", ctx, mock.MatchedBy(func(c connection.Connection) bool {
			return c.EndpointID == "ep-1" && c.ClientID == "laptop" && c.IsOpen() && c.ID != ""
		})).Return(nil).Once()
		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Active, mock.Anything).Return(nil).Once()

		c, ok := m.Create(ctx)

		require.True(t, ok)
		assert.Equal(t, "ep-1", c.EndpointID)
		assert.Equal(t, connection.Created, m.State())
	})

	t.Run("error - insert failure is not fatal", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		m := newManager(repo, time.Hour)

		repo.On("DisconnectOpen", ctx, "ep-1", mock.Anything).Return(nil)
		repo.On("Insert", ctx, mock.Anything).Return(errors.New("db down"))

		_, ok := m.Create(ctx)

		assert.False(t, ok)
		_, has := m.Connection()
		assert.False(t, has)
	})

	t.Run("error - endpoint status failure keeps the connection", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		m := newManager(repo, time.Hour)

		repo.On("DisconnectOpen", ctx, "ep-1", mock.Anything).Return(errors.New("timeout"))
		repo.On("Insert", ctx, mock.Anything).Return(nil)
		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Active, mock.Anything).Return(errors.New("timeout"))

		_, ok := m.Create(ctx)

		assert.True(t, ok)
	})

	t.Run("success - no-op after stop", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		m := newManager(repo, time.Hour)

		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Inactive, mock.Anything).Return(nil).Once()
		m.Stop(ctx)

		_, ok := m.Create(ctx)
		assert.False(t, ok)
	})
}

func TestManager_Heartbeat(t *testing.T) {
	ctx := context.Background()

	t.Run("success - pings until stopped, failures do not stop the timer", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		m := newManager(repo, 10*time.Millisecond)

		repo.On("DisconnectOpen", ctx, "ep-1", mock.Anything).Return(nil)
		repo.On("Insert", ctx, mock.Anything).Return(nil)
		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Active, mock.Anything).Return(nil).Once()

		c, ok := m.Create(ctx)
		require.True(t, ok)

		var mu sync.Mutex
		pings := 0
		repo.On("Ping", mock.Anything, c.ID, mock.Anything).Return(errors.New("flaky")).Run(func(mock.Arguments) {
			mu.Lock()
			pings++
			mu.Unlock()
		})
		refreshes := 0
		repo.On("RefreshEndpoint", mock.Anything, "ep-1", mock.Anything).Return(nil).Run(func(mock.Arguments) {
			mu.Lock()
			refreshes++
			mu.Unlock()
		})

		require.NoError(t, m.StartHeartbeat())
		require.NoError(t, m.StartHeartbeat())
		assert.Equal(t, connection.Running, m.State())

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return pings >= 3 && refreshes >= 3
		}, time.Second, 5*time.Millisecond)
		// the connect time stays the one written by Create
		repo.AssertNumberOfCalls(t, "SetEndpointStatus", 1)

		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Inactive, mock.Anything).Return(nil).Once()
		repo.On("Disconnect", ctx, c.ID, mock.Anything).Return(nil).Once()
		m.Stop(ctx)

		mu.Lock()
		after := pings
		mu.Unlock()
		time.Sleep(40 * time.Millisecond)
		mu.Lock()
		assert.Equal(t, after, pings)
		mu.Unlock()
	})

	t.Run("error - start after stop", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		m := newManager(repo, time.Hour)

		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Inactive, mock.Anything).Return(nil)
		m.Stop(ctx)

		assert.ErrorIs(t, m.StartHeartbeat(), connection.ErrStopped)
	})
}

func TestManager_Stop(t *testing.T) {
	ctx := context.Background()

	t.Run("success - idempotent", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		m := newManager(repo, time.Hour)

		repo.On("DisconnectOpen", ctx, "ep-1", mock.Anything).Return(nil)
		repo.On("Insert", ctx, mock.Anything).Return(nil)
		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Active, mock.Anything).Return(nil)
		c, ok := m.Create(ctx)
		require.True(t, ok)
		require.NoError(t, m.StartHeartbeat())

		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Inactive, mock.Anything).Return(nil).Once()
		repo.On("Disconnect", ctx, c.ID, mock.Anything).Return(nil).Once()

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Stop(ctx)
			}()
		}
		wg.Wait()
		m.Stop(ctx)

		assert.Equal(t, connection.Stopped, m.State())
		got, _ := m.Connection()
		assert.False(t, got.IsOpen())
		repo.AssertNumberOfCalls(t, "Disconnect", 1)
	})

	t.Run("success - before create only marks endpoint inactive", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		m := newManager(repo, time.Hour)

		repo.On("SetEndpointStatus", ctx, "ep-1", connection.Inactive, mock.Anything).Return(nil).Once()

		m.Stop(ctx)
		m.Stop(ctx)

		repo.AssertNotCalled(t, "Disconnect", mock.Anything, mock.Anything, mock.Anything)
	})
}
