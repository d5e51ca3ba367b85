package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrStopped is returned by operations attempted after Stop
var ErrStopped = errors.New("connection manager stopped")

const DefaultHeartbeatInterval = 30 * time.Second

type ManagerConfig struct {
	Repo              Repository
	EndpointID        string
	ClientID          string
	IPAddress         string
	HeartbeatInterval time.Duration
	Logger            zerolog.Logger
}

/* Manager owns one relay session's connection record and its heartbeat
 * Store failures are logged and never abort the relay
 */
type Manager struct {
	repo       Repository
	endpointID string
	clientID   string
	ipAddress  string
	interval   time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	mu     sync.Mutex
	state  State
	conn   *Connection
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.New().String()
	}
	return &Manager{
		repo:       cfg.Repo,
		endpointID: cfg.EndpointID,
		clientID:   cfg.ClientID,
		ipAddress:  cfg.IPAddress,
		interval:   cfg.HeartbeatInterval,
		logger:     cfg.Logger.With().Str("endpoint_id", cfg.EndpointID).Logger(),
		now:        time.Now,
		state:      Created,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connection returns the current connection record, if one was created
func (m *Manager) Connection() (Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return Connection{}, false
	}
	return *m.conn, true
}

/* Create inserts the connection row and marks the endpoint active
 * Returns false when no record could be written; the caller keeps relaying without one
 */
func (m *Manager) Create(ctx context.Context) (Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Stopped {
		return Connection{}, false
	}
	if m.conn != nil {
		return *m.conn, true
	}

	now := m.now()
	if err := m.repo.DisconnectOpen(ctx, m.endpointID, now); err != nil {
		m.logger.Warn().Err(err).Msg("closing stale connections")
	}

	c := Connection{
		ID:          uuid.New().String(),
		EndpointID:  m.endpointID,
		ClientID:    m.clientID,
		IPAddress:   m.ipAddress,
		ConnectedAt: now,
		LastPingAt:  now,
	}
	if err := m.repo.Insert(ctx, c); err != nil {
		m.logger.Error().Err(err).Msg("creating connection record")
		return Connection{}, false
	}
	m.conn = &c

	if err := m.repo.SetEndpointStatus(ctx, m.endpointID, Active, now); err != nil {
		m.logger.Error().Err(err).Str("connection_id", c.ID).Msg("marking endpoint active")
	}

	m.logger.Info().Str("connection_id", c.ID).Str("client_id", c.ClientID).Msg("connection created")
	return c, true
}

// StartHeartbeat starts the periodic ping; calling it again while running is a no-op
func (m *Manager) StartHeartbeat() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Stopped:
		return ErrStopped
	case Running:
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = Running

	go m.heartbeat(ctx, m.done)
	return nil
}

func (m *Manager) heartbeat(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.beat(ctx)
		}
	}
}

// beat failures are logged and retried on the next tick
func (m *Manager) beat(ctx context.Context) {
	conn, ok := m.Connection()
	now := m.now()

	if ok {
		if err := m.repo.Ping(ctx, conn.ID, now); err != nil {
			m.logger.Warn().Err(err).Str("connection_id", conn.ID).Msg("heartbeat ping failed")
		}
	}
	if err := m.repo.RefreshEndpoint(ctx, m.endpointID, now); err != nil {
		m.logger.Warn().Err(err).Msg("heartbeat endpoint refresh failed")
	}
}

/* Stop cancels the heartbeat, marks the endpoint inactive and disconnects the connection
 * Only the first call has any effect
 */
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	if m.state == Stopped {
		m.mu.Unlock()
		return
	}
	m.state = Stopped
	cancel, done, conn := m.cancel, m.done, m.conn
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	now := m.now()
	if err := m.repo.SetEndpointStatus(ctx, m.endpointID, Inactive, now); err != nil {
		m.logger.Error().Err(err).Msg("marking endpoint inactive")
	}
	if conn == nil {
		return
	}
	if err := m.repo.Disconnect(ctx, conn.ID, now); err != nil {
		m.logger.Error().Err(err).Str("connection_id", conn.ID).Msg("disconnecting connection")
		return
	}

	m.mu.Lock()
	m.conn.DisconnectedAt = &now
	m.mu.Unlock()
	m.logger.Info().Str("connection_id", conn.ID).Msg("connection closed")
}
