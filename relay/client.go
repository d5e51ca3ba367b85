package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultHost           = "localhost"
	DefaultRequestTimeout = 30 * time.Second
	DefaultReconnectDelay = 5 * time.Second

	resolveTimeout   = 10 * time.Second
	maxResponseBytes = 10 << 20
)

// skipHeaders are recomputed by the HTTP client and never copied
var skipHeaders = map[string]bool{
	"host":              true,
	"content-length":    true,
	"connection":        true,
	"transfer-encoding": true,
}

type Config struct {
	EndpointID     string
	Host           string
	Port           int
	RequestTimeout time.Duration
	ReconnectDelay time.Duration

	Feed Feed
	// Events is usually an *event.Service
	Events event.Resolver
	// Connections is optional; without it no connection record is kept
	Connections *connection.Manager
	HTTPClient  *http.Client
	Recorder    metrics.Recorder
	Logger      zerolog.Logger
}

/* Client forwards the events of one endpoint to a local service
 * Each event is delivered by its own goroutine and always ends completed or failed
 */
type Client struct {
	endpointID     string
	baseURL        string
	requestTimeout time.Duration
	reconnectDelay time.Duration
	feed           Feed
	events         event.Resolver
	conns          *connection.Manager
	http           *http.Client
	recorder       metrics.Recorder
	logger         zerolog.Logger
	now            func() time.Time

	mu       sync.Mutex
	state    connection.State
	cancel   context.CancelFunc
	stream   Stream
	loopDone chan struct{}
	inflight sync.WaitGroup
}

func NewClient(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NopRecorder{}
	}
	return &Client{
		endpointID:     cfg.EndpointID,
		baseURL:        "http://" + cfg.Host + ":" + strconv.Itoa(cfg.Port),
		requestTimeout: cfg.RequestTimeout,
		reconnectDelay: cfg.ReconnectDelay,
		feed:           cfg.Feed,
		events:         cfg.Events,
		conns:          cfg.Connections,
		http:           cfg.HTTPClient,
		recorder:       cfg.Recorder,
		logger:         cfg.Logger.With().Str("endpoint_id", cfg.EndpointID).Logger(),
		now:            time.Now,
		state:          connection.Created,
	}
}

// Start records the connection, starts the heartbeat and begins consuming the feed
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case connection.Stopped:
		c.mu.Unlock()
		return connection.ErrStopped
	case connection.Running:
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loopDone = make(chan struct{})
	c.state = connection.Running
	c.mu.Unlock()

	if c.conns != nil {
		c.conns.Create(ctx)
		if err := c.conns.StartHeartbeat(); err != nil {
			c.logger.Warn().Err(err).Msg("starting heartbeat")
		}
	}

	c.logger.Info().Str("target", c.baseURL).Msg("relay started")
	go c.run(runCtx)
	return nil
}

// Wait blocks until the relay has stopped and every in-flight delivery has finished
func (c *Client) Wait() {
	c.mu.Lock()
	done := c.loopDone
	c.mu.Unlock()
	if done != nil {
		<-done
	}
	c.inflight.Wait()
}

/* Stop ends the subscription, lets in-flight deliveries reach their terminal state
 * and only then closes the connection record; only the first call has any effect
 */
func (c *Client) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.state == connection.Stopped {
		c.mu.Unlock()
		return
	}
	wasRunning := c.state == connection.Running
	c.state = connection.Stopped
	cancel, stream, done := c.cancel, c.stream, c.loopDone
	c.mu.Unlock()

	if wasRunning {
		cancel()
		if stream != nil {
			_ = stream.Close()
		}
		<-done
		c.inflight.Wait()
	}
	if c.conns != nil {
		c.conns.Stop(ctx)
	}
	c.logger.Info().Msg("relay stopped")
}

func (c *Client) run(ctx context.Context) {
	defer close(c.loopDone)

	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().Err(err).Dur("retry_in", c.reconnectDelay).Msg("event stream interrupted, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) consume(ctx context.Context) error {
	stream, err := c.feed.Subscribe(ctx, c.endpointID)
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	c.setStream(stream)
	defer func() {
		c.setStream(nil)
		_ = stream.Close()
	}()

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		c.dispatch(ev)
	}
}

func (c *Client) setStream(s Stream) {
	c.mu.Lock()
	c.stream = s
	c.mu.Unlock()
}

// dispatch ignores replayed notifications of events that already left pending
func (c *Client) dispatch(ev event.Event) {
	if ev.Status != event.Pending {
		c.logger.Debug().Str("event_id", ev.ID).Str("status", ev.Status.String()).Msg("ignoring non-pending event")
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.deliver(ev)
	}()
}

func (c *Client) deliver(ev event.Event) {
	logger := c.logger.With().Str("event_id", ev.ID).Logger()
	start := c.now()

	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	resp, err := c.forward(ctx, ev.Request)
	cancel()

	status := event.Completed
	if err != nil {
		status = event.Failed
		resp = event.Response{
			Status:  http.StatusInternalServerError,
			Headers: map[string]string{"content-type": "text/plain"},
			Body:    []byte(err.Error()),
		}
		logger.Warn().Err(err).Msg("delivery to local service failed")
	}

	writeCtx, cancelWrite := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancelWrite()
	if err := c.events.Resolve(writeCtx, ev.ID, status, resp); err != nil {
		logger.Error().Err(err).Str("status", status.String()).Msg("writing delivery result")
	}

	c.recorder.DeliveryFinished(writeCtx, c.endpointID, status.String(), c.now().Sub(start))
	logger.Info().Str("status", status.String()).Int("response_status", resp.Status).Msg("event delivered")
}

func (c *Client) forward(ctx context.Context, r event.Request) (event.Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodPost
	}
	target := c.baseURL + targetPath(r)

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(r.Body))
	if err != nil {
		return event.Response{}, fmt.Errorf("building request to %s: %w", target, err)
	}
	for k, v := range r.Headers {
		if skipHeaders[strings.ToLower(k)] {
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return event.Response{}, fmt.Errorf("forwarding to %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return event.Response{}, fmt.Errorf("reading response from %s: %w", target, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}
	return event.Response{Status: resp.StatusCode, Headers: headers, Body: body}, nil
}

// targetPath is the original path, recovered from the source URL when it was not captured
func targetPath(r event.Request) string {
	p := r.Path
	if p == "" && r.SourceURL != "" {
		if u, err := url.Parse(r.SourceURL); err == nil {
			p = u.RequestURI()
		}
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
