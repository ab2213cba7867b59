package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/metrics"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
)

const (
	defaultPath             = "/ws"
	defaultReconnectDelay   = time.Second
	defaultHandshakeTimeout = 10 * time.Second
	closeWriteTimeout       = time.Second
)

var errTokenRequired = errors.New("realtime token is required")

// ConnectionState is the observable status of the push connection.
type ConnectionState struct {
	IsConnected       bool   `json:"is_connected"`
	ConnectionError   string `json:"connection_error,omitempty"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
}

// Handler receives every lifecycle and domain event in arrival order.
// Handlers run on the channel's read goroutine and must not call Disconnect.
type Handler interface {
	HandleEvent(ctx context.Context, event Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event)

func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// Options configures a Channel.
type Options struct {
	BaseURL           string
	Path              string
	Reconnect         bool
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
	Handler           Handler
	Registry          *DecoderRegistry
	Dialer            *websocket.Dialer
	Logger            *logger.Logger
	Metrics           *metrics.ClientMetrics
}

// Channel owns at most one websocket connection at a time.
type Channel struct {
	baseURL  string
	path     string
	policy   reconnectPolicy
	handler  Handler
	registry *DecoderRegistry
	dialer   *websocket.Dialer
	logg     *logger.Logger
	metrics  *metrics.ClientMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	stateMu sync.RWMutex
	state   ConnectionState
}

type reconnectPolicy struct {
	enabled  bool
	attempts int
	delay    time.Duration
}

// backoff yields a fresh fixed-delay schedule for one connection cycle.
func (p reconnectPolicy) backoff() retry.Backoff {
	retries := uint64(0)
	if p.enabled && p.attempts > 0 {
		retries = uint64(p.attempts)
	}
	return retry.WithMaxRetries(retries, retry.NewConstant(p.delay))
}

func New(opts Options) (*Channel, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		return nil, errors.New("realtime base url is required")
	}
	if _, err := EndpointURL(base, opts.Path, "check"); err != nil {
		return nil, err
	}

	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	dialer := opts.Dialer
	if dialer == nil {
		timeout := opts.HandshakeTimeout
		if timeout <= 0 {
			timeout = defaultHandshakeTimeout
		}
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		}
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	handler := opts.Handler
	if handler == nil {
		handler = HandlerFunc(func(context.Context, Event) {})
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	return &Channel{
		baseURL: base,
		path:    opts.Path,
		policy: reconnectPolicy{
			enabled:  opts.Reconnect,
			attempts: opts.ReconnectAttempts,
			delay:    delay,
		},
		handler:  handler,
		registry: registry,
		dialer:   dialer,
		logg:     logg,
		metrics:  opts.Metrics,
	}, nil
}

// EndpointURL derives the websocket URL from the REST base URL.
func EndpointURL(baseURL, path, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return "", fmt.Errorf("parsing realtime base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported realtime scheme %q", u.Scheme)
	}
	if path == "" {
		path = defaultPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect starts the connection loop. It is a no-op while a loop is already
// running, so repeated calls never open a second connection.
func (c *Channel) Connect(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errTokenRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go c.run(loopCtx, token, done)
	return nil
}

// Disconnect closes the transport, stops reconnection and resets the state.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.setState(ConnectionState{})
}

// Active reports whether a connection loop is running.
func (c *Channel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Channel) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Channel) run(ctx context.Context, token string, done chan struct{}) {
	defer close(done)
	defer c.releaseLoop(done)

	for cycle := 0; ; cycle++ {
		if cycle > 0 {
			c.metrics.IncReconnect()
		}
		conn, err := c.dialWithRetry(ctx, token)
		if err != nil {
			if ctx.Err() == nil {
				c.logg.Warn(ctx, "realtime connection attempts exhausted")
			}
			return
		}
		c.serve(ctx, conn)
		if ctx.Err() != nil || !c.policy.enabled {
			return
		}
	}
}

// releaseLoop clears the loop handle when the loop ends on its own so a later
// Connect can start a new one.
func (c *Channel) releaseLoop(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == done {
		c.cancel()
		c.cancel, c.done = nil, nil
	}
}

func (c *Channel) dialWithRetry(ctx context.Context, token string) (*websocket.Conn, error) {
	endpoint, err := EndpointURL(c.baseURL, c.path, token)
	if err != nil {
		return nil, err
	}

	var conn *websocket.Conn
	err = retry.Do(ctx, c.policy.backoff(), func(ctx context.Context) error {
		ws, resp, dialErr := c.dialer.DialContext(ctx, endpoint, nil)
		if dialErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if resp != nil {
				dialErr = fmt.Errorf("%w (status %d)", dialErr, resp.StatusCode)
			}
			c.connectFailed(ctx, dialErr)
			return retry.RetryableError(dialErr)
		}
		conn = ws
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	c.setState(ConnectionState{IsConnected: true})
	c.dispatch(ctx, Connected{})

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
			_ = conn.Close()
		case <-stop:
		}
	}()

	var readErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		c.handleFrame(ctx, data)
	}
	close(stop)
	_ = conn.Close()

	if ctx.Err() != nil {
		return
	}

	reason := "transport closed"
	var closeErr *websocket.CloseError
	if errors.As(readErr, &closeErr) {
		reason = closeErr.Error()
	}
	c.updateState(func(s *ConnectionState) { s.IsConnected = false })
	c.dispatch(ctx, Disconnected{Reason: reason})
}

func (c *Channel) connectFailed(ctx context.Context, err error) {
	var attempt int
	c.updateState(func(s *ConnectionState) {
		s.IsConnected = false
		s.ConnectionError = err.Error()
		s.ReconnectAttempts++
		attempt = s.ReconnectAttempts
	})
	c.dispatch(ctx, ConnectError{Message: err.Error(), Attempt: attempt})
}

func (c *Channel) handleFrame(ctx context.Context, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logg.Warn(ctx, "dropping malformed realtime frame")
		return
	}
	ctx = c.logg.WithEvent(ctx, frame.Event)

	name, err := enums.ParseRealtimeEvent(frame.Event)
	if err != nil || name.IsLifecycle() {
		c.logg.Warn(ctx, "dropping unknown realtime event")
		return
	}
	event, err := c.registry.Decode(name, frame.Data)
	if err != nil {
		c.logg.Error(ctx, "dropping invalid realtime payload", err)
		return
	}
	c.dispatch(ctx, event)
}

func (c *Channel) dispatch(ctx context.Context, event Event) {
	c.metrics.IncRealtimeEvent(event.Name().String())
	defer func() {
		if r := recover(); r != nil {
			c.logg.Error(ctx, "realtime handler panicked", fmt.Errorf("%v", r))
		}
	}()
	c.handler.HandleEvent(ctx, event)
}

func (c *Channel) setState(state ConnectionState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
}

func (c *Channel) updateState(fn func(*ConnectionState)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	fn(&c.state)
}
