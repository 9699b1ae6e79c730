package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"noe/internal/infra/obs"
)

// Lifecycle events dispatched locally; they never travel over the wire.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

const (
	defaultReconnectDelay = time.Second
	defaultPingInterval   = 25 * time.Second
	defaultPongTimeout    = 20 * time.Second
	writeWait             = 5 * time.Second
)

// Handler receives the raw data of an event. Lifecycle events carry nil.
type Handler func(data json.RawMessage)

// Subscription identifies one registered handler.
type Subscription struct {
	event string
	id    uint64
}

// Config defines the event channel settings.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	// Header is evaluated on every dial so a fresh bearer token is sent after re-login.
	Header func() http.Header
	Dialer *websocket.Dialer
	// PingInterval is how often the client pings. A connection that stays
	// silent for PingInterval+PongTimeout is dropped and redialed.
	PingInterval time.Duration
	PongTimeout  time.Duration
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Conn is a best-effort realtime channel. It keeps at most one live websocket
// and redials forever with a fixed delay after every failure or drop.
type Conn struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string][]subscriber
	nextID   uint64
	ws       *websocket.Conn
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu   sync.Mutex
	connected atomic.Bool
}

func New(cfg Config, logger *slog.Logger) (*Conn, error) {
	if cfg.URL == "" {
		return nil, errors.New("socket: url required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second, Proxy: http.ProxyFromEnvironment}
	}
	if logger == nil {
		logger = obs.Discard()
	}
	return &Conn{
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger,
		handlers: make(map[string][]subscriber),
	}, nil
}

// Connect starts the connection loop. It returns immediately and is a no-op
// while the loop is already running. The loop stops on Close or when ctx ends.
func (c *Conn) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
}

// Close stops the loop and drops the live connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Connected reports whether a websocket is currently live.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

// Emit sends an event without waiting for any acknowledgement. Events emitted
// while offline are dropped.
func (c *Conn) Emit(event string, payload any) {
	data, err := json.Marshal(outFrame{Event: event, Data: payload})
	if err != nil {
		c.logger.Warn("socket emit encode failed", "event", event, "error", err)
		return
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		c.logger.Debug("socket offline, event dropped", "event", event)
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Warn("socket emit failed", "event", event, "error", err)
	}
}

// On registers handler for event. Several handlers may share an event; all of
// them run, in registration order.
func (c *Conn) On(event string, handler Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	sub := Subscription{event: event, id: c.nextID}
	c.handlers[event] = append(c.handlers[event], subscriber{id: sub.id, handler: handler})
	return sub
}

// Off removes a handler registered with On. Unknown subscriptions are ignored.
func (c *Conn) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.handlers[sub.event]
	for i, s := range list {
		if s.id != sub.id {
			continue
		}
		next := make([]subscriber, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(c.handlers, sub.event)
		} else {
			c.handlers[sub.event] = next
		}
		return
	}
}

func (c *Conn) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	attempt := 0
	for {
		ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.header())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			c.logger.Debug("socket dial failed", "url", c.cfg.URL, "attempt", attempt, "error", err)
		} else {
			attempt = 0
			c.serve(ctx, ws)
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("socket disconnected, reconnecting", "delay", c.cfg.ReconnectDelay)
		}
		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Conn) serve(ctx context.Context, ws *websocket.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	c.connected.Store(true)
	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer func() {
		stop()
		c.connected.Store(false)
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		_ = ws.Close()
		c.dispatch(EventDisconnect, nil)
	}()

	readWait := c.cfg.PingInterval + c.cfg.PongTimeout
	extend := func(string) error { return ws.SetReadDeadline(time.Now().Add(readWait)) }
	_ = extend("")
	ws.SetPongHandler(extend)
	beat := make(chan struct{})
	defer close(beat)
	go c.heartbeat(ws, beat)

	c.logger.Info("socket connected", "url", c.cfg.URL)
	c.dispatch(EventConnect, nil)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("socket read failed", "error", err)
			}
			return
		}
		_ = extend("")
		var f frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			c.logger.Warn("socket frame ignored", "error", err)
			continue
		}
		c.dispatch(f.Event, f.Data)
	}
}

// heartbeat pings until stop closes or a ping cannot be written. The read
// deadline in serve drops the connection when pongs stop coming back.
func (c *Conn) heartbeat(ws *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (c *Conn) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	list := append([]subscriber(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, s := range list {
		c.call(event, s.handler, data)
	}
}

func (c *Conn) call(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("socket handler panicked", "event", event, "panic", r)
		}
	}()
	h(data)
}

func (c *Conn) header() http.Header {
	if c.cfg.Header == nil {
		return nil
	}
	return c.cfg.Header()
}
