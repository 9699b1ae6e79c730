package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	conns   chan *websocket.Conn
	headers chan http.Header
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := &testServer{conns: make(chan *websocket.Conn, 8), headers: make(chan http.Header, 8)}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.headers <- r.Header.Clone()
		ts.conns <- ws
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-ts.conns:
		t.Cleanup(func() { _ = ws.Close() })
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(outFrame{Event: event, Data: data}))
}

func newConn(t *testing.T, url string) *Conn {
	t.Helper()
	c, err := New(Config{
		URL:            url,
		ReconnectDelay: 20 * time.Millisecond,
		Header: func() http.Header {
			return http.Header{"Authorization": []string{"Bearer tok"}}
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitConnected(t *testing.T, c *Conn) {
	t.Helper()
	require.Eventually(t, c.Connected, 2*time.Second, 5*time.Millisecond)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestAllSubscribersReceiveEvent(t *testing.T) {
	ts := newTestServer(t)
	c := newConn(t, ts.url())

	var first, second atomic.Int32
	c.On("newMessage", func(data json.RawMessage) {
		assert.JSONEq(t, `{"id":"m1"}`, string(data))
		first.Add(1)
	})
	c.On("newMessage", func(json.RawMessage) { second.Add(1) })

	c.Connect(context.Background())
	server := ts.accept(t)
	assert.Equal(t, "Bearer tok", (<-ts.headers).Get("Authorization"))
	waitConnected(t, c)

	send(t, server, "newMessage", map[string]string{"id": "m1"})
	require.Eventually(t, func() bool { return first.Load() == 1 && second.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestOffRemovesOnlyThatHandler(t *testing.T) {
	ts := newTestServer(t)
	c := newConn(t, ts.url())

	var kept, removed atomic.Int32
	c.On("unreadUpdate", func(json.RawMessage) { kept.Add(1) })
	sub := c.On("unreadUpdate", func(json.RawMessage) { removed.Add(1) })
	c.Off(sub)
	c.Off(sub)

	c.Connect(context.Background())
	server := ts.accept(t)
	waitConnected(t, c)

	send(t, server, "unreadUpdate", map[string]string{"chatId": "c1"})
	send(t, server, "unreadUpdate", map[string]string{"chatId": "c2"})
	require.Eventually(t, func() bool { return kept.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, removed.Load())
}

func TestEmitReachesServer(t *testing.T) {
	ts := newTestServer(t)
	c := newConn(t, ts.url())
	c.Connect(context.Background())
	server := ts.accept(t)
	waitConnected(t, c)

	c.Emit("joinChat", map[string]string{"userId": "u1"})

	_ = server.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got frame
	require.NoError(t, server.ReadJSON(&got))
	assert.Equal(t, "joinChat", got.Event)
	assert.JSONEq(t, `{"userId":"u1"}`, string(got.Data))
}

func TestEmitOfflineIsDropped(t *testing.T) {
	c := newConn(t, "ws://127.0.0.1:1/ws")
	assert.NotPanics(t, func() { c.Emit("joinChat", map[string]string{"userId": "u1"}) })
	assert.False(t, c.Connected())
}

func TestConnectIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	c := newConn(t, ts.url())
	c.Connect(context.Background())
	c.Connect(context.Background())
	ts.accept(t)
	waitConnected(t, c)

	select {
	case <-ts.conns:
		t.Fatal("second connection opened")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReconnectRunsConnectHooksAgain(t *testing.T) {
	ts := newTestServer(t)
	c := newConn(t, ts.url())

	var connects, disconnects atomic.Int32
	c.On(EventConnect, func(json.RawMessage) { connects.Add(1) })
	c.On(EventDisconnect, func(json.RawMessage) { disconnects.Add(1) })

	c.Connect(context.Background())
	first := ts.accept(t)
	waitConnected(t, c)
	require.NoError(t, first.Close())

	second := ts.accept(t)
	require.Eventually(t, func() bool { return connects.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, disconnects.Load(), int32(1))

	var got atomic.Bool
	c.On("newMessage", func(json.RawMessage) { got.Store(true) })
	send(t, second, "newMessage", map[string]string{"id": "m2"})
	require.Eventually(t, got.Load, time.Second, 5*time.Millisecond)
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	ts := newTestServer(t)
	c := newConn(t, ts.url())

	var after atomic.Int32
	c.On("newMessage", func(json.RawMessage) { panic("boom") })
	c.On("newMessage", func(json.RawMessage) { after.Add(1) })

	c.Connect(context.Background())
	server := ts.accept(t)
	waitConnected(t, c)

	send(t, server, "newMessage", map[string]string{"id": "m1"})
	send(t, server, "newMessage", map[string]string{"id": "m2"})
	require.Eventually(t, func() bool { return after.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.Connected())
}

func TestMalformedFrameIgnored(t *testing.T) {
	ts := newTestServer(t)
	c := newConn(t, ts.url())

	var mu sync.Mutex
	var events []string
	c.On("newMessage", func(json.RawMessage) {
		mu.Lock()
		events = append(events, "newMessage")
		mu.Unlock()
	})

	c.Connect(context.Background())
	server := ts.accept(t)
	waitConnected(t, c)

	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
	send(t, server, "newMessage", map[string]string{"id": "m1"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCloseStopsLoop(t *testing.T) {
	ts := newTestServer(t)
	c := newConn(t, ts.url())
	c.Connect(context.Background())
	ts.accept(t)
	waitConnected(t, c)

	require.NoError(t, c.Close())
	assert.False(t, c.Connected())
	require.NoError(t, c.Close())

	select {
	case <-ts.conns:
		t.Fatal("reconnected after close")
	case <-time.After(100 * time.Millisecond):
	}
}

func newHeartbeatConn(t *testing.T, url string) *Conn {
	t.Helper()
	c, err := New(Config{
		URL:            url,
		ReconnectDelay: 20 * time.Millisecond,
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    100 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSilentPeerIsDroppedAndRedialed(t *testing.T) {
	ts := newTestServer(t)
	c := newHeartbeatConn(t, ts.url())
	var drops atomic.Int32
	c.On(EventDisconnect, func(json.RawMessage) { drops.Add(1) })
	c.Connect(context.Background())

	// Never reading means pings are never answered.
	ts.accept(t)
	second := ts.accept(t)
	assert.GreaterOrEqual(t, drops.Load(), int32(1))

	go func() {
		for {
			if _, _, err := second.ReadMessage(); err != nil {
				return
			}
		}
	}()
	waitConnected(t, c)
}

func TestAnsweredPingsKeepConnection(t *testing.T) {
	ts := newTestServer(t)
	c := newHeartbeatConn(t, ts.url())
	var drops atomic.Int32
	c.On(EventDisconnect, func(json.RawMessage) { drops.Add(1) })
	c.Connect(context.Background())

	ws := ts.accept(t)
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
	waitConnected(t, c)

	time.Sleep(300 * time.Millisecond)
	assert.True(t, c.Connected())
	assert.Zero(t, drops.Load())
	select {
	case <-ts.conns:
		t.Fatal("redialed a healthy connection")
	default:
	}
}
