package hub

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/relaysync/event"
	"github.com/opd-ai/relaysync/messaging"
)

func startServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := New(Config{}, NewMetrics(reg))
	ctx, cancel := contextWithCleanup(t)
	go h.Run(ctx)
	srv := httptest.NewServer(NewRouter(h, reg))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) event.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := event.Unmarshal(frame)
	require.NoError(t, err)
	return ev
}

func write(t *testing.T, conn *websocket.Conn, ev event.Event) {
	t.Helper()
	frame, err := event.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestWebsocketSession(t *testing.T) {
	h, srv := startServer(t)

	a := dial(t, srv, "client_id=client-a&name=Alice")
	assert.Equal(t, event.HistorySnapshot{}, read(t, a))
	assert.Equal(t, event.OnlineCount(1), read(t, a))

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus","data":1}`)))
	write(t, a, event.Message{Message: msg("m1", "client-a")})

	echo, ok := read(t, a).(event.Message)
	require.True(t, ok)
	assert.Equal(t, "m1", echo.ID)
	assert.Equal(t, event.StatusUpdate{ID: "m1", Status: messaging.StatusDelivered}, read(t, a))

	b := dial(t, srv, "client_id=client-b")
	snap, ok := read(t, b).(event.HistorySnapshot)
	require.True(t, ok)
	require.Len(t, snap, 1)
	assert.Equal(t, "m1", snap[0].ID)

	b.Close()
	assert.Eventually(t, func() bool { return h.Online() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketRequiresClientID(t *testing.T) {
	_, srv := startServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := startServer(t)
	dial(t, srv, "client_id=client-a")

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "relaysync_hub_sessions")
}
