package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-matching-engine/src/engine"
	"order-matching-engine/src/logger"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) engine.TradeEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev engine.TradeEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubBroadcastsTrades(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c1 := dialHub(t, srv)
	c2 := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 5*time.Second, 10*time.Millisecond)

	hub.OnTrade(sampleEvent(1, "AAPL"))
	hub.OnTrade(sampleEvent(2, "MSFT"))

	for _, c := range []*websocket.Conn{c1, c2} {
		first := readEvent(t, c)
		second := readEvent(t, c)
		assert.Equal(t, uint64(1), first.Seq)
		assert.Equal(t, "AAPL", first.Symbol)
		assert.Equal(t, uint64(2), second.Seq)
		assert.Equal(t, "MSFT", second.Symbol)
	}
}

func TestHubForgetsDisconnectedClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() { hub.OnTrade(sampleEvent(1, "AAPL")) })
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Len())

	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	late := dialHub(t, srv)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(logger.NewNop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	_ = dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	// Large frames the client never reads eventually back up the buffer.
	big := sampleEvent(1, strings.Repeat("X", 64*1024))
	require.Eventually(t, func() bool {
		hub.OnTrade(big)
		return hub.Len() == 0
	}, 10*time.Second, time.Millisecond)
}
