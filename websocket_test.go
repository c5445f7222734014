package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWebSocket(t *testing.T, srv *Server, url string) *websocket.Conn {
	t.Helper()

	before := srv.manager.Len()
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))

	require.Eventually(t, func() bool {
		return srv.manager.Len() > before
	}, testTimeout, 5*time.Millisecond)
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	return string(data)
}

func TestWebSocketBridgeSharesRelay(t *testing.T) {
	srv, addr := startServer(t, nil)
	ts := httptest.NewServer(srv.websocketHandler())
	defer ts.Close()

	tcp := connect(t, srv, addr)
	ws := dialWebSocket(t, srv, ts.URL)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("NAME web")))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("BROADCAST hello there")))
	assert.Equal(t, "FROM web hello there", readText(t, ws))
	tcp.expect("FROM web hello there")

	tcp.send("NAME term")
	tcp.send("BROADCAST back")
	tcp.expect("FROM term back")
	assert.Equal(t, "FROM term back", readText(t, ws))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("WHO\r\n")))
	assert.Equal(t, "NAMES term web", readText(t, ws))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("HELLO")))
	assert.Equal(t, "ERROR HELLO", readText(t, ws))
}

func TestWebSocketQuitClosesConnection(t *testing.T) {
	srv, _ := startServer(t, nil)
	ts := httptest.NewServer(srv.websocketHandler())
	defer ts.Close()

	ws := dialWebSocket(t, srv, ts.URL)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("QUIT")))

	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool {
		return srv.manager.Len() == 0
	}, testTimeout, 5*time.Millisecond)
}

func TestWebSocketRejectsPlainHTTP(t *testing.T) {
	srv := NewServer(DefaultConfig(), discardLogger())
	ts := httptest.NewServer(srv.websocketHandler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	assert.Equal(t, 400, resp.StatusCode)
	assert.Zero(t, srv.manager.Len())
}

func TestServerRunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.WSAddr = "127.0.0.1:0"
	srv := NewServer(cfg, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWSConnCloseReportsFailedCloseFrame(t *testing.T) {
	accepted := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- conn
	}))
	defer ts.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	var server *wsConn
	select {
	case conn := <-accepted:
		server = &wsConn{conn: conn}
	case <-time.After(testTimeout):
		t.Fatal("no websocket accepted")
	}

	require.NoError(t, server.Close())

	err = server.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, websocket.ErrCloseSent)
	assert.Contains(t, err.Error(), "send close frame")
}
