// websocket.go
// Browsers join the same relay over a websocket. One text frame carries one protocol line
// in each direction, so a session cannot tell a websocket client from a TCP one.
// Keep CheckOrigin permissive only for local use; in production lock it down.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const closeWait = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, validate the origin here.
	},
}

func (s *Server) websocketHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	return mux
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(int64(s.cfg.MaxLineBytes))

	s.start(&wsConn{conn: conn}, r.RemoteAddr)
}

func (s *Server) ListenAndServeWebSocket(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.WSAddr,
		Handler:           s.websocketHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		srv.Close()
	})
	defer stop()

	s.log.Info("websocket bridge listening", "addr", s.cfg.WSAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket bridge on %s: %w", s.cfg.WSAddr, err)
	}
	return nil
}

// wsConn adapts a websocket to the byte stream a session expects.
// Read must only be called from one goroutine; Write calls are serialized by the session.
type wsConn struct {
	conn    *websocket.Conn
	pending []byte
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.pending = append(trimTerminator(data), crlf...)
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends one response line as one text frame.
func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(p, []byte(crlf))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal-closure frame, then drops the connection. A peer that is
// already gone makes the close frame fail; that error is returned with the close error.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
	if werr != nil {
		werr = fmt.Errorf("send close frame: %w", werr)
	}
	return errors.Join(werr, c.conn.Close())
}
