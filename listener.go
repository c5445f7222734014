// listener.go
// Accept loop: every connection gets a fresh UUID, an inbox, a registry entry and its own session.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxAcceptBackoff = time.Second

// Server is the relay: one registry shared by every session it starts.
type Server struct {
	cfg     Config
	manager *ClientManager
	log     *slog.Logger
}

func NewServer(cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		manager: NewClientManager(),
		log:     log,
	}
}

// Run serves TCP clients, and websocket clients when WSAddr is set, until ctx is done
// or one of the listeners fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ListenAndServe(ctx)
	})
	if s.cfg.WSAddr != "" {
		g.Go(func() error {
			return s.ListenAndServeWebSocket(ctx)
		})
	}
	return g.Wait()
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed.
// A failed accept is logged and retried; it never stops the loop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	s.log.Info("relay listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = nextBackoff(backoff)
			s.log.Error("accept failed", "err", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.start(conn, conn.RemoteAddr().String())
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	return min(2*d, maxAcceptBackoff)
}

// start registers conn and spawns its session.
func (s *Server) start(conn io.ReadWriteCloser, remote string) {
	c, err := s.attach(conn, remote)
	if err != nil {
		s.log.Error("register client", "remote", remote, "err", err)
		conn.Close()
		return
	}
	go c.Run()
}

func (s *Server) attach(conn io.ReadWriteCloser, remote string) (*Client, error) {
	id := uuid.New()
	inbox := make(chan ChatMessage, s.cfg.InboxSize)
	c := &Client{
		id:       id,
		conn:     conn,
		manager:  s.manager,
		log:      s.log.With("client", id.String(), "remote", remote),
		inbox:    inbox,
		done:     make(chan struct{}),
		commands: make(chan Command),
		maxLine:  s.cfg.MaxLineBytes,
	}
	if err := s.manager.Insert(id, inbox, c.done); err != nil {
		return nil, err
	}
	return c, nil
}
