// client_manager.go
package main

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrDuplicateClient = errors.New("client already registered")
	ErrUnknownClient   = errors.New("client not registered")
)

// ClientManager tracks connected clients. It is shared by every session.
type ClientManager struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*clientRecord
	order   []uuid.UUID
}

// clientRecord is one registry entry. Only the owning session changes name.
type clientRecord struct {
	outbox chan<- ChatMessage
	done   <-chan struct{}
	name   string
}

// Recipient is the write side of a client's inbox, as seen in a snapshot.
type Recipient struct {
	ID     uuid.UUID
	Outbox chan<- ChatMessage
	Done   <-chan struct{}
}

// Client represents a single connection and its session state.
type Client struct {
	id      uuid.UUID
	conn    io.ReadWriteCloser
	manager *ClientManager
	log     *slog.Logger

	inbox    <-chan ChatMessage
	done     chan struct{}
	commands chan Command

	writeMu   sync.Mutex
	closeOnce sync.Once
	name      string
	maxLine   int
}

// ChatMessage is a relayed broadcast.
type ChatMessage struct {
	Sender string
	Body   string
}
