// config.go
package main

import (
	"errors"
	"fmt"
	"net"
)

const (
	DefaultAddr         = "127.0.0.1:8090"
	DefaultInboxSize    = 64
	DefaultMaxLineBytes = 16 * 1024

	// bufio refuses smaller buffers.
	minLineBytes = 16
)

// Config holds everything the relay needs to start.
type Config struct {
	// Addr is the TCP address clients connect to.
	Addr string
	// WSAddr enables the websocket bridge when set.
	WSAddr string
	// InboxSize is the number of broadcasts a client can have queued.
	InboxSize int
	// MaxLineBytes bounds a single line, terminator included.
	MaxLineBytes int
	LogLevel     string
}

func DefaultConfig() Config {
	return Config{
		Addr:         DefaultAddr,
		InboxSize:    DefaultInboxSize,
		MaxLineBytes: DefaultMaxLineBytes,
		LogLevel:     "info",
	}
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		errs = append(errs, fmt.Errorf("addr %q: %w", c.Addr, err))
	}
	if c.WSAddr != "" {
		if _, _, err := net.SplitHostPort(c.WSAddr); err != nil {
			errs = append(errs, fmt.Errorf("ws addr %q: %w", c.WSAddr, err))
		}
	}
	if c.InboxSize < 1 {
		errs = append(errs, fmt.Errorf("inbox size must be at least 1, got %d", c.InboxSize))
	}
	if c.MaxLineBytes < minLineBytes {
		errs = append(errs, fmt.Errorf("max line bytes must be at least %d, got %d", minLineBytes, c.MaxLineBytes))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
