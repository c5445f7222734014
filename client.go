// client.go
// The read goroutine decodes lines from the connection and hands commands to the dispatcher.
// The dispatcher (Run) serves those commands and drains the client's inbox back to the connection.
// Both write to the connection, so writes go through writeMu.

package main

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// errQuit ends a session normally.
var errQuit = errors.New("client quit")

// Run is the dispatcher loop. It returns once the session has been torn down.
func (c *Client) Run() {
	c.log.Info("client connected")
	go c.read()

	for {
		var err error
		select {
		case cmd := <-c.commands:
			err = c.handle(cmd)
		case msg := <-c.inbox:
			err = c.write(encodeFrom(msg))
		}
		if err != nil {
			if !errors.Is(err, errQuit) {
				c.log.Info("session failed", "err", err)
			}
			c.close()
			return
		}
	}
}

func (c *Client) read() {
	lines := newLineReader(c.conn, c.maxLine)
	for {
		line, overlong, err := lines.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Debug("read failed", "err", err)
			}
			c.forward(Command{Kind: CommandQuit})
			return
		}

		cmd := Command{}
		if overlong {
			err = ErrLineTooLong
		} else {
			cmd, err = Decode(line)
		}
		if err != nil {
			c.log.Debug("rejected line", "err", err, "line", string(line))
			if err := c.write(encodeError(line)); err != nil {
				c.forward(Command{Kind: CommandQuit})
				return
			}
			continue
		}

		if !c.forward(cmd) || cmd.Kind == CommandQuit {
			return
		}
	}
}

// forward hands a command to the dispatcher. It reports false once the session is gone.
func (c *Client) forward(cmd Command) bool {
	select {
	case c.commands <- cmd:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) handle(cmd Command) error {
	switch cmd.Kind {
	case CommandQuit:
		return errQuit
	case CommandWho:
		return c.write(encodeNames(c.manager.Names()))
	case CommandName:
		if err := c.manager.UpdateName(c.id, cmd.Arg); err != nil {
			return err
		}
		c.name = cmd.Arg
		return nil
	case CommandBroadcast:
		if c.name == "" {
			return c.write(noNameLine)
		}
		return c.broadcast(ChatMessage{Sender: c.name, Body: cmd.Arg})
	default:
		return fmt.Errorf("unhandled command %v", cmd.Kind)
	}
}

// broadcast fans msg out to every registered client, this one included.
func (c *Client) broadcast(msg ChatMessage) error {
	for _, r := range c.manager.Recipients() {
		if err := c.deliver(r, msg); err != nil {
			return err
		}
	}
	return nil
}

// deliver pushes msg into a recipient's inbox. A full inbox blocks the broadcaster
// until the recipient drains it or leaves. While blocked, our own inbox keeps draining,
// so two sessions broadcasting into each other's full inboxes cannot wait forever.
func (c *Client) deliver(r Recipient, msg ChatMessage) error {
	select {
	case r.Outbox <- msg:
		return nil
	case <-r.Done:
		return nil
	default:
	}

	if r.ID != c.id {
		c.log.Warn("recipient inbox full, broadcast blocked", "recipient", r.ID)
	}
	for {
		select {
		case r.Outbox <- msg:
			return nil
		case <-r.Done:
			return nil
		case pending := <-c.inbox:
			if err := c.write(encodeFrom(pending)); err != nil {
				return err
			}
		}
	}
}

func (c *Client) write(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// close removes the client from the registry and drops the connection.
// The reader unblocks on the closed connection and exits through done.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.manager.Remove(c.id)
		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.log.Debug("close failed", "err", err)
		}
		c.log.Info("client disconnected")
	})
}
