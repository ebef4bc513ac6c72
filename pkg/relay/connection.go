// Package relay opens and manages transport sessions to individual
// relays. One Connect call makes exactly one connection attempt; retry
// policy, if any, belongs to callers.
package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"dirnet/pkg/wire"
)

// DialError reports a failed connection attempt. It always carries the
// relay URL so fan-out callers can attribute the failure.
type DialError struct {
	URL string
	Err error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("failed to dial %s: %v", e.URL, e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

// Connection is one live websocket session to a relay. Inbound frames
// are decoded on a read loop and delivered on Messages; the channel is
// closed when the session ends and cannot be restarted.
type Connection struct {
	url    string
	ws     *websocket.Conn
	logger *zap.Logger

	incoming chan wire.Message
	done     chan struct{}

	writeMu sync.Mutex
	closed  atomic.Bool
}

// Connect opens a session to the relay at url. The context deadline
// bounds the dial; Connect never blocks past it. On failure the returned
// error is a *DialError and no connection resources are left behind.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Connection, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &DialError{URL: url, Err: err}
	}

	c := &Connection{
		url:      url,
		ws:       ws,
		logger:   logger.With(zap.String("relay", url)),
		incoming: make(chan wire.Message, 32),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// URL returns the relay address this connection was dialed with.
func (c *Connection) URL() string { return c.url }

// Messages returns the inbound frame channel. It is closed when the
// connection closes, locally or remotely.
func (c *Connection) Messages() <-chan wire.Message { return c.incoming }

// Send writes one encoded frame to the relay.
func (c *Connection) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return fmt.Errorf("connection to %s is closed", c.url)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send to %s: %w", c.url, err)
	}
	return nil
}

// Close tears down the session. Safe to call multiple times and
// concurrently with reads; the message channel closes once the read
// loop observes the closed socket.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	return c.ws.Close()
}

func (c *Connection) readLoop() {
	defer close(c.incoming)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Debug("relay connection closed", zap.Error(err))
				c.Close()
			}
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			// Malformed frames are dropped, not fatal.
			c.logger.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}
