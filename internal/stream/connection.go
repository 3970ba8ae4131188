// Package stream moves marker operations over WebSocket: a broadcaster
// fans pass batches out to connected renderer clients, and a push client
// delivers them to a remote collector.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/spatialplot/globeviz/internal/queue"
	"github.com/spatialplot/globeviz/pkg/markerops"
)

const (
	defaultOutboxLimit = 10_000
	ackChSize          = 16
	maxReconnect       = 10
	maxBackoff         = 30 * time.Second
	writeWait          = 10 * time.Second
	ackTimeout         = 10 * time.Second
)

// connection manages an outbound WebSocket with a single write goroutine.
// Outgoing messages wait in a bounded queue; on overflow the oldest
// batches are discarded first, since a newer batch supersedes them.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	outbox *queue.Queue[[]byte]
	notify chan struct{}
	ackCh  chan markerops.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool

	// reconnecting dedupes recovery: the read and write loops both report
	// the same broken link, but only one backoff loop may run.
	reconnecting bool

	wsURL  string
	secret string

	// Cached scene snapshot for reconnect replay.
	cachedSnapshot []byte

	logger *slog.Logger
}

func newConnection(outboxLimit int, logger *slog.Logger) *connection {
	if outboxLimit <= 0 {
		outboxLimit = defaultOutboxLimit
	}
	return &connection{
		outbox: queue.NewBounded[[]byte](outboxLimit),
		notify: make(chan struct{}, 1),
		ackCh:  make(chan markerops.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// dial connects to the collector and starts the read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	// Flush anything queued before the link came up.
	c.signal()

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// signal wakes the write loop without blocking.
func (c *connection) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// writeLoop drains the outbox and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.notify:
			for {
				data := c.outbox.Pop()
				if data == nil {
					break
				}

				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()

				if conn == nil {
					continue
				}

				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
					go c.reconnect()
					return
				}
				if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
					c.logger.Warn("WebSocket write error", "error", err)
					go c.reconnect()
					return
				}
			}
		}
	}
}

// readLoop reads ack messages from the collector and routes them to ackCh.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		var ack markerops.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		if ack.Type == markerops.TypeAck {
			select {
			case c.ackCh <- ack:
			default:
				c.logger.Debug("Ack channel full, dropping", "for", ack.For)
			}
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it replays the cached scene snapshot so
// the collector holds the current scene, then restarts the loops.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to collector", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		cached := c.cachedSnapshot
		c.mu.Unlock()

		// Replay the scene snapshot so the collector catches up without
		// the op history it missed.
		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for snapshot replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay snapshot after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("Collector connection restored", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		c.signal()
		return
	}

	c.logger.Error("Collector reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send queues data for the write loop. Never blocks; the bounded outbox
// drops its oldest entries instead.
func (c *connection) send(data []byte) {
	c.outbox.Push(data)
	c.signal()
}

// sendAndWait sends data and blocks until the collector acknowledges with
// a matching ack message or the timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
			// Not our ack, keep waiting.
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		// The write loop may still have a data write in flight; control
		// frames are the only writes gorilla allows concurrently with it.
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
