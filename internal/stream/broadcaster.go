package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/spatialplot/globeviz/pkg/markerops"
)

const clientSendBuffer = 64

// Broadcaster fans envelopes out to every connected renderer client. A
// client that cannot keep up is dropped rather than allowed to hold back
// a pass.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	upgrader ws.Upgrader
	logger   *slog.Logger

	// Hello builds the catch-up envelope sent to a client right after it
	// connects, typically the current scene snapshot. Nil means none.
	Hello func() (markerops.Envelope, bool)
}

type wsClient struct {
	conn *ws.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// drop closes the client exactly once.
func (c *wsClient) drop() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*wsClient]struct{}),
		upgrader: ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger,
	}
}

// HandleUpgrade upgrades the HTTP request to a WebSocket and registers the
// client for broadcasts.
func (b *Broadcaster) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.clients[client] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	b.logger.Info("Renderer client connected", "remote", r.RemoteAddr, "clients", count)

	if b.Hello != nil {
		if env, ok := b.Hello(); ok {
			if data, err := json.Marshal(env); err == nil {
				select {
				case client.send <- data:
				default:
				}
			} else {
				b.logger.Error("Error marshaling hello envelope", "error", err)
			}
		}
	}

	go b.writePump(client)
	go b.readPump(client)
}

// Broadcast marshals the envelope once and queues it for every client.
// Clients with a full send buffer are dropped.
func (b *Broadcaster) Broadcast(env markerops.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("Error marshaling broadcast envelope", "type", env.Type, "error", err)
		return
	}

	var slow []*wsClient
	b.mu.Lock()
	for client := range b.clients {
		select {
		case client.send <- data:
		default:
			delete(b.clients, client)
			slow = append(slow, client)
		}
	}
	b.mu.Unlock()

	for _, client := range slow {
		b.logger.Warn("Dropping slow renderer client")
		client.drop()
	}
}

// ClientCount reports how many renderer clients are connected.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close drops every connected client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	clients := make([]*wsClient, 0, len(b.clients))
	for client := range b.clients {
		clients = append(clients, client)
	}
	b.clients = make(map[*wsClient]struct{})
	b.mu.Unlock()

	for _, client := range clients {
		client.drop()
	}
}

// remove unregisters and drops one client.
func (b *Broadcaster) remove(client *wsClient) {
	b.mu.Lock()
	delete(b.clients, client)
	b.mu.Unlock()
	client.drop()
}

// writePump delivers queued messages to one client under a write deadline.
func (b *Broadcaster) writePump(client *wsClient) {
	for {
		select {
		case <-client.done:
			return
		case data := <-client.send:
			if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				b.remove(client)
				return
			}
			if err := client.conn.WriteMessage(ws.TextMessage, data); err != nil {
				b.logger.Debug("Renderer client write failed", "error", err)
				b.remove(client)
				return
			}
		}
	}
}

// readPump discards inbound messages and detects the client going away.
func (b *Broadcaster) readPump(client *wsClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			b.remove(client)
			return
		}
	}
}
