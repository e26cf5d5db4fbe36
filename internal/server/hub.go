// Package server coordinates client registration, event broadcast, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/Tyrowin/chatrelay/internal/protocol"
)

// Hub owns the live-connection set. Registration, unregistration and
// broadcasts are serialized through its Run loop; the set itself is guarded
// by mutex so it can be inspected from other goroutines.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHub creates a Hub for cfg. The returned Hub must be started with Run.
func NewHub(cfg *Config, log *slog.Logger) *Hub {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitized.Sanitize()

	origins := newOriginPolicy(sanitized.AllowedOrigins, log)
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan BroadcastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		cfg:        sanitized,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// Register adds c to the live set (connect). No event is broadcast. Clients
// with a WebSocket connection get their read and write pumps started.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

// Unregister removes c from the live set (disconnect) and closes its send
// queue. No event is broadcast.
func (h *Hub) Unregister(c *Client) error {
	select {
	case h.unregister <- c:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

// BroadcastExcept queues payload for delivery to every live connection
// other than exclude. A nil exclude reaches every connection.
func (h *Hub) BroadcastExcept(exclude *Client, payload []byte) error {
	select {
	case h.broadcast <- BroadcastMessage{Sender: exclude, Payload: payload}:
		return nil
	case <-h.ctx.Done():
		return ErrHubStopped
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		h.log.Warn("Received nil client registration; skipping")
		return
	}

	h.mutex.Lock()
	if client.closed {
		h.mutex.Unlock()
		client.log.Warn("Rejected registration of a closed client")
		return
	}
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.mutex.Unlock()
	client.log.Info("Client registered", "clients", clientCount)

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	h.detach(client)
	client.log.Info("Client unregistered", "clients", len(h.clients))
}

// detach removes client from the set and closes its queue. Callers hold mutex.
func (h *Hub) detach(client *Client) {
	delete(h.clients, client)
	client.closed = true
	close(client.send)
}

// handleBroadcast delivers msg to the live set as it is right now, minus the sender.
func (h *Hub) handleBroadcast(msg BroadcastMessage) {
	targets := lo.Filter(h.getClientSnapshot(), func(client *Client, _ int) bool {
		return client != msg.Sender
	})

	var evict []*Client
	for _, client := range targets {
		err := h.safeSend(client, msg.Payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrSendQueueFull):
			evict = append(evict, client)
		default:
			client.log.Debug("Skipping broadcast target", "reason", err)
		}
	}

	h.log.Debug("Broadcast delivered", "targets", len(targets), "evicted", len(evict))
	h.removeFailedClients(evict)
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return lo.Keys(h.clients)
}

// safeSend queues message on client without blocking.
func (h *Hub) safeSend(client *Client, message []byte) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return protocol.ErrTargetGone
	}

	select {
	case client.send <- message:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// removeFailedClients evicts clients whose send queue was full so a stalled
// receiver cannot hold up fan-out to the others.
func (h *Hub) removeFailedClients(clients []*Client) {
	if len(clients) == 0 {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, client := range clients {
		if _, exists := h.clients[client]; exists {
			h.detach(client)
			client.log.Warn("Client removed due to full send queue")
		}
	}
}

// shutdownClients closes every live connection and its send queue.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.mutex.Lock()
	clients := lo.Keys(h.clients)
	for _, client := range clients {
		h.detach(client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			client.log.Warn("Error closing client connection", "error", err)
		}
	}

	h.log.Info("Closed client connections", "clients", len(clients))
}

// Shutdown stops the hub, closes all connections and waits for the client
// goroutines to finish, or until timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
