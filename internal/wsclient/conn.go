// Package wsclient is the client transport for chatrelay: a WebSocket
// connection that emits named events and yields inbound events through a
// single receive loop.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/chatrelay/internal/protocol"
)

const (
	handshakeTimeout = 5 * time.Second
	writeWait        = 10 * time.Second
)

// Conn is a connection to the relay. Emit is safe for concurrent use;
// Receive must be called from one goroutine.
type Conn struct {
	conn      *websocket.Conn
	log       *slog.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial opens a connection to the relay's WebSocket endpoint. origin is sent
// as the Origin header, which the relay checks against its allow list.
func Dial(ctx context.Context, url, origin string, log *slog.Logger) (*Conn, error) {
	if log == nil {
		log = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{conn: conn, log: log.With("url", url)}, nil
}

// Emit sends one event. There is no acknowledgment and no retry.
func (c *Conn) Emit(event protocol.EventName, payload any) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Receive blocks until the next valid event arrives. Frames that fail to
// decode are logged and skipped. Cancelling ctx closes the connection.
func (c *Conn) Receive(ctx context.Context) (protocol.Envelope, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return protocol.Envelope{}, ctxErr
			}
			return protocol.Envelope{}, fmt.Errorf("receive: %w", err)
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			c.log.Warn("Skipping inbound frame", "error", err)
			continue
		}
		return env, nil
	}
}

// Close sends a normal closure and closes the connection. It is safe to
// call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		err := c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.log.Debug("Writing close message", "error", err)
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
