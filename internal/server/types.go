// Package server defines shared broadcast types, error classifications and
// utility helpers that are reused across client and hub logic.
package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Tyrowin/chatrelay/internal/protocol"
)

var (
	// ErrNotJoined is returned for chat or exituser events from a connection
	// that never sent newuser while joins are required. It is an invalid event.
	ErrNotJoined = fmt.Errorf("%w: connection has not joined", protocol.ErrInvalidEvent)
	// ErrSendQueueFull is reported when a target's send queue has no room.
	// The target is evicted.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrHubStopped is returned by hub operations after Shutdown.
	ErrHubStopped = errors.New("hub stopped")
)

// BroadcastMessage encapsulates a frame being broadcast by the hub,
// including the originating client so it can be excluded from delivery.
type BroadcastMessage struct {
	Sender  *Client
	Payload []byte
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
