package server

import (
	"fmt"

	"github.com/Tyrowin/chatrelay/internal/protocol"
)

// eventHandler decodes the payload of one inbound event and applies it.
type eventHandler func(h *Hub, c *Client, env protocol.Envelope) error

// inboundHandlers is the dispatch table for client→server events.
var inboundHandlers = map[protocol.EventName]eventHandler{
	protocol.EventNewUser:  handleNewUser,
	protocol.EventExitUser: handleExitUser,
	protocol.EventChat:     handleChat,
}

func handleNewUser(h *Hub, c *Client, env protocol.Envelope) error {
	username, err := protocol.DecodeString(env)
	if err != nil {
		return err
	}
	return h.NewUser(c, username)
}

func handleExitUser(h *Hub, c *Client, env protocol.Envelope) error {
	username, err := protocol.DecodeString(env)
	if err != nil {
		return err
	}
	return h.ExitUser(c, username)
}

func handleChat(h *Hub, c *Client, env protocol.Envelope) error {
	msg, err := protocol.DecodeChat(env)
	if err != nil {
		return err
	}
	return h.Chat(c, msg)
}

// Dispatch decodes one inbound frame from c and runs the handler registered
// for its event. Errors wrapping protocol.ErrInvalidEvent mean the frame was
// dropped.
func (h *Hub) Dispatch(c *Client, frame []byte) error {
	env, err := protocol.Decode(frame)
	if err != nil {
		return err
	}

	handle, ok := inboundHandlers[env.Event]
	if !ok {
		return fmt.Errorf("%w: unknown event %q", protocol.ErrInvalidEvent, env.Event)
	}
	return handle(h, c, env)
}

// NewUser records username on c and announces the join to every other
// connection. An empty username is accepted.
func (h *Hub) NewUser(c *Client, username string) error {
	c.setUsername(username)
	c.log.Info("User joined", "username", username)
	return h.announce(c, protocol.EventUpdate, protocol.JoinAnnouncement(username))
}

// ExitUser announces that username left to every other connection. The
// connection stays registered until its transport disconnects.
func (h *Hub) ExitUser(c *Client, username string) error {
	if err := h.checkJoined(c, protocol.EventExitUser); err != nil {
		return err
	}
	c.log.Info("User left", "username", username)
	return h.announce(c, protocol.EventUpdate, protocol.LeaveAnnouncement(username))
}

// Chat relays msg unchanged to every other connection.
func (h *Hub) Chat(c *Client, msg protocol.ChatMessage) error {
	if err := h.checkJoined(c, protocol.EventChat); err != nil {
		return err
	}
	return h.announce(c, protocol.EventChat, msg)
}

func (h *Hub) checkJoined(c *Client, event protocol.EventName) error {
	if !h.cfg.RequireJoin {
		return nil
	}
	if _, joined := c.Username(); !joined {
		return fmt.Errorf("%s: %w", event, ErrNotJoined)
	}
	return nil
}

func (h *Hub) announce(sender *Client, event protocol.EventName, payload any) error {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	return h.BroadcastExcept(sender, frame)
}
