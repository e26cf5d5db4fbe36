// Package session implements the client side of a chat connection: a
// two-state machine (awaiting join, in chat) that emits outbound events on
// user action and turns inbound events into renderings.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tyrowin/chatrelay/internal/protocol"
)

var (
	// ErrEmptyInput is returned when a username or message is empty. Nothing is sent.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidState is returned when an action does not apply to the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrSessionClosed is returned after RequestExit tore the session down.
	ErrSessionClosed = errors.New("session closed")
)

// State is the screen the session is on.
type State int

const (
	// AwaitingJoin is the initial state: the join screen.
	AwaitingJoin State = iota
	// InChat is entered once after a successful join.
	InChat
)

func (s State) String() string {
	switch s {
	case AwaitingJoin:
		return "awaiting-join"
	case InChat:
		return "in-chat"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport carries outbound events to the relay.
type Transport interface {
	Emit(event protocol.EventName, payload any) error
	Close() error
}

// Receiver yields inbound events one at a time. It returns an error when
// the underlying connection ends.
type Receiver interface {
	Receive(ctx context.Context) (protocol.Envelope, error)
}

// inboundHandler applies one server→client event.
type inboundHandler func(s *Session, env protocol.Envelope) error

var inboundHandlers = map[protocol.EventName]inboundHandler{
	protocol.EventUpdate: (*Session).onUpdate,
	protocol.EventChat:   (*Session).onChat,
}

// Session is one user's chat session. Its methods are serialized, so a
// View must not call back into the Session from Render.
type Session struct {
	mu       sync.Mutex
	state    State
	username string
	closed   bool

	out  Transport
	view View
	log  *slog.Logger
}

// New returns a Session in AwaitingJoin that emits through out and renders to view.
func New(out Transport, view View, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{out: out, view: view, log: log}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username returns the name stored at join, or "" before joining.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Submit joins the conversation as username and moves to InChat.
func (s *Session) Submit(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(AwaitingJoin); err != nil {
		return err
	}
	if len(username) == 0 {
		return ErrEmptyInput
	}

	s.emit(protocol.EventNewUser, username)
	s.username = username
	s.state = InChat
	s.log.Debug("Joined", "username", username)
	return nil
}

// SendMessage renders text as the user's own message, sends it and clears
// the input.
func (s *Session) SendMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(InChat); err != nil {
		return err
	}
	if len(text) == 0 {
		return ErrEmptyInput
	}

	msg := protocol.ChatMessage{Username: s.username, Text: text}
	s.render(Rendering{Kind: KindSelf, Username: msg.Username, Text: msg.Text})
	s.emit(protocol.EventChat, msg)
	s.view.ClearInput()
	return nil
}

// RequestExit announces the departure and tears the session down.
func (s *Session) RequestExit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(InChat); err != nil {
		return err
	}

	s.emit(protocol.EventExitUser, s.username)
	s.closed = true
	if err := s.out.Close(); err != nil {
		s.log.Debug("Closing transport", "error", err)
	}
	return nil
}

// HandleInbound renders one server→client event. The state is not changed.
func (s *Session) HandleInbound(env protocol.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := inboundHandlers[env.Event]
	if !ok {
		return fmt.Errorf("%w: unknown event %q", protocol.ErrInvalidEvent, env.Event)
	}
	return handle(s, env)
}

// Run feeds events from src to HandleInbound in arrival order until src
// fails or ctx is done. Invalid events are logged and skipped.
func (s *Session) Run(ctx context.Context, src Receiver) error {
	for {
		env, err := src.Receive(ctx)
		if err != nil {
			return err
		}
		if err := s.HandleInbound(env); err != nil {
			s.log.Warn("Dropping inbound event", "event", env.Event, "error", err)
		}
	}
}

func (s *Session) onUpdate(env protocol.Envelope) error {
	s.render(Rendering{Kind: KindPresence, Text: protocol.Announcement(env)})
	return nil
}

func (s *Session) onChat(env protocol.Envelope) error {
	msg, err := protocol.DecodeChat(env)
	if err != nil {
		return err
	}
	s.render(Rendering{Kind: KindPeer, Username: msg.Username, Text: msg.Text})
	return nil
}

func (s *Session) require(state State) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != state {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	return nil
}

func (s *Session) render(r Rendering) {
	s.view.Render(r)
	s.view.ScrollToEnd()
}

// emit sends without retrying; failures are only logged.
func (s *Session) emit(event protocol.EventName, payload any) {
	if err := s.out.Emit(event, payload); err != nil {
		s.log.Warn("Emit failed", "event", event, "error", err)
	}
}
