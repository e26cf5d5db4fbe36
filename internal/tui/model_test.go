package tui

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/session"
)

type sent struct {
	event   protocol.EventName
	payload any
}

type fakeTransport struct {
	sent   []sent
	closed bool
}

func (f *fakeTransport) Emit(event protocol.EventName, payload any) error {
	f.sent = append(f.sent, sent{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func pressEnter(m *Model) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestModel_JoinScreenIgnoresEmptyName(t *testing.T) {
	req := require.New(t)
	out := &fakeTransport{}
	m := New(out, nil)

	pressEnter(m)

	req.Equal(session.AwaitingJoin, m.Session().State())
	req.Empty(out.sent)
	req.Contains(m.View(), "Join chatroom")
}

func TestModel_InputCappedAtFieldLimit(t *testing.T) {
	req := require.New(t)
	out := &fakeTransport{}
	m := New(out, nil)

	typeText(m, strings.Repeat("☃", protocol.MaxFieldRunes+10))
	pressEnter(m)

	req.Len(out.sent, 1)
	req.Equal(protocol.MaxFieldRunes, utf8.RuneCountInString(out.sent[0].payload.(string)))
}

func TestModel_JoinThenChat(t *testing.T) {
	req := require.New(t)
	out := &fakeTransport{}
	m := New(out, nil)

	typeText(m, "alice")
	pressEnter(m)

	req.Equal(session.InChat, m.Session().State())
	req.Equal([]sent{{event: protocol.EventNewUser, payload: "alice"}}, out.sent)
	req.Empty(m.input.Value())
	req.Contains(m.View(), "alice")

	typeText(m, "hi there")
	pressEnter(m)

	req.Len(out.sent, 2)
	req.Equal(sent{event: protocol.EventChat, payload: protocol.ChatMessage{Username: "alice", Text: "hi there"}}, out.sent[1])
	req.Empty(m.input.Value())
	req.Contains(m.View(), "hi there")

	// Enter on an empty line sends nothing
	pressEnter(m)
	req.Len(out.sent, 2)
}

func TestModel_RendersInboundEvents(t *testing.T) {
	req := require.New(t)
	m := New(&fakeTransport{}, nil)
	typeText(m, "alice")
	pressEnter(m)

	m.Update(inboundMsg{env: protocol.Envelope{Event: protocol.EventUpdate, Data: json.RawMessage(`"bobJoined the conversation"`)}})
	m.Update(inboundMsg{env: protocol.Envelope{Event: protocol.EventChat, Data: json.RawMessage(`{"username":"bob","text":"yo"}`)}})
	m.Update(inboundMsg{env: protocol.Envelope{Event: protocol.EventUpdate, Data: json.RawMessage(`null`)}})

	view := m.View()
	req.Contains(view, "bobJoined the conversation")
	req.Contains(view, "bob")
	req.Contains(view, "yo")
	req.Contains(view, "null")
	req.Len(m.lines, 3)
}

func TestModel_EscExitsChat(t *testing.T) {
	req := require.New(t)
	out := &fakeTransport{}
	m := New(out, nil)
	typeText(m, "alice")
	pressEnter(m)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	req.NotNil(cmd)
	req.Equal(sent{event: protocol.EventExitUser, payload: "alice"}, out.sent[len(out.sent)-1])
	req.True(out.closed)
}

func TestModel_DisconnectShowsStatus(t *testing.T) {
	req := require.New(t)
	m := New(&fakeTransport{}, nil)

	_, cmd := m.Update(disconnectedMsg{err: errors.New("connection reset")})

	req.NotNil(cmd)
	req.Contains(m.View(), "connection reset")
}
