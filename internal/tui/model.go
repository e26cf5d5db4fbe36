// Package tui is the terminal presentation of a chat session: a join screen
// that asks for a username and a chat screen with the message list and an
// input line. The Model is the session's View, so every state change and
// rendering happens inside bubbletea's single-threaded Update.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/session"
)

// inboundMsg carries one server event into the bubbletea loop.
type inboundMsg struct {
	env protocol.Envelope
}

// disconnectedMsg reports that the receive loop ended.
type disconnectedMsg struct {
	err error
}

// Model implements tea.Model and session.View.
type Model struct {
	session  *session.Session
	input    textinput.Model
	viewport viewport.Model
	lines    []string
	status   string
	log      *slog.Logger
}

// New builds the model and the session it drives. Outbound events go to out.
func New(out session.Transport, log *slog.Logger) *Model {
	if log == nil {
		log = slog.Default()
	}

	input := textinput.New()
	input.Placeholder = "Username"
	input.CharLimit = protocol.MaxFieldRunes
	input.Focus()

	m := &Model{
		input:    input,
		viewport: viewport.New(80, 20),
		log:      log,
	}
	m.session = session.New(out, m, log)
	return m
}

// Session returns the session driven by the model.
func (m *Model) Session() *session.Session { return m.session }

// Pump forwards inbound events from src to program until src fails.
func Pump(ctx context.Context, src session.Receiver, program *tea.Program) {
	for {
		env, err := src.Receive(ctx)
		if err != nil {
			program.Send(disconnectedMsg{err: err})
			return
		}
		program.Send(inboundMsg{env: env})
	}
}

// Render appends one message line.
func (m *Model) Render(r session.Rendering) {
	var line string
	switch r.Kind {
	case session.KindSelf:
		line = selfNameStyle.Render("You") + ": " + r.Text
	case session.KindPeer:
		line = peerNameStyle.Render(r.Username) + ": " + r.Text
	default:
		line = presenceStyle.Render(r.Text)
	}
	m.lines = append(m.lines, line)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
}

// ScrollToEnd keeps the newest message visible.
func (m *Model) ScrollToEnd() { m.viewport.GotoBottom() }

// ClearInput empties the input line.
func (m *Model) ClearInput() { m.input.Reset() }

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 4
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.viewport.GotoBottom()
		return m, nil

	case inboundMsg:
		if err := m.session.HandleInbound(msg.env); err != nil {
			m.log.Warn("Dropping inbound event", "event", msg.env.Event, "error", err)
		}
		return m, nil

	case disconnectedMsg:
		m.status = fmt.Sprintf("disconnected: %v", msg.err)
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		if m.session.State() == session.InChat {
			_ = m.session.RequestExit()
		}
		return m, tea.Quit

	case tea.KeyEnter:
		m.submit()
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() {
	value := m.input.Value()
	switch m.session.State() {
	case session.AwaitingJoin:
		if err := m.session.Submit(value); err != nil {
			return
		}
		m.input.Reset()
		m.input.Placeholder = "Type a message..."
	case session.InChat:
		_ = m.session.SendMessage(value)
	}
}

func (m *Model) View() string {
	var b strings.Builder
	switch m.session.State() {
	case session.AwaitingJoin:
		b.WriteString(titleStyle.Render("Join chatroom"))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter: join • esc: quit"))
	default:
		b.WriteString(titleStyle.Render("chatrelay · " + m.session.Username()))
		b.WriteString("\n")
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: send • pgup/pgdn: scroll • esc: exit"))
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
	}
	return b.String()
}
