package server_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/Tyrowin/chatrelay/internal/server"
	"github.com/Tyrowin/chatrelay/internal/session"
	"github.com/Tyrowin/chatrelay/internal/testutil"
	"github.com/Tyrowin/chatrelay/internal/wsclient"
)

const quietPeriod = 150 * time.Millisecond

// TestRelay_JoinChatExit walks two browsers through a full conversation over
// real WebSocket connections.
func TestRelay_JoinChatExit(t *testing.T) {
	hub, url := testutil.StartRelay(t, nil)
	alice := testutil.ConnectWebSocket(t, hub, url)
	bob := testutil.ConnectWebSocket(t, hub, url)

	testutil.SendEvent(t, alice, protocol.EventNewUser, "alice")
	testutil.ExpectUpdate(t, bob, "aliceJoined the conversation")

	testutil.SendEvent(t, bob, protocol.EventNewUser, "bob")
	testutil.ExpectUpdate(t, alice, "bobJoined the conversation")

	hello := protocol.ChatMessage{Username: "alice", Text: "hello"}
	testutil.SendEvent(t, alice, protocol.EventChat, hello)
	testutil.ExpectChat(t, bob, hello)

	testutil.SendEvent(t, bob, protocol.EventExitUser, "bob")
	testutil.ExpectUpdate(t, alice, "bobleft the conversation")

	// exituser alone keeps the connection registered
	require.Equal(t, 2, hub.Count())
	testutil.ExpectNoEvent(t, bob, quietPeriod)
}

func TestRelay_EmptyUsernameAndText(t *testing.T) {
	hub, url := testutil.StartRelay(t, nil)
	a := testutil.ConnectWebSocket(t, hub, url)
	b := testutil.ConnectWebSocket(t, hub, url)

	testutil.SendEvent(t, a, protocol.EventNewUser, "")
	testutil.ExpectUpdate(t, b, "Joined the conversation")

	empty := protocol.ChatMessage{Username: "u", Text: ""}
	testutil.SendEvent(t, a, protocol.EventChat, empty)
	testutil.ExpectChat(t, b, empty)
	testutil.ExpectNoEvent(t, a, quietPeriod)
}

func TestRelay_FanOutExcludesSender(t *testing.T) {
	const n = 5
	hub, url := testutil.StartRelay(t, nil)
	conns := make([]*websocket.Conn, n)
	for i := range conns {
		conns[i] = testutil.ConnectWebSocket(t, hub, url)
	}

	testutil.SendEvent(t, conns[0], protocol.EventNewUser, "zed")
	for _, c := range conns[1:] {
		testutil.ExpectUpdate(t, c, "zedJoined the conversation")
	}
	testutil.ExpectNoEvent(t, conns[0], quietPeriod)
}

func TestRelay_PreservesPerSenderOrder(t *testing.T) {
	hub, url := testutil.StartRelay(t, nil)
	a := testutil.ConnectWebSocket(t, hub, url)
	b := testutil.ConnectWebSocket(t, hub, url)

	testutil.SendEvent(t, a, protocol.EventNewUser, "a")
	testutil.ExpectUpdate(t, b, "aJoined the conversation")

	texts := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	for _, text := range texts {
		testutil.SendEvent(t, a, protocol.EventChat, protocol.ChatMessage{Username: "a", Text: text})
	}
	for _, text := range texts {
		testutil.ExpectChat(t, b, protocol.ChatMessage{Username: "a", Text: text})
	}
}

// TestRelay_InvalidFramesAreDropped verifies that malformed events neither
// reach other connections nor close the sender's connection.
func TestRelay_InvalidFramesAreDropped(t *testing.T) {
	hub, url := testutil.StartRelay(t, nil)
	a := testutil.ConnectWebSocket(t, hub, url)
	b := testutil.ConnectWebSocket(t, hub, url)

	testutil.SendRaw(t, a, `not json`)
	testutil.SendRaw(t, a, `{"event":"teleport","data":1}`)
	testutil.SendRaw(t, a, `{"event":"newuser","data":{"name":"a"}}`)
	testutil.SendRaw(t, a, `{"event":"chat","data":"hi"}`)

	testutil.SendEvent(t, a, protocol.EventNewUser, "a")
	testutil.ExpectUpdate(t, b, "aJoined the conversation")
	require.Equal(t, 2, hub.Count())
}

func TestRelay_ChatBeforeJoinIsDropped(t *testing.T) {
	hub, url := testutil.StartRelay(t, nil)
	a := testutil.ConnectWebSocket(t, hub, url)
	b := testutil.ConnectWebSocket(t, hub, url)

	testutil.SendEvent(t, a, protocol.EventChat, protocol.ChatMessage{Username: "ghost", Text: "boo"})
	testutil.SendEvent(t, a, protocol.EventExitUser, "ghost")
	testutil.SendEvent(t, a, protocol.EventNewUser, "a")

	// The first frame b sees is the join.
	testutil.ExpectUpdate(t, b, "aJoined the conversation")
}

func TestRelay_DisconnectRemovesWithoutAnnouncement(t *testing.T) {
	hub, url := testutil.StartRelay(t, nil)
	a := testutil.ConnectWebSocket(t, hub, url)
	b := testutil.ConnectWebSocket(t, hub, url)

	testutil.SendEvent(t, a, protocol.EventNewUser, "a")
	testutil.ExpectUpdate(t, b, "aJoined the conversation")

	require.NoError(t, a.Close())
	testutil.WaitForClients(t, hub, 1)
	testutil.ExpectNoEvent(t, b, quietPeriod)
}

func TestRelay_RejectsDisallowedOrigin(t *testing.T) {
	_, url := testutil.StartRelay(t, nil)

	headers := http.Header{}
	headers.Set("Origin", "http://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(url, headers)
	if conn != nil {
		_ = conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRelay_OversizedFrameClosesConnection(t *testing.T) {
	cfg := server.NewConfig()
	cfg.MaxMessageSize = 64
	hub, url := testutil.StartRelay(t, cfg)
	a := testutil.ConnectWebSocket(t, hub, url)

	testutil.SendEvent(t, a, protocol.EventNewUser, strings.Repeat("x", 128))

	testutil.WaitForClients(t, hub, 0)
}

// TestRelay_LongMultiByteChatRelayed sends the longest line the terminal
// client accepts, in three-byte runes, at the default read limit.
func TestRelay_LongMultiByteChatRelayed(t *testing.T) {
	hub, url := testutil.StartRelay(t, nil)
	a := testutil.ConnectWebSocket(t, hub, url)
	b := testutil.ConnectWebSocket(t, hub, url)

	testutil.SendEvent(t, a, protocol.EventNewUser, "snow")
	testutil.ExpectUpdate(t, b, "snowJoined the conversation")

	for _, n := range []int{256, protocol.MaxFieldRunes} {
		msg := protocol.ChatMessage{Username: "snow", Text: strings.Repeat("☃", n)}
		testutil.SendEvent(t, a, protocol.EventChat, msg)
		testutil.ExpectChat(t, b, msg)
	}
	require.Equal(t, 2, hub.Count())
}

type recordingView struct {
	rendered chan session.Rendering
}

func (v *recordingView) Render(r session.Rendering) { v.rendered <- r }
func (v *recordingView) ScrollToEnd()               {}
func (v *recordingView) ClearInput()                {}

// TestRelay_SessionRoundTrip drives two sessions over the client transport
// and checks that B renders A's message byte-for-byte.
func TestRelay_SessionRoundTrip(t *testing.T) {
	req := require.New(t)
	hub, url := testutil.StartRelay(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dial := func() (*session.Session, *recordingView) {
		conn, err := wsclient.Dial(ctx, url, testutil.TestOrigin, testutil.Logger())
		req.NoError(err)
		t.Cleanup(func() { _ = conn.Close() })
		view := &recordingView{rendered: make(chan session.Rendering, 16)}
		s := session.New(conn, view, testutil.Logger())
		go func() { _ = s.Run(ctx, conn) }()
		return s, view
	}

	a, aView := dial()
	testutil.WaitForClients(t, hub, 1)
	b, bView := dial()
	testutil.WaitForClients(t, hub, 2)

	req.NoError(b.Submit("bøb"))
	req.Equal(session.Rendering{Kind: session.KindPresence, Text: "bøbJoined the conversation"}, next(t, aView))

	req.NoError(a.Submit("alice"))
	req.Equal(session.Rendering{Kind: session.KindPresence, Text: "aliceJoined the conversation"}, next(t, bView))

	text := "héllo \"wörld\" <b>&amp;</b> ☃"
	req.NoError(a.SendMessage(text))
	req.Equal(session.Rendering{Kind: session.KindSelf, Username: "alice", Text: text}, next(t, aView))
	req.Equal(session.Rendering{Kind: session.KindPeer, Username: "alice", Text: text}, next(t, bView))

	req.NoError(a.RequestExit())
	req.Equal(session.Rendering{Kind: session.KindPresence, Text: "aliceleft the conversation"}, next(t, bView))
	testutil.WaitForClients(t, hub, 1)
}

func next(t *testing.T, v *recordingView) session.Rendering {
	t.Helper()
	select {
	case r := <-v.rendered:
		return r
	case <-time.After(time.Second):
		t.Fatal("nothing rendered")
		return session.Rendering{}
	}
}
