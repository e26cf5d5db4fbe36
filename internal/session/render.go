package session

// Kind discriminates what a Rendering shows.
type Kind string

const (
	// KindSelf is a message the local user just sent.
	KindSelf Kind = "self"
	// KindPeer is a message relayed from another user.
	KindPeer Kind = "peer"
	// KindPresence is a join or leave announcement. Only Text is set.
	KindPresence Kind = "presence"
)

// Rendering is the payload handed to the presentation layer.
type Rendering struct {
	Kind     Kind
	Username string
	Text     string
}

// View is the presentation collaborator driven by a Session.
type View interface {
	// Render appends one entry to the message list.
	Render(r Rendering)
	// ScrollToEnd is requested after every Render.
	ScrollToEnd()
	// ClearInput empties the message input after a successful send.
	ClearInput()
}
