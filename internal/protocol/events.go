// Package protocol defines the event contract shared by the relay server and
// chat clients: event names, the JSON envelope carried in every WebSocket
// frame, and the payload types for each event.
package protocol

import "encoding/json"

// EventName identifies the kind of an event on the wire.
type EventName string

const (
	// EventNewUser is sent by a client joining the conversation. Payload: username string.
	EventNewUser EventName = "newuser"
	// EventExitUser is sent by a client leaving the conversation. Payload: username string.
	EventExitUser EventName = "exituser"
	// EventChat carries a ChatMessage in both directions.
	EventChat EventName = "chat"
	// EventUpdate is sent by the server with a pre-formatted presence announcement.
	EventUpdate EventName = "update"
)

// MaxFrameSize is the relay's default read limit for one inbound frame.
const MaxFrameSize = 64 << 10

// MaxFieldRunes bounds a username or chat text entered by a client. A chat
// envelope with both fields at this length fits in MaxFrameSize even when
// every rune is escaped to six bytes.
const MaxFieldRunes = 4096

// Presence announcement suffixes. Announcements are plain concatenations of
// the username and the suffix, with no separator.
const (
	JoinSuffix  = "Joined the conversation"
	LeaveSuffix = "left the conversation"
)

// Envelope is the JSON frame exchanged over the connection.
type Envelope struct {
	Event EventName       `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data"`
}

// ChatMessage is a chat line as constructed by the sending client. It is
// relayed unchanged.
type ChatMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// JoinAnnouncement formats the presence string broadcast when username joins.
func JoinAnnouncement(username string) string {
	return username + JoinSuffix
}

// LeaveAnnouncement formats the presence string broadcast when username leaves.
func LeaveAnnouncement(username string) string {
	return username + LeaveSuffix
}
