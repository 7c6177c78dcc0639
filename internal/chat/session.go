package chat

// Inbound event types on the live channel.
const (
	TypeJoinRoom    = "joinRoom"
	TypeChatMessage = "chatMessage"
	TypeLeaveRoom   = "leaveRoom"
)

// Outbound event types.
const (
	TypeMessage  = "message"
	TypeRoomData = "roomData"
	TypeError    = "error"
)

// Error codes carried by error events.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeRoomNotFound  = "ROOM_NOT_FOUND"
	CodeInternalError = "INTERNAL_ERROR"
)

// SystemSender is the author of join notifications.
const SystemSender = "system"

// Event is the single outbound envelope delivered to sessions. Only
// the fields for the given Type are set.
type Event struct {
	Type string `json:"type"`

	// message
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
	Seq      int64  `json:"seq,omitempty"`

	// roomData
	Room  string   `json:"room,omitempty"`
	Users []string `json:"users,omitempty"`

	// error
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

func messageEvent(username, text string, seq int64) Event {
	return Event{Type: TypeMessage, Username: username, Text: text, Seq: seq}
}

func roomDataEvent(room string, users []string) Event {
	return Event{Type: TypeRoomData, Room: room, Users: users}
}

func errorEvent(code, msg string) Event {
	return Event{Type: TypeError, Code: code, Error: msg}
}

// Session is a live connection the core can deliver events to.
// Delivery is best-effort and must never block: a session that cannot
// accept an event loses it, a disconnected session drops it silently.
type Session interface {
	ID() string
	Deliver(ev Event)
}
