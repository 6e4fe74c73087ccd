package chat

import "encoding/json"

// EventType labels the messages exchanged over the real-time channel.
type EventType string

const (
	// EventJoin subscribes the connection to the room for a user pair.
	EventJoin EventType = "join"
	// EventSend publishes a message to the pair's room.
	EventSend EventType = "send"
	// EventReceive carries a message from the server to subscribed clients.
	EventReceive EventType = "receive"
)

// Event is the wire format of the real-time channel.
type Event struct {
	Type    EventType       `json:"type"`
	Users   []string        `json:"users,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
}

// MessagePayload is the client-supplied body of a chat message.
type MessagePayload struct {
	Author   string `json:"author"`
	Content  string `json:"content"`
	Markdown bool   `json:"markdown"`
	Math     bool   `json:"math"`
}

func receiveEvent(users []string, payload *MessagePayload) ([]byte, error) {
	return json.Marshal(Event{Type: EventReceive, Users: users, Message: payload})
}
