package domain

type EventType string

const (
	EventConnected  EventType = "connected"
	EventPing       EventType = "ping"
	EventNewMessage EventType = "newMessage"
	EventNewThread  EventType = "newThread"
)

// Event is one record on a live-updates channel.
type Event struct {
	Type     EventType      `json:"type"`
	ThreadId ThreadId       `json:"threadId,omitempty"`
	Message  *Message       `json:"message,omitempty"`
	Thread   *ThreadSummary `json:"thread,omitempty"`
}

func NewMessageEvent(msg Message) Event {
	return Event{Type: EventNewMessage, ThreadId: msg.ThreadId, Message: &msg}
}

func NewThreadEvent(thread ThreadSummary) Event {
	return Event{Type: EventNewThread, ThreadId: thread.Id, Thread: &thread}
}
