package domain

import (
	"time"
)

// to iterate thru layers: handler -> service -> storage
type MessageCreationData struct {
	ThreadId ThreadId
	SenderId UserId
	Content  MsgText
}

// Message is a persisted message. SenderName is joined from users at read time.
type Message struct {
	Id         MsgId     `json:"id"`
	ThreadId   ThreadId  `json:"threadId"`
	SenderId   UserId    `json:"senderId"`
	SenderName Username  `json:"senderName"`
	Content    MsgText   `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Before reports whether m is ordered before other within a thread.
// created_at has finite resolution, ties are broken by id.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.Id < other.Id
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
