package domain

import (
	"slices"
	"strings"
	"time"
)

// DefaultThreadName is shown when a thread has no participant besides the viewer.
const DefaultThreadName = "Group Chat"

type Participant struct {
	Id       UserId   `json:"id"`
	Username Username `json:"username"`
}

type Thread struct {
	Id           ThreadId      `json:"id"`
	CreatedAt    time.Time     `json:"createdAt"`
	Participants []Participant `json:"participants"`
}

func (t Thread) ParticipantIds() []UserId {
	ids := make([]UserId, 0, len(t.Participants))
	for _, p := range t.Participants {
		ids = append(ids, p.Id)
	}
	return ids
}

// SummaryFor builds the thread list entry as seen by viewer.
func (t Thread) SummaryFor(viewer UserId) ThreadSummary {
	others := make([]Username, 0, len(t.Participants))
	for _, p := range t.Participants {
		if p.Id != viewer {
			others = append(others, p.Username)
		}
	}
	return ThreadSummary{
		Id:        t.Id,
		Name:      DisplayName(others),
		CreatedAt: t.CreatedAt,
	}
}

// ThreadDigest is a raw per-viewer thread row as read from storage.
type ThreadDigest struct {
	Id                ThreadId
	CreatedAt         time.Time
	OtherParticipants []Username
	LastMessage       *Message
}

// ThreadSummary is derived on every read and never persisted.
type ThreadSummary struct {
	Id          ThreadId  `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
	LastMessage *Message  `json:"lastMessage,omitempty"`
}

// LastActivity is the last message time, or thread creation time for empty threads.
func (t ThreadSummary) LastActivity() time.Time {
	if t.LastMessage != nil {
		return t.LastMessage.CreatedAt
	}
	return t.CreatedAt
}

// DisplayName joins the other participants' usernames in lexicographic order.
func DisplayName(others []Username) string {
	if len(others) == 0 {
		return DefaultThreadName
	}
	sorted := slices.Clone(others)
	slices.Sort(sorted)
	return strings.Join(sorted, ", ")
}

// SortByActivity orders summaries most recent first. Ties go to the newer thread.
func SortByActivity(threads []ThreadSummary) {
	slices.SortStableFunc(threads, func(a, b ThreadSummary) int {
		if c := b.LastActivity().Compare(a.LastActivity()); c != 0 {
			return c
		}
		switch {
		case a.Id > b.Id:
			return -1
		case a.Id < b.Id:
			return 1
		}
		return 0
	})
}
