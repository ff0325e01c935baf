package livesync

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/samber/lo"
)

const tempIdPrefix = "temp-"

// Entry is a message as shown locally. Pending entries are optimistic
// placeholders that have not been confirmed by the server yet.
type Entry struct {
	LocalId string
	Message domain.Message
	Pending bool
}

// Store is the client's local projection: the thread list, the open thread
// and its messages. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	self       domain.UserId
	selfName   domain.Username
	threads    []domain.ThreadSummary
	openThread domain.ThreadId
	confirmed  []domain.Message
	pending    []Entry
	onChange   func()
}

func NewStore(self domain.User) *Store {
	return &Store{self: self.Id, selfName: self.Username}
}

// OnChange registers a callback run after every mutation, outside the lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *Store) Threads() []domain.ThreadSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.threads)
}

func (s *Store) OpenThread() domain.ThreadId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openThread
}

// Messages returns confirmed messages in thread order followed by pending
// placeholders in the order they were sent.
func (s *Store) Messages() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := lo.Map(s.confirmed, func(m domain.Message, _ int) Entry { return Entry{Message: m} })
	return append(out, s.pending...)
}

// SetThreads merges a fetched thread list into the local one. Threads are
// never removed, and for a thread known on both sides the newer last
// message wins, so a fetch that started before an event cannot undo it.
func (s *Store) SetThreads(threads []domain.ThreadSummary) {
	s.mu.Lock()
	for _, fetched := range threads {
		_, i, ok := lo.FindIndexOf(s.threads, func(t domain.ThreadSummary) bool { return t.Id == fetched.Id })
		if !ok {
			s.threads = append(s.threads, fetched)
			continue
		}
		local := s.threads[i].LastMessage
		s.threads[i] = fetched
		if local != nil && (fetched.LastMessage == nil || fetched.LastMessage.Before(*local)) {
			s.threads[i].LastMessage = local
		}
	}
	domain.SortByActivity(s.threads)
	s.mu.Unlock()
	s.changed()
}

// Open switches the open thread and loads its history. Re-opening the same
// thread merges the history by id, keeping messages that arrived while it
// was being fetched. Placeholders still in flight survive as well.
func (s *Store) Open(threadId domain.ThreadId, history []domain.Message) {
	s.mu.Lock()
	if s.openThread != threadId {
		s.pending = nil
		s.confirmed = nil
	}
	s.openThread = threadId
	if len(s.confirmed) == 0 {
		s.confirmed = slices.Clone(history)
		slices.SortStableFunc(s.confirmed, compareMessages)
	} else {
		for _, m := range history {
			s.mergeLocked(m)
		}
	}
	s.mu.Unlock()
	s.changed()
}

// ApplyEvent merges a pushed event. It returns true when the event refers
// to a thread the store does not know, so the thread list should be
// re-fetched.
func (s *Store) ApplyEvent(ev domain.Event) (refetch bool) {
	s.mu.Lock()
	switch ev.Type {
	case domain.EventNewMessage:
		if ev.Message == nil {
			s.mu.Unlock()
			return false
		}
		msg := *ev.Message
		if msg.ThreadId == s.openThread {
			s.mergeLocked(msg)
		}
		refetch = !s.touchThreadLocked(msg)
	case domain.EventNewThread:
		if ev.Thread != nil && !s.hasThreadLocked(ev.Thread.Id) {
			s.threads = append(s.threads, *ev.Thread)
			domain.SortByActivity(s.threads)
		}
	default:
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	s.changed()
	return refetch
}

// AddPending renders an optimistic placeholder for a message being sent
// and returns its local id.
func (s *Store) AddPending(threadId domain.ThreadId, content domain.MsgText) string {
	localId := tempIdPrefix + uuid.NewString()
	s.mu.Lock()
	if threadId == s.openThread {
		s.pending = append(s.pending, Entry{
			LocalId: localId,
			Pending: true,
			Message: domain.Message{
				ThreadId:   threadId,
				SenderId:   s.self,
				SenderName: s.selfName,
				Content:    content,
				CreatedAt:  time.Now(),
			},
		})
	}
	s.mu.Unlock()
	s.changed()
	return localId
}

// Resolve replaces the placeholder with the server record. If the record
// already arrived as an event the placeholder is simply dropped.
func (s *Store) Resolve(localId string, msg domain.Message) {
	s.mu.Lock()
	s.dropPendingLocked(localId)
	if msg.ThreadId == s.openThread {
		s.mergeLocked(msg)
	}
	s.touchThreadLocked(msg)
	s.mu.Unlock()
	s.changed()
}

// Fail removes the placeholder of a send the server rejected.
func (s *Store) Fail(localId string) {
	s.mu.Lock()
	s.dropPendingLocked(localId)
	s.mu.Unlock()
	s.changed()
}

func (s *Store) dropPendingLocked(localId string) {
	s.pending = lo.Reject(s.pending, func(e Entry, _ int) bool { return e.LocalId == localId })
}

// mergeLocked inserts msg in thread order unless a message with the same
// server id is already present.
func (s *Store) mergeLocked(msg domain.Message) {
	if lo.ContainsBy(s.confirmed, func(m domain.Message) bool { return m.Id == msg.Id }) {
		return
	}
	i, _ := slices.BinarySearchFunc(s.confirmed, msg, compareMessages)
	s.confirmed = slices.Insert(s.confirmed, i, msg)
}

// touchThreadLocked records msg as the thread's last message when it is
// newer and re-sorts. It returns false if the thread is unknown.
func (s *Store) touchThreadLocked(msg domain.Message) bool {
	_, i, ok := lo.FindIndexOf(s.threads, func(t domain.ThreadSummary) bool { return t.Id == msg.ThreadId })
	if !ok {
		return false
	}
	if last := s.threads[i].LastMessage; last == nil || last.Before(msg) {
		m := msg
		s.threads[i].LastMessage = &m
		domain.SortByActivity(s.threads)
	}
	return true
}

func (s *Store) hasThreadLocked(id domain.ThreadId) bool {
	return lo.ContainsBy(s.threads, func(t domain.ThreadSummary) bool { return t.Id == id })
}

func compareMessages(a, b domain.Message) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	}
	return 0
}
