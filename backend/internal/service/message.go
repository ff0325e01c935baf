package service

import (
	"strings"

	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/samber/lo"
)

type MessageService interface {
	Send(requester domain.UserId, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error)
	List(requester domain.UserId, threadId domain.ThreadId) ([]domain.Message, error)
}

type Message struct {
	storage  MessageStorage
	notifier Notifier
}

type MessageStorage interface {
	AppendMessage(data domain.MessageCreationData) (domain.Message, error)
	Messages(threadId domain.ThreadId) ([]domain.Message, error)
	ParticipantIds(threadId domain.ThreadId) ([]domain.UserId, error)
}

func NewMessage(storage MessageStorage, notifier Notifier) *Message {
	return &Message{storage: storage, notifier: notifier}
}

// Send persists a message from a thread participant and fans it out to
// every participant, the sender included.
func (m *Message) Send(requester domain.UserId, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, errors.Validation("Message content is empty")
	}

	participants, err := m.requireParticipant(requester, threadId)
	if err != nil {
		return domain.Message{}, err
	}

	msg, err := m.storage.AppendMessage(domain.MessageCreationData{
		ThreadId: threadId,
		SenderId: requester,
		Content:  content,
	})
	if err != nil {
		return domain.Message{}, err
	}

	m.notifier.Notify(participants, domain.NewMessageEvent(msg))
	return msg, nil
}

func (m *Message) List(requester domain.UserId, threadId domain.ThreadId) ([]domain.Message, error) {
	if _, err := m.requireParticipant(requester, threadId); err != nil {
		return nil, err
	}
	return m.storage.Messages(threadId)
}

func (m *Message) requireParticipant(userId domain.UserId, threadId domain.ThreadId) ([]domain.UserId, error) {
	participants, err := m.storage.ParticipantIds(threadId)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(participants, userId) {
		return nil, errors.Forbidden("Not a participant of this thread")
	}
	return participants, nil
}
