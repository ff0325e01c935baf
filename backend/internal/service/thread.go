package service

import (
	"strings"

	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/itchan-dev/legorachat/shared/logger"
	"github.com/samber/lo"
)

type ThreadService interface {
	Create(requester domain.UserId, usernames []domain.Username) (domain.Thread, error)
	List(userId domain.UserId) ([]domain.ThreadSummary, error)
}

type Thread struct {
	storage  ThreadStorage
	users    UserStorage
	notifier Notifier
}

type ThreadStorage interface {
	CreateThread(participants []domain.UserId) (domain.Thread, error)
	ThreadDigests(userId domain.UserId) ([]domain.ThreadDigest, error)
}

func NewThread(storage ThreadStorage, users UserStorage, notifier Notifier) *Thread {
	return &Thread{storage: storage, users: users, notifier: notifier}
}

// Create opens a thread between the requester and the named users.
// Usernames that do not resolve are skipped, so the thread may end up
// with only the requester in it. Every participant gets a newThread event
// named from their own point of view.
func (t *Thread) Create(requester domain.UserId, usernames []domain.Username) (domain.Thread, error) {
	usernames = lo.Uniq(lo.FilterMap(usernames, func(u domain.Username, _ int) (domain.Username, bool) {
		u = strings.TrimSpace(u)
		return u, u != ""
	}))
	if len(usernames) == 0 {
		return domain.Thread{}, errors.Validation("At least one participant username is required")
	}

	users, err := t.users.UsersByName(usernames)
	if err != nil {
		return domain.Thread{}, err
	}
	if skipped := len(usernames) - len(users); skipped > 0 {
		logger.Log.Debug("skipping unknown usernames", "requester", requester, "skipped", skipped)
	}

	ids := lo.Uniq(append([]domain.UserId{requester}, lo.Map(users, func(u domain.User, _ int) domain.UserId {
		return u.Id
	})...))

	thread, err := t.storage.CreateThread(ids)
	if err != nil {
		return domain.Thread{}, err
	}

	logger.Log.Info("thread created", "thread_id", thread.Id, "participants", thread.ParticipantIds())
	for _, p := range thread.Participants {
		t.notifier.Notify([]domain.UserId{p.Id}, domain.NewThreadEvent(thread.SummaryFor(p.Id)))
	}
	return thread, nil
}

// List re-derives the thread list from storage on every call.
func (t *Thread) List(userId domain.UserId) ([]domain.ThreadSummary, error) {
	digests, err := t.storage.ThreadDigests(userId)
	if err != nil {
		return nil, err
	}
	return MaterializeThreads(digests), nil
}
