package service

import "github.com/itchan-dev/legorachat/shared/domain"

// Notifier delivers live events to every open channel of the given users.
// Notify must not block the calling request.
type Notifier interface {
	Notify(userIds []domain.UserId, event domain.Event)
}
