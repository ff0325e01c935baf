package service

import (
	"strings"

	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/itchan-dev/legorachat/shared/logger"
)

type AuthService interface {
	Login(creds domain.Credentials) (domain.User, error)
}

type Auth struct {
	storage UserStorage
}

type UserStorage interface {
	User(username domain.Username) (domain.User, error)
	UsersByName(usernames []domain.Username) ([]domain.User, error)
	SaveUser(creds domain.Credentials) (domain.User, error)
}

func NewAuth(storage UserStorage) *Auth {
	return &Auth{storage: storage}
}

// Login authenticates by username and password. Unknown usernames are
// registered on the spot with the supplied password.
// A mismatching password yields Unauthorized("Invalid password") and
// leaves the stored credential untouched.
func (a *Auth) Login(creds domain.Credentials) (domain.User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return domain.User{}, errors.Validation("Username and password are required")
	}

	user, err := a.storage.User(creds.Username)
	if err != nil {
		if !errors.IsNotFound(err) {
			return domain.User{}, err
		}
		user, err = a.register(creds)
		if err != nil {
			return domain.User{}, err
		}
	}

	if user.Password != creds.Password {
		return domain.User{}, errors.Unauthorized("Invalid password")
	}
	return user, nil
}

// register creates the account. Losing a creation race to a concurrent login
// falls back to the winner's row.
func (a *Auth) register(creds domain.Credentials) (domain.User, error) {
	user, err := a.storage.SaveUser(creds)
	if err == nil {
		logger.Log.Info("registered new user", "user_id", user.Id, "username", user.Username)
		return user, nil
	}
	if !errors.IsConflict(err) {
		return domain.User{}, err
	}

	logger.Log.Debug("username taken concurrently, retrying lookup", "username", creds.Username)
	return a.storage.User(creds.Username)
}
