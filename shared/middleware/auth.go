package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/itchan-dev/legorachat/shared/utils"
)

// UserIdHeader carries the caller identity. It is accepted as given.
const UserIdHeader = "X-User-Id"

// Key to store the caller id in the request context
type key int

const UserIdKey key = 0

// ParseUserId parses a positive user id.
func ParseUserId(raw string) (domain.UserId, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validation("Invalid user id")
	}
	return id, nil
}

// NeedIdentity rejects requests without a valid X-User-Id header and
// stores the id in the request context.
func NeedIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(UserIdHeader)
			if raw == "" {
				utils.WriteErrorAndStatusCode(w, errors.Unauthorized("Please sign-in"))
				return
			}
			userId, err := ParseUserId(raw)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, errors.Unauthorized("Invalid user id"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserId(r.Context(), userId)))
		})
	}
}

func WithUserId(ctx context.Context, userId domain.UserId) context.Context {
	return context.WithValue(ctx, UserIdKey, userId)
}

// GetUserIdFromContext returns the caller id stored by NeedIdentity.
func GetUserIdFromContext(r *http.Request) (domain.UserId, bool) {
	userId, ok := r.Context().Value(UserIdKey).(domain.UserId)
	return userId, ok
}
