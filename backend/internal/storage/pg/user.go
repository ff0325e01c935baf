package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/itchan-dev/legorachat/shared/domain"
	internal_errors "github.com/itchan-dev/legorachat/shared/errors"
	sharedpg "github.com/itchan-dev/legorachat/shared/storage/pg"
	"github.com/lib/pq"
)

// =========================================================================
// Public Methods (satisfy the service.UserStorage interface)
// =========================================================================

// User fetches a user by username. Returns NotFound if absent.
func (s *Storage) User(username domain.Username) (domain.User, error) {
	ctx, cancel := newQueryContext()
	defer cancel()

	return s.user(ctx, s.db, username)
}

// UsersByName resolves usernames in one query. Unknown names are absent from the result.
func (s *Storage) UsersByName(usernames []domain.Username) ([]domain.User, error) {
	ctx, cancel := newQueryContext()
	defer cancel()

	return s.usersByName(ctx, s.db, usernames)
}

// SaveUser creates an account. A taken username is reported as Conflict,
// callers treat it as a lost race and look the user up again.
func (s *Storage) SaveUser(creds domain.Credentials) (domain.User, error) {
	ctx, cancel := newQueryContext()
	defer cancel()

	return s.saveUser(ctx, s.db, creds)
}

// EnsureUsers inserts the given accounts, leaving existing ones untouched.
func (s *Storage) EnsureUsers(users []domain.Credentials) error {
	ctx, cancel := newQueryContext()
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range users {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO users(username, password) VALUES($1, $2) ON CONFLICT (username) DO NOTHING",
				u.Username, u.Password)
			if err != nil {
				return fmt.Errorf("failed to seed user %q: %w", u.Username, err)
			}
		}
		return nil
	})
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

func (s *Storage) user(ctx context.Context, q Querier, username domain.Username) (domain.User, error) {
	var user domain.User
	err := q.QueryRowContext(ctx,
		"SELECT id, username, password, created_at FROM users WHERE username = $1", username).
		Scan(&user.Id, &user.Username, &user.Password, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, internal_errors.NotFound("User not found")
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *Storage) usersByName(ctx context.Context, q Querier, usernames []domain.Username) ([]domain.User, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, username, password, created_at FROM users WHERE username = ANY($1) ORDER BY username",
		pq.Array(usernames))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, len(usernames))
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Id, &u.Username, &u.Password, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (s *Storage) saveUser(ctx context.Context, q Querier, creds domain.Credentials) (domain.User, error) {
	user := domain.User{Username: creds.Username, Password: creds.Password}
	err := q.QueryRowContext(ctx,
		"INSERT INTO users(username, password) VALUES($1, $2) RETURNING id, created_at",
		creds.Username, creds.Password).Scan(&user.Id, &user.CreatedAt)
	if err != nil {
		if err := sharedpg.MapError(err, "Username already taken", "User not found"); internal_errors.StatusCode(err) != 0 {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}
