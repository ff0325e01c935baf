package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/itchan-dev/legorachat/shared/domain"
	internal_errors "github.com/itchan-dev/legorachat/shared/errors"
	sharedpg "github.com/itchan-dev/legorachat/shared/storage/pg"
)

// =========================================================================
// Public Methods (satisfy the service.MessageStorage interface)
// =========================================================================

// AppendMessage persists a message and returns it with the sender name
// resolved. Membership is not checked here.
func (s *Storage) AppendMessage(data domain.MessageCreationData) (domain.Message, error) {
	if strings.TrimSpace(data.Content) == "" {
		return domain.Message{}, internal_errors.Validation("Message content is empty")
	}

	ctx, cancel := newQueryContext()
	defer cancel()

	var msg domain.Message
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		msg, err = s.appendMessage(ctx, tx, data)
		return err
	})
	return msg, err
}

// Messages returns the thread history in ascending (created_at, id) order.
func (s *Storage) Messages(threadId domain.ThreadId) ([]domain.Message, error) {
	ctx, cancel := newQueryContext()
	defer cancel()

	return s.messages(ctx, s.db, threadId)
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

func (s *Storage) appendMessage(ctx context.Context, q Querier, data domain.MessageCreationData) (domain.Message, error) {
	// share lock keeps the thread from being deleted until commit
	var threadId domain.ThreadId
	err := q.QueryRowContext(ctx, "SELECT id FROM threads WHERE id = $1 FOR SHARE", data.ThreadId).Scan(&threadId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, internal_errors.NotFound("Thread not found")
		}
		return domain.Message{}, fmt.Errorf("failed to lock thread: %w", err)
	}

	var msg domain.Message
	err = q.QueryRowContext(ctx, `
		WITH inserted AS (
			INSERT INTO messages (thread_id, sender_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, thread_id, sender_id, content, created_at
		)
		SELECT i.id, i.thread_id, i.sender_id, u.username, i.content, i.created_at
		FROM inserted i
		JOIN users u ON u.id = i.sender_id`,
		data.ThreadId, data.SenderId, data.Content,
	).Scan(&msg.Id, &msg.ThreadId, &msg.SenderId, &msg.SenderName, &msg.Content, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, internal_errors.NotFound("User not found")
		}
		if err := sharedpg.MapError(err, "Message already exists", "User not found"); internal_errors.StatusCode(err) != 0 {
			return domain.Message{}, err
		}
		return domain.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

func (s *Storage) messages(ctx context.Context, q Querier, threadId domain.ThreadId) ([]domain.Message, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.id, m.thread_id, m.sender_id, u.username, m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.thread_id = $1
		ORDER BY m.created_at ASC, m.id ASC`,
		threadId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Id, &m.ThreadId, &m.SenderId, &m.SenderName, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return msgs, nil
}
