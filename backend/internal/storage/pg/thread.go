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
// Public Methods (satisfy the service.ThreadStorage interface)
// =========================================================================

// CreateThread inserts a thread and its participant set atomically.
// Duplicate ids collapse into one participant row. An unknown user id
// rolls the whole thread back and is reported as NotFound.
func (s *Storage) CreateThread(participants []domain.UserId) (domain.Thread, error) {
	if len(participants) == 0 {
		return domain.Thread{}, internal_errors.Validation("Thread needs at least one participant")
	}

	ctx, cancel := newQueryContext()
	defer cancel()

	var thread domain.Thread
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		thread, err = s.createThread(ctx, tx, participants)
		return err
	})
	return thread, err
}

// Thread returns a thread with its participants ordered by username.
func (s *Storage) Thread(id domain.ThreadId) (domain.Thread, error) {
	ctx, cancel := newQueryContext()
	defer cancel()

	return s.thread(ctx, s.db, id)
}

// ParticipantIds returns the participant set of a thread, NotFound if the
// thread does not exist.
func (s *Storage) ParticipantIds(id domain.ThreadId) ([]domain.UserId, error) {
	ctx, cancel := newQueryContext()
	defer cancel()

	return s.participantIds(ctx, s.db, id)
}

// ThreadDigests returns one row per thread the user participates in,
// most recent activity first. Everything comes from a single statement
// so the list is a consistent snapshot.
func (s *Storage) ThreadDigests(userId domain.UserId) ([]domain.ThreadDigest, error) {
	ctx, cancel := newQueryContext()
	defer cancel()

	return s.threadDigests(ctx, s.db, userId)
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

func (s *Storage) createThread(ctx context.Context, q Querier, participants []domain.UserId) (domain.Thread, error) {
	var id domain.ThreadId
	if err := q.QueryRowContext(ctx, "INSERT INTO threads DEFAULT VALUES RETURNING id").Scan(&id); err != nil {
		return domain.Thread{}, fmt.Errorf("failed to insert thread: %w", err)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO thread_participants (thread_id, user_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`,
		id, pq.Array(participants),
	)
	if err != nil {
		if err := sharedpg.MapError(err, "Participant already added", "User not found"); internal_errors.StatusCode(err) != 0 {
			return domain.Thread{}, err
		}
		return domain.Thread{}, fmt.Errorf("failed to insert thread participants: %w", err)
	}

	return s.thread(ctx, q, id)
}

func (s *Storage) thread(ctx context.Context, q Querier, id domain.ThreadId) (domain.Thread, error) {
	thread := domain.Thread{Id: id}
	err := q.QueryRowContext(ctx, "SELECT created_at FROM threads WHERE id = $1", id).Scan(&thread.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Thread{}, internal_errors.NotFound("Thread not found")
		}
		return domain.Thread{}, fmt.Errorf("failed to query thread: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.username
		FROM thread_participants tp
		JOIN users u ON u.id = tp.user_id
		WHERE tp.thread_id = $1
		ORDER BY u.username`,
		id,
	)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to query thread participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.Id, &p.Username); err != nil {
			return domain.Thread{}, fmt.Errorf("failed to scan participant: %w", err)
		}
		thread.Participants = append(thread.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return domain.Thread{}, fmt.Errorf("error iterating participants: %w", err)
	}
	return thread, nil
}

func (s *Storage) participantIds(ctx context.Context, q Querier, id domain.ThreadId) ([]domain.UserId, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tp.user_id
		FROM threads t
		LEFT JOIN thread_participants tp ON tp.thread_id = t.id
		WHERE t.id = $1
		ORDER BY tp.user_id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	found := false
	ids := []domain.UserId{}
	for rows.Next() {
		found = true
		var userId sql.NullInt64
		if err := rows.Scan(&userId); err != nil {
			return nil, fmt.Errorf("failed to scan participant id: %w", err)
		}
		if userId.Valid {
			ids = append(ids, userId.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant ids: %w", err)
	}
	if !found {
		return nil, internal_errors.NotFound("Thread not found")
	}
	return ids, nil
}

func (s *Storage) threadDigests(ctx context.Context, q Querier, userId domain.UserId) ([]domain.ThreadDigest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT
			t.id,
			t.created_at,
			ARRAY(
				SELECT u.username
				FROM thread_participants op
				JOIN users u ON u.id = op.user_id
				WHERE op.thread_id = t.id AND op.user_id <> $1
				ORDER BY u.username
			) AS others,
			lm.id, lm.sender_id, lm.sender_name, lm.content, lm.created_at
		FROM thread_participants tp
		JOIN threads t ON t.id = tp.thread_id
		LEFT JOIN LATERAL (
			SELECT m.id, m.sender_id, u.username AS sender_name, m.content, m.created_at
			FROM messages m
			JOIN users u ON u.id = m.sender_id
			WHERE m.thread_id = t.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		) lm ON true
		WHERE tp.user_id = $1
		ORDER BY COALESCE(lm.created_at, t.created_at) DESC, t.id DESC`,
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	digests := []domain.ThreadDigest{}
	for rows.Next() {
		var (
			d          domain.ThreadDigest
			others     pq.StringArray
			msgId      sql.NullInt64
			senderId   sql.NullInt64
			senderName sql.NullString
			content    sql.NullString
			msgCreated sql.NullTime
		)
		if err := rows.Scan(&d.Id, &d.CreatedAt, &others, &msgId, &senderId, &senderName, &content, &msgCreated); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		d.OtherParticipants = []domain.Username(others)
		if msgId.Valid {
			d.LastMessage = &domain.Message{
				Id:         msgId.Int64,
				ThreadId:   d.Id,
				SenderId:   senderId.Int64,
				SenderName: senderName.String,
				Content:    content.String,
				CreatedAt:  msgCreated.Time,
			}
		}
		digests = append(digests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}
	return digests, nil
}
