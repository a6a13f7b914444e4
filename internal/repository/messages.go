package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

const messageColumns = `message_id, thread_id, seq, sender, content, handlers, ts, user_id`

// AppendMessages writes msgs to the thread in one transaction.
// Either every message is committed or none is.
func (s *SQLiteStore) AppendMessages(ctx context.Context, msgs []domain.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO messages (message_id, thread_id, seq, sender, content, handlers, ts, user_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range msgs {
			var handlers sql.NullString
			if len(m.Handlers) > 0 {
				b, _ := json.Marshal(m.Handlers)
				handlers = nullString(string(b))
			}
			if _, err := stmt.ExecContext(ctx, m.ID, m.ThreadID, m.Seq, string(m.Sender), m.Content, handlers, m.Timestamp.UnixNano(), nullString(m.UserID)); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s seq %d", ErrConflict, m.ThreadID, m.Seq)
				}
				return err
			}
		}
		return nil
	})
}

// LastMessage returns the sequence and timestamp of the newest message in a thread.
func (s *SQLiteStore) LastMessage(ctx context.Context, threadID string) (int64, time.Time, bool, error) {
	var seq, ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT seq, ts FROM messages WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`, threadID).Scan(&seq, &ts)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}
	return seq, time.Unix(0, ts).UTC(), true, nil
}

// ThreadOwner returns the user who opened a thread.
func (s *SQLiteStore) ThreadOwner(ctx context.Context, threadID string) (string, bool, error) {
	var owner sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM messages WHERE thread_id = ? ORDER BY seq ASC LIMIT 1`, threadID).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner.String, true, nil
}

// ListMessages returns up to limit messages with seq greater than afterSeq, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, threadID string, afterSeq int64, limit int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE thread_id = ? AND seq > ? ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, threadID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the newest n messages of a thread, oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, threadID string, n int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ` + messageColumns + ` FROM (
			SELECT * FROM messages WHERE thread_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, threadID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var sender string
		var handlers sql.NullString
		var ts int64
		var userID sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Seq, &sender, &msg.Content, &handlers, &ts, &userID); err != nil {
			return nil, err
		}
		msg.UserID = userID.String
		msg.Sender = domain.Sender(sender)
		msg.Timestamp = time.Unix(0, ts).UTC()
		if handlers.Valid {
			if err := json.Unmarshal([]byte(handlers.String), &msg.Handlers); err != nil {
				return nil, fmt.Errorf("failed to decode handlers of %s: %w", msg.ID, err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
