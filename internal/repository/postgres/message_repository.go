package postgres

import (
	"context"
	"database/sql"
	"errors"

	"relay-bot-backend/internal/model"
)

// MessageRepository is the edit-tracking ledger. One row per relayed message,
// overwritten on every edit so it always holds the previous generation.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository { return &MessageRepository{db: db} }

func (r *MessageRepository) Put(ctx context.Context, ownerID, messageID string, m model.StoredMessage) error {
	const q = `INSERT INTO messages (user_id, message_id, text, date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, message_id) DO UPDATE SET
			text = EXCLUDED.text,
			date = EXCLUDED.date`
	_, err := r.db.ExecContext(ctx, q, ownerID, messageID, m.Text, m.Date)
	return err
}

// Get returns nil when no entry exists for the key.
func (r *MessageRepository) Get(ctx context.Context, ownerID, messageID string) (*model.StoredMessage, error) {
	const q = `SELECT COALESCE(text, ''), COALESCE(date, 0) FROM messages WHERE user_id = $1 AND message_id = $2`
	var m model.StoredMessage
	if err := r.db.QueryRowContext(ctx, q, ownerID, messageID).Scan(&m.Text, &m.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
