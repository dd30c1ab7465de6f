package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"relay-bot-backend/internal/model"
)

// UserRepository persists end-user relay state.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

const userColumns = `user_id, user_state, is_blocked, is_muted, block_count,
	COALESCE(thread_id, ''), COALESCE(info_card_message_id, ''),
	COALESCE(block_log_message_id, ''), COALESCE(profile_log_message_id, ''),
	COALESCE(profile_json, '')`

// GetOrCreate returns the user row, inserting a default record first if none
// exists. Insert-or-ignore-then-read keeps concurrent first contacts from the
// same user idempotent without any locking.
func (r *UserRepository) GetOrCreate(ctx context.Context, id string) (*model.User, error) {
	const ins = `INSERT INTO users (user_id, user_state, is_blocked, is_muted, block_count)
		VALUES ($1, 'new', FALSE, FALSE, 0)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, ins, id); err != nil {
		return nil, fmt.Errorf("insert default user: %w", err)
	}
	u, err := r.get(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s vanished after insert", id)
	}
	return u, nil
}

// FindByThread returns the user id owning the given thread, or "" when the
// thread is unknown.
func (r *UserRepository) FindByThread(ctx context.Context, threadID string) (string, error) {
	const q = `SELECT user_id FROM users WHERE thread_id = $1`
	var id string
	if err := r.db.QueryRowContext(ctx, q, threadID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// Update applies a partial update built from the non-nil patch fields.
func (r *UserRepository) Update(ctx context.Context, id string, patch model.UserPatch) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	addRef := func(col string, v **string) {
		if v == nil {
			return
		}
		if *v == nil {
			sets = append(sets, col+" = NULL")
			return
		}
		add(col, **v)
	}

	if patch.State != nil {
		add("user_state", string(*patch.State))
	}
	if patch.IsBlocked != nil {
		add("is_blocked", *patch.IsBlocked)
	}
	if patch.IsMuted != nil {
		add("is_muted", *patch.IsMuted)
	}
	if patch.BlockCount != nil {
		add("block_count", *patch.BlockCount)
	}
	addRef("thread_id", patch.ThreadID)
	addRef("info_card_message_id", patch.CardMessageID)
	addRef("block_log_message_id", patch.BlockLogMessageID)
	addRef("profile_log_message_id", patch.ProfileLogMessageID)
	if patch.Profile != nil {
		b, err := json.Marshal(patch.Profile)
		if err != nil {
			return fmt.Errorf("marshal profile: %w", err)
		}
		add("profile_json", string(b))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE users SET %s WHERE user_id = $%d", strings.Join(sets, ", "), len(args))
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *UserRepository) get(ctx context.Context, q string, args ...any) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, q, args...)
	var u model.User
	var profileJSON string
	if err := row.Scan(&u.ID, &u.State, &u.IsBlocked, &u.IsMuted, &u.BlockCount,
		&u.ThreadID, &u.CardMessageID, &u.BlockLogMessageID, &u.ProfileLogMessageID,
		&profileJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if profileJSON != "" {
		var p model.Profile
		if err := json.Unmarshal([]byte(profileJSON), &p); err == nil {
			u.Profile = &p
		}
	}
	return &u, nil
}
