package relay

import (
	"context"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/telegram"
)

// UserStore is the identity store: user records keyed by Telegram user id,
// with a unique reverse lookup by thread id.
type UserStore interface {
	GetOrCreate(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, patch model.UserPatch) error
	FindByThread(ctx context.Context, threadID string) (string, error)
}

// MessageStore is the edit-tracking ledger keyed by (owner, message id).
type MessageStore interface {
	Put(ctx context.Context, ownerID, messageID string, m model.StoredMessage) error
	Get(ctx context.Context, ownerID, messageID string) (*model.StoredMessage, error)
}

// Transport is the messaging RPC boundary. Calls may fail with classified
// errors; callers distinguish telegram.ErrThreadMissing for self-healing.
type Transport interface {
	SendMessage(ctx context.Context, req telegram.SendMessageRequest) (*telegram.Message, error)
	CopyMessage(ctx context.Context, req telegram.CopyMessageRequest) (string, error)
	CreateForumTopic(ctx context.Context, chatID, name string) (string, error)
	EditForumTopic(ctx context.Context, chatID, threadID, name string) error
	PinChatMessage(ctx context.Context, chatID, messageID string, disableNotification bool) error
	EditMessageText(ctx context.Context, req telegram.EditMessageTextRequest) error
	EditMessageReplyMarkup(ctx context.Context, chatID, messageID string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
	SendMedia(ctx context.Context, chatID string, kind telegram.MediaKind, fileID, caption string) error
}
