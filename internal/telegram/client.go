package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.telegram.org"

// Client is a thin Bot API client. Every method is a single request/response
// call; retry policy belongs to callers.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
	log        zerolog.Logger
}

func NewClient(token string, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
		baseURL:    defaultBaseURL,
		log:        log.With().Str("component", "telegram").Logger(),
	}
}

// WithBaseURL points the client at a different API host, used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type apiResponse struct {
	Ok          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		// Non-decodable payloads are fatal for the call; no retry.
		return fmt.Errorf("%s returned non-JSON response: %w", method, err)
	}
	if !envelope.Ok {
		return &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// setThread adds message_thread_id when a thread is addressed. Thread ids are
// strings at the application layer and integers on the wire.
func setThread(params map[string]any, threadID string) {
	if threadID == "" {
		return
	}
	if n, err := strconv.ParseInt(threadID, 10, 64); err == nil {
		params["message_thread_id"] = n
	}
}

func setMessageID(params map[string]any, messageID string) {
	if n, err := strconv.ParseInt(messageID, 10, 64); err == nil {
		params["message_id"] = n
	}
}

type SendMessageRequest struct {
	ChatID              string
	ThreadID            string
	Text                string
	ParseMode           string
	ReplyMarkup         *InlineKeyboardMarkup
	DisableNotification bool
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	params := map[string]any{
		"chat_id": req.ChatID,
		"text":    req.Text,
	}
	setThread(params, req.ThreadID)
	if req.ParseMode != "" {
		params["parse_mode"] = req.ParseMode
	}
	if req.ReplyMarkup != nil {
		params["reply_markup"] = req.ReplyMarkup
	}
	if req.DisableNotification {
		params["disable_notification"] = true
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type CopyMessageRequest struct {
	ChatID              string
	ThreadID            string
	FromChatID          string
	MessageID           string
	DisableNotification bool
}

// CopyMessage copies a message without a forward header and returns the new
// message id in the destination chat.
func (c *Client) CopyMessage(ctx context.Context, req CopyMessageRequest) (string, error) {
	params := map[string]any{
		"chat_id":      req.ChatID,
		"from_chat_id": req.FromChatID,
	}
	setThread(params, req.ThreadID)
	setMessageID(params, req.MessageID)
	if req.DisableNotification {
		params["disable_notification"] = true
	}
	var ref struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "copyMessage", params, &ref); err != nil {
		return "", err
	}
	return strconv.FormatInt(ref.MessageID, 10), nil
}

// CreateForumTopic creates a topic in a forum supergroup and returns its
// thread id.
func (c *Client) CreateForumTopic(ctx context.Context, chatID, name string) (string, error) {
	params := map[string]any{
		"chat_id": chatID,
		"name":    name,
	}
	var topic ForumTopic
	if err := c.call(ctx, "createForumTopic", params, &topic); err != nil {
		return "", err
	}
	return strconv.FormatInt(topic.MessageThreadID, 10), nil
}

// EditForumTopic renames an existing topic.
func (c *Client) EditForumTopic(ctx context.Context, chatID, threadID, name string) error {
	params := map[string]any{
		"chat_id": chatID,
		"name":    name,
	}
	setThread(params, threadID)
	return c.call(ctx, "editForumTopic", params, nil)
}

func (c *Client) PinChatMessage(ctx context.Context, chatID, messageID string, disableNotification bool) error {
	params := map[string]any{
		"chat_id":              chatID,
		"disable_notification": disableNotification,
	}
	setMessageID(params, messageID)
	return c.call(ctx, "pinChatMessage", params, nil)
}

type EditMessageTextRequest struct {
	ChatID      string
	MessageID   string
	Text        string
	ParseMode   string
	ReplyMarkup *InlineKeyboardMarkup
}

func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	params := map[string]any{
		"chat_id": req.ChatID,
		"text":    req.Text,
	}
	setMessageID(params, req.MessageID)
	if req.ParseMode != "" {
		params["parse_mode"] = req.ParseMode
	}
	if req.ReplyMarkup != nil {
		params["reply_markup"] = req.ReplyMarkup
	}
	return c.call(ctx, "editMessageText", params, nil)
}

func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID, messageID string, markup *InlineKeyboardMarkup) error {
	params := map[string]any{
		"chat_id":      chatID,
		"reply_markup": markup,
	}
	setMessageID(params, messageID)
	return c.call(ctx, "editMessageReplyMarkup", params, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error {
	params := map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        showAlert,
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// MediaKind selects the send method for non-text staff replies.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAudio     MediaKind = "audio"
	MediaVoice     MediaKind = "voice"
	MediaSticker   MediaKind = "sticker"
	MediaAnimation MediaKind = "animation"
	MediaDocument  MediaKind = "document"
)

var mediaMethods = map[MediaKind]string{
	MediaPhoto:     "sendPhoto",
	MediaVideo:     "sendVideo",
	MediaAudio:     "sendAudio",
	MediaVoice:     "sendVoice",
	MediaSticker:   "sendSticker",
	MediaAnimation: "sendAnimation",
	MediaDocument:  "sendDocument",
}

// SendMedia re-sends an already-uploaded file by id. Stickers cannot carry a
// caption; everything else can.
func (c *Client) SendMedia(ctx context.Context, chatID string, kind MediaKind, fileID, caption string) error {
	method, ok := mediaMethods[kind]
	if !ok {
		return fmt.Errorf("telegram: unsupported media kind %q", kind)
	}
	params := map[string]any{
		"chat_id":    chatID,
		string(kind): fileID,
	}
	if caption != "" && kind != MediaSticker {
		params["caption"] = caption
	}
	return c.call(ctx, method, params, nil)
}
