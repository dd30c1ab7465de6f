package telegram

// Wire types for the subset of the Bot API this service consumes. Field sets
// are intentionally partial; unknown fields are ignored on decode.

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	EditedMessage *Message       `json:"edited_message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url,omitempty"`
}

type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type File struct {
	FileID string `json:"file_id"`
}

type Message struct {
	MessageID       int64           `json:"message_id"`
	From            *User           `json:"from,omitempty"`
	Chat            Chat            `json:"chat"`
	Date            int64           `json:"date"`
	EditDate        int64           `json:"edit_date,omitempty"`
	Text            string          `json:"text,omitempty"`
	Caption         string          `json:"caption,omitempty"`
	Entities        []MessageEntity `json:"entities,omitempty"`
	CaptionEntities []MessageEntity `json:"caption_entities,omitempty"`

	IsTopicMessage  bool  `json:"is_topic_message,omitempty"`
	MessageThreadID int64 `json:"message_thread_id,omitempty"`

	ForwardFrom     *User `json:"forward_from,omitempty"`
	ForwardFromChat *Chat `json:"forward_from_chat,omitempty"`

	Photo     []PhotoSize `json:"photo,omitempty"`
	Video     *File       `json:"video,omitempty"`
	Audio     *File       `json:"audio,omitempty"`
	Voice     *File       `json:"voice,omitempty"`
	Sticker   *File       `json:"sticker,omitempty"`
	Animation *File       `json:"animation,omitempty"`
	Document  *File       `json:"document,omitempty"`

	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// HasLinks reports whether the message carries a URL or text-link entity in
// either the text or the caption.
func (m *Message) HasLinks() bool {
	entities := m.Entities
	if len(entities) == 0 {
		entities = m.CaptionEntities
	}
	for _, e := range entities {
		if e.Type == "url" || e.Type == "text_link" {
			return true
		}
	}
	return false
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type ForumTopic struct {
	MessageThreadID int64  `json:"message_thread_id"`
	Name            string `json:"name"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}
