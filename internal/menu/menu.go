package menu

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

// Transport is the slice of the messaging client the menu needs.
type Transport interface {
	SendMessage(ctx context.Context, req telegram.SendMessageRequest) (*telegram.Message, error)
	EditMessageText(ctx context.Context, req telegram.EditMessageTextRequest) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
}

// Menu is the inline configuration console for primary operators. All
// navigation happens through "config:"-prefixed callbacks; free-form values
// are collected via the per-operator input state.
type Menu struct {
	cfg *settings.Resolver
	tg  Transport
	log zerolog.Logger
}

func New(cfg *settings.Resolver, tg Transport, log zerolog.Logger) *Menu {
	return &Menu{cfg: cfg, tg: tg, log: log.With().Str("component", "menu").Logger()}
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func esc(s string) string { return htmlEscaper.Replace(s) }

func btn(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

func backRow(target string) []telegram.InlineKeyboardButton {
	return []telegram.InlineKeyboardButton{btn("⬅️ Back", target)}
}

// ShowMain sends a fresh main menu into the operator's chat.
func (m *Menu) ShowMain(ctx context.Context, chatID string) error {
	text, markup := m.mainMenu()
	_, err := m.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	return err
}

func (m *Menu) mainMenu() (string, *telegram.InlineKeyboardMarkup) {
	text := "⚙️ <b>Bot configuration</b>\n\nPick a section."
	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{btn("\U0001F44B Welcome message", "config:menu:welcome")},
		{btn("\U0001F510 Verification", "config:menu:verification")},
		{btn("\U0001F6A8 Block threshold", "config:menu:threshold")},
		{btn("\U0001F6AB Blocked keywords", "config:menu:block_keywords")},
		{btn("\U0001F916 Auto replies", "config:menu:auto_replies")},
		{btn("\U0001F39B Content filters", "config:menu:filters")},
		{btn("\U0001F4E6 Backup group", "config:menu:backup")},
		{btn("\U0001F465 Authorized operators", "config:menu:admins")},
	}}
	return text, markup
}

func (m *Menu) welcomeMenu(ctx context.Context) (string, *telegram.InlineKeyboardMarkup) {
	current := m.cfg.Get(ctx, settings.KeyWelcomeMessage, settings.DefaultWelcomeMessage)
	text := fmt.Sprintf("\U0001F44B <b>Welcome message</b>\n\nCurrent:\n<i>%s</i>", esc(current))
	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{btn("✏️ Edit", "config:edit:"+KindWelcomeMessage)},
		backRow("config:menu"),
	}}
	return text, markup
}

func (m *Menu) verificationMenu(ctx context.Context) (string, *telegram.InlineKeyboardMarkup) {
	question := m.cfg.Get(ctx, settings.KeyVerificationQuestion, settings.DefaultVerificationQuestion)
	answer := m.cfg.Get(ctx, settings.KeyVerificationAnswer, settings.DefaultVerificationAnswer)
	text := fmt.Sprintf("\U0001F510 <b>Verification</b>\n\n"+
		"Question:\n<i>%s</i>\n\n"+
		"Accepted answers (pipe-separated):\n<code>%s</code>",
		esc(question), esc(answer))
	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{btn("✏️ Edit question", "config:edit:"+KindVerificationQuestion)},
		{btn("✏️ Edit answers", "config:edit:"+KindVerificationAnswer)},
		backRow("config:menu"),
	}}
	return text, markup
}

func (m *Menu) thresholdMenu(ctx context.Context) (string, *telegram.InlineKeyboardMarkup) {
	threshold := m.cfg.GetInt(ctx, settings.KeyBlockThreshold, settings.DefaultBlockThreshold)
	text := fmt.Sprintf("\U0001F6A8 <b>Block threshold</b>\n\n"+
		"Users are blocked automatically after <b>%d</b> blocked-keyword strikes.", threshold)
	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{btn("✏️ Change", "config:edit:"+KindBlockThreshold)},
		backRow("config:menu"),
	}}
	return text, markup
}

func (m *Menu) blockKeywordsMenu(ctx context.Context) (string, *telegram.InlineKeyboardMarkup) {
	patterns := m.cfg.BlockPatterns(ctx)
	var sb strings.Builder
	sb.WriteString("\U0001F6AB <b>Blocked keywords</b>\n\nMatching messages are rejected and count as strikes.\n")
	rows := make([][]telegram.InlineKeyboardButton, 0, len(patterns)+2)
	if len(patterns) == 0 {
		sb.WriteString("\n<i>No keywords configured.</i>")
	}
	for i, p := range patterns {
		fmt.Fprintf(&sb, "\n%d. <code>%s</code>", i+1, esc(p))
		rows = append(rows, []telegram.InlineKeyboardButton{
			btn(fmt.Sprintf("🗑 Delete #%d", i+1), fmt.Sprintf("config:delete:block_keywords:%d", i)),
		})
	}
	rows = append(rows,
		[]telegram.InlineKeyboardButton{btn("➕ Add keyword", "config:add:"+KindBlockKeywordAdd)},
		backRow("config:menu"))
	return sb.String(), &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (m *Menu) autoRepliesMenu(ctx context.Context) (string, *telegram.InlineKeyboardMarkup) {
	rules := m.cfg.AutoReplyRules(ctx)
	var sb strings.Builder
	sb.WriteString("\U0001F916 <b>Auto replies</b>\n\nMessages matching a pattern get the canned response instead of being relayed.\n")
	rows := make([][]telegram.InlineKeyboardButton, 0, len(rules)+2)
	if len(rules) == 0 {
		sb.WriteString("\n<i>No rules configured.</i>")
	}
	for i, r := range rules {
		fmt.Fprintf(&sb, "\n%d. <code>%s</code> → <i>%s</i>", i+1, esc(r.Keywords), esc(r.Response))
		rows = append(rows, []telegram.InlineKeyboardButton{
			btn(fmt.Sprintf("🗑 Delete #%d", i+1), "config:delete:auto_replies:"+r.ID),
		})
	}
	rows = append(rows,
		[]telegram.InlineKeyboardButton{btn("➕ Add rule", "config:add:"+KindAutoReplyAdd)},
		backRow("config:menu"))
	return sb.String(), &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// filterToggles maps display labels to config keys, in menu order.
var filterToggles = []struct {
	label string
	key   string
}{
	{"Text messages", settings.KeyEnableTextForward},
	{"Media (photo/video/file)", settings.KeyEnableMediaForward},
	{"Audio and voice", settings.KeyEnableAudioForward},
	{"Stickers and GIFs", settings.KeyEnableStickerForward},
	{"Links", settings.KeyEnableLinkForward},
	{"Forwards from users", settings.KeyEnableUserForward},
	{"Forwards from groups", settings.KeyEnableGroupForward},
	{"Forwards from channels", settings.KeyEnableChannelForward},
}

func (m *Menu) filtersMenu(ctx context.Context) (string, *telegram.InlineKeyboardMarkup) {
	text := "\U0001F39B <b>Content filters</b>\n\nDisabled kinds are rejected with a notice to the user."
	rows := make([][]telegram.InlineKeyboardButton, 0, len(filterToggles)/2+2)
	var row []telegram.InlineKeyboardButton
	for _, t := range filterToggles {
		mark := "✅"
		if !m.cfg.GetBool(ctx, t.key, true) {
			mark = "\U0001F6AB"
		}
		row = append(row, btn(mark+" "+t.label, "config:toggle:"+t.key))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, backRow("config:menu"))
	return text, &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (m *Menu) backupMenu(ctx context.Context) (string, *telegram.InlineKeyboardMarkup) {
	current := m.cfg.Get(ctx, settings.KeyBackupGroupID, "")
	display := "<i>not configured</i>"
	if current != "" {
		display = "<code>" + esc(current) + "</code>"
	}
	text := "\U0001F4E6 <b>Backup group</b>\n\nEvery relayed user message is mirrored there.\n\nCurrent: " + display
	rows := [][]telegram.InlineKeyboardButton{
		{btn("✏️ Set group id", "config:edit:"+KindBackupGroup)},
	}
	if current != "" {
		rows = append(rows, []telegram.InlineKeyboardButton{btn("🗑 Disable mirroring", "config:clear:backup")})
	}
	rows = append(rows, backRow("config:menu"))
	return text, &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (m *Menu) adminsMenu(ctx context.Context) (string, *telegram.InlineKeyboardMarkup) {
	ids := m.cfg.AuthorizedOperators(ctx)
	var sb strings.Builder
	sb.WriteString("\U0001F465 <b>Authorized operators</b>\n\nCo-operators may use card actions but not this menu.\n")
	rows := make([][]telegram.InlineKeyboardButton, 0, len(ids)+2)
	if len(ids) == 0 {
		sb.WriteString("\n<i>No co-operators configured.</i>")
	}
	for _, id := range ids {
		fmt.Fprintf(&sb, "\n• <code>%s</code>", esc(id))
		rows = append(rows, []telegram.InlineKeyboardButton{
			btn("🗑 Remove "+id, "config:delete:admins:"+id),
		})
	}
	rows = append(rows,
		[]telegram.InlineKeyboardButton{btn("➕ Add operator", "config:add:"+KindAuthorizedAdmin)},
		backRow("config:menu"))
	return sb.String(), &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (m *Menu) section(ctx context.Context, name string) (string, *telegram.InlineKeyboardMarkup, bool) {
	switch name {
	case "", "main":
		t, k := m.mainMenu()
		return t, k, true
	case "welcome":
		t, k := m.welcomeMenu(ctx)
		return t, k, true
	case "verification":
		t, k := m.verificationMenu(ctx)
		return t, k, true
	case "threshold":
		t, k := m.thresholdMenu(ctx)
		return t, k, true
	case "block_keywords":
		t, k := m.blockKeywordsMenu(ctx)
		return t, k, true
	case "auto_replies":
		t, k := m.autoRepliesMenu(ctx)
		return t, k, true
	case "filters":
		t, k := m.filtersMenu(ctx)
		return t, k, true
	case "backup":
		t, k := m.backupMenu(ctx)
		return t, k, true
	case "admins":
		t, k := m.adminsMenu(ctx)
		return t, k, true
	}
	return "", nil, false
}

// render draws a section over the message the operator clicked, falling back
// to a fresh message when the edit is rejected.
func (m *Menu) render(ctx context.Context, chatID, messageID, text string, markup *telegram.InlineKeyboardMarkup) {
	if messageID != "" {
		err := m.tg.EditMessageText(ctx, telegram.EditMessageTextRequest{
			ChatID:      chatID,
			MessageID:   messageID,
			Text:        text,
			ParseMode:   "HTML",
			ReplyMarkup: markup,
		})
		if err == nil {
			return
		}
		m.log.Debug().Err(err).Msg("menu edit failed, sending fresh message")
	}
	if _, err := m.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	}); err != nil {
		m.log.Warn().Err(err).Msg("menu send failed")
	}
}
