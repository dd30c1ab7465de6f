package relay

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"relay-bot-backend/internal/telegram"
)

// maxThreadLabelRunes bounds topic names to what the transport accepts.
const maxThreadLabelRunes = 128

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }

func formatTimestamp(ts int64) string {
	if ts == 0 {
		return "unknown"
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

// Identity is the display identity of an end user as seen on an inbound
// message.
type Identity struct {
	ID       string
	Name     string
	Username string
}

func identityOf(u *telegram.User) Identity {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	username := "none"
	if u.Username != "" {
		username = "@" + u.Username
	}
	return Identity{
		ID:       strconv.FormatInt(u.ID, 10),
		Name:     name,
		Username: username,
	}
}

// threadLabel builds the human-readable topic name for a user's thread.
func threadLabel(id Identity) string {
	label := strings.TrimSpace(id.Name) + " | " + id.ID
	runes := []rune(label)
	if len(runes) > maxThreadLabelRunes {
		runes = runes[:maxThreadLabelRunes]
	}
	return string(runes)
}

// card renders the status-card body (HTML).
func card(id Identity) string {
	return fmt.Sprintf("<b>\U0001F464 User card</b>\n"+
		"• Username: <code>%s</code>\n"+
		"• ID: <code>%s</code>",
		escapeHTML(id.Username), escapeHTML(id.ID))
}

// cardButtons renders the 2xN action grid encoding the current block/mute
// state, plus the profile and pin rows.
func cardButtons(userID string, blocked, muted bool) *telegram.InlineKeyboardMarkup {
	blockText, blockAction := "\U0001F6AB Block", "block"
	if blocked {
		blockText, blockAction = "✅ Unblock", "unblock"
	}
	muteText, muteAction := "\U0001F515 Mute", "mute"
	if muted {
		muteText, muteAction = "\U0001F514 Unmute", "unmute"
	}
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: blockText, CallbackData: blockAction + ":" + userID},
				{Text: muteText, CallbackData: muteAction + ":" + userID},
			},
			{
				{Text: "\U0001F464 View profile", URL: "tg://user?id=" + userID},
			},
			{
				{Text: "\U0001F4CC Pin this card", CallbackData: "pin_card:" + userID},
			},
		},
	}
}

// withJumpLink appends a row linking to the user's thread, used on digest
// cards that live outside the thread itself.
func withJumpLink(markup *telegram.InlineKeyboardMarkup, groupID, threadID string) *telegram.InlineKeyboardMarkup {
	cleanGroup := strings.TrimPrefix(groupID, "-100")
	row := []telegram.InlineKeyboardButton{
		{Text: "\U0001F4AC Open conversation", URL: fmt.Sprintf("https://t.me/c/%s/%s", cleanGroup, threadID)},
	}
	out := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: append(append([][]telegram.InlineKeyboardButton{}, markup.InlineKeyboard...), row),
	}
	return out
}
