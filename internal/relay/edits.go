package relay

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/telegram"
)

// EditTracker mirrors message edits across the relay boundary using the
// message ledger. Only text and captions are tracked; an edit of a message
// the ledger never saw is ignored.
type EditTracker struct {
	users   UserStore
	ledger  MessageStore
	tg      Transport
	ops     *Operators
	groupID string
	log     zerolog.Logger
}

func NewEditTracker(users UserStore, ledger MessageStore, tg Transport, ops *Operators, groupID string, log zerolog.Logger) *EditTracker {
	return &EditTracker{
		users:   users,
		ledger:  ledger,
		tg:      tg,
		ops:     ops,
		groupID: groupID,
		log:     log.With().Str("component", "edits").Logger(),
	}
}

// UserEdited posts a before/after notice into the user's staff thread when
// the user edits a previously relayed message, then advances the ledger so a
// chain of edits always diffs against the latest generation.
func (t *EditTracker) UserEdited(ctx context.Context, m *telegram.Message) error {
	id := identityOf(m.From)
	u, err := t.users.GetOrCreate(ctx, id.ID)
	if err != nil {
		return err
	}
	if u.IsBlocked || u.ThreadID == "" {
		return nil
	}

	msgID := strconv.FormatInt(m.MessageID, 10)
	prev, err := t.ledger.Get(ctx, u.ID, msgID)
	if err != nil {
		return err
	}
	if prev == nil {
		return nil
	}
	newText := messageText(m)
	if newText == "" || newText == prev.Text {
		return nil
	}
	date := m.EditDate
	if date == 0 {
		date = m.Date
	}

	notice := fmt.Sprintf("✏️ <b>User edited a message</b>\n"+
		"Sent: %s\nEdited: %s\n\n"+
		"<b>Before:</b>\n%s\n\n"+
		"<b>After:</b>\n%s",
		formatTimestamp(prev.Date), formatTimestamp(date),
		escapeHTML(prev.Text), escapeHTML(newText))
	if _, err := t.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:    t.groupID,
		ThreadID:  u.ThreadID,
		Text:      notice,
		ParseMode: "HTML",
	}); err != nil {
		return err
	}

	return t.ledger.Put(ctx, u.ID, msgID, model.StoredMessage{Text: newText, Date: date})
}

// StaffEdited notifies the user when a staff member edits a reply inside the
// user's thread.
func (t *EditTracker) StaffEdited(ctx context.Context, m *telegram.Message) error {
	if !m.IsTopicMessage || m.MessageThreadID == 0 {
		return nil
	}
	if m.From == nil || !t.ops.IsOperator(ctx, strconv.FormatInt(m.From.ID, 10)) {
		return nil
	}
	threadID := strconv.FormatInt(m.MessageThreadID, 10)
	userID, err := t.users.FindByThread(ctx, threadID)
	if err != nil {
		return err
	}
	if userID == "" {
		return nil
	}

	msgID := strconv.FormatInt(m.MessageID, 10)
	prev, err := t.ledger.Get(ctx, userID, msgID)
	if err != nil {
		return err
	}
	if prev == nil {
		return nil
	}
	newText := messageText(m)
	if newText == "" || newText == prev.Text {
		return nil
	}
	date := m.EditDate
	if date == 0 {
		date = m.Date
	}

	notice := fmt.Sprintf("✏️ The support team edited an earlier reply.\n"+
		"Sent: %s\nEdited: %s\n\n"+
		"Before:\n%s\n\n"+
		"After:\n%s",
		formatTimestamp(prev.Date), formatTimestamp(date), prev.Text, newText)
	if _, err := t.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: userID,
		Text:   notice,
	}); err != nil {
		return err
	}

	return t.ledger.Put(ctx, userID, msgID, model.StoredMessage{Text: newText, Date: date})
}
