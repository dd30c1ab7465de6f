package menu

import (
	"context"
	"strconv"
	"strings"

	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

// returnMenuFor maps an input kind to the section shown after the value is
// accepted.
func returnMenuFor(kind string) string {
	switch kind {
	case KindWelcomeMessage:
		return "welcome"
	case KindVerificationQuestion, KindVerificationAnswer:
		return "verification"
	case KindBlockThreshold:
		return "threshold"
	case KindBackupGroup:
		return "backup"
	case KindAuthorizedAdmin:
		return "admins"
	case KindBlockKeywordAdd:
		return "block_keywords"
	case KindAutoReplyAdd:
		return "auto_replies"
	}
	return "main"
}

func promptFor(kind string) string {
	switch kind {
	case KindWelcomeMessage:
		return "Send the new welcome message, or /cancel."
	case KindVerificationQuestion:
		return "Send the new verification question, or /cancel."
	case KindVerificationAnswer:
		return "Send the accepted answers, pipe-separated (e.g. <code>4|four</code>), or /cancel."
	case KindBlockThreshold:
		return "Send the new strike threshold as a positive number, or /cancel."
	case KindBackupGroup:
		return "Send the backup group chat id (e.g. <code>-1001234567890</code>), or /cancel."
	case KindAuthorizedAdmin:
		return "Send the numeric user id to authorize, or /cancel."
	case KindBlockKeywordAdd:
		return "Send the keyword or regular expression to block, or /cancel."
	case KindAutoReplyAdd:
		return "Send the rule as <code>pattern===response</code>, or /cancel."
	}
	return "Send the new value, or /cancel."
}

// Deny rejects a menu callback from someone outside the primary allow-list.
func (m *Menu) Deny(ctx context.Context, cq *telegram.CallbackQuery) error {
	return m.tg.AnswerCallbackQuery(ctx, cq.ID, "The configuration menu is restricted to primary operators.", true)
}

// HandleCallback processes a "config:"-prefixed callback. The caller has
// already verified the operator is primary.
func (m *Menu) HandleCallback(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq.Message == nil {
		return m.tg.AnswerCallbackQuery(ctx, cq.ID, "", false)
	}
	operatorID := strconv.FormatInt(cq.From.ID, 10)
	chatID := strconv.FormatInt(cq.Message.Chat.ID, 10)
	messageID := strconv.FormatInt(cq.Message.MessageID, 10)

	data := strings.TrimPrefix(cq.Data, "config:")
	parts := strings.SplitN(data, ":", 3)
	action := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch action {
	case "menu", "list":
		if text, markup, ok := m.section(ctx, arg); ok {
			m.render(ctx, chatID, messageID, text, markup)
		}
		return m.tg.AnswerCallbackQuery(ctx, cq.ID, "", false)

	case "edit", "add":
		if err := saveState(ctx, m.cfg, operatorID, State{Kind: arg, ReturnMenu: returnMenuFor(arg)}); err != nil {
			return m.tg.AnswerCallbackQuery(ctx, cq.ID, "Could not start editing, try again.", true)
		}
		if _, err := m.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:    chatID,
			Text:      promptFor(arg),
			ParseMode: "HTML",
		}); err != nil {
			m.log.Warn().Err(err).Msg("prompt send failed")
		}
		return m.tg.AnswerCallbackQuery(ctx, cq.ID, "", false)

	case "toggle":
		current := m.cfg.GetBool(ctx, arg, true)
		if err := m.cfg.Put(ctx, arg, strconv.FormatBool(!current)); err != nil {
			return m.tg.AnswerCallbackQuery(ctx, cq.ID, "Toggle failed, try again.", true)
		}
		text, markup, _ := m.section(ctx, "filters")
		m.render(ctx, chatID, messageID, text, markup)
		return m.tg.AnswerCallbackQuery(ctx, cq.ID, "", false)

	case "delete":
		value := ""
		if len(parts) > 2 {
			value = parts[2]
		}
		section, toast := m.deleteEntry(ctx, arg, value)
		if section != "" {
			text, markup, _ := m.section(ctx, section)
			m.render(ctx, chatID, messageID, text, markup)
		}
		return m.tg.AnswerCallbackQuery(ctx, cq.ID, toast, false)

	case "clear":
		if arg == "backup" {
			if err := m.cfg.Delete(ctx, settings.KeyBackupGroupID); err != nil {
				return m.tg.AnswerCallbackQuery(ctx, cq.ID, "Clearing failed, try again.", true)
			}
			text, markup, _ := m.section(ctx, "backup")
			m.render(ctx, chatID, messageID, text, markup)
			return m.tg.AnswerCallbackQuery(ctx, cq.ID, "Mirroring disabled.", false)
		}

	case "cancel":
		if err := clearState(ctx, m.cfg, operatorID); err != nil {
			m.log.Warn().Err(err).Msg("state clear failed")
		}
		text, markup, _ := m.section(ctx, "main")
		m.render(ctx, chatID, messageID, text, markup)
		return m.tg.AnswerCallbackQuery(ctx, cq.ID, "Cancelled.", false)
	}
	return m.tg.AnswerCallbackQuery(ctx, cq.ID, "", false)
}

// deleteEntry removes one element from a stored list and reports which
// section to re-render plus the toast text.
func (m *Menu) deleteEntry(ctx context.Context, list, value string) (section, toast string) {
	switch list {
	case "block_keywords":
		patterns := m.cfg.BlockPatterns(ctx)
		idx, err := strconv.Atoi(value)
		if err != nil || idx < 0 || idx >= len(patterns) {
			return "block_keywords", "That entry no longer exists."
		}
		patterns = append(patterns[:idx], patterns[idx+1:]...)
		if err := m.cfg.PutBlockPatterns(ctx, patterns); err != nil {
			return "", "Deletion failed, try again."
		}
		return "block_keywords", "Keyword removed."

	case "auto_replies":
		rules := m.cfg.AutoReplyRules(ctx)
		kept := rules[:0]
		for _, r := range rules {
			if r.ID != value {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(rules) {
			return "auto_replies", "That rule no longer exists."
		}
		if err := m.cfg.PutAutoReplyRules(ctx, kept); err != nil {
			return "", "Deletion failed, try again."
		}
		return "auto_replies", "Rule removed."

	case "admins":
		ids := m.cfg.AuthorizedOperators(ctx)
		kept := ids[:0]
		for _, id := range ids {
			if id != value {
				kept = append(kept, id)
			}
		}
		if err := m.cfg.PutAuthorizedOperators(ctx, kept); err != nil {
			return "", "Deletion failed, try again."
		}
		return "admins", "Operator removed."
	}
	return "", ""
}
