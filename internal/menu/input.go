package menu

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

// Pending reports whether the operator owes the menu a value. The dispatcher
// uses this to route a primary operator's plain text here instead of into
// the relay.
func (m *Menu) Pending(ctx context.Context, operatorID string) bool {
	return loadState(ctx, m.cfg, operatorID) != nil
}

// HandleInput consumes one plain-text message from an operator with a
// pending input state. /cancel aborts; anything else is validated against
// the state's kind. Invalid values keep the state so the operator can retry.
func (m *Menu) HandleInput(ctx context.Context, msg *telegram.Message) error {
	operatorID := strconv.FormatInt(msg.From.ID, 10)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	state := loadState(ctx, m.cfg, operatorID)
	if state == nil {
		return nil
	}
	input := strings.TrimSpace(msg.Text)

	if input == "/cancel" {
		if err := clearState(ctx, m.cfg, operatorID); err != nil {
			return err
		}
		return m.confirm(ctx, chatID, "Cancelled.", state.ReturnMenu)
	}
	if input == "" {
		return m.reply(ctx, chatID, "Please send the value as text, or /cancel.")
	}

	accepted, feedback, err := m.apply(ctx, state.Kind, input)
	if err != nil {
		return err
	}
	if !accepted {
		return m.reply(ctx, chatID, feedback)
	}

	if err := clearState(ctx, m.cfg, operatorID); err != nil {
		m.log.Warn().Err(err).Msg("state clear failed")
	}
	return m.confirm(ctx, chatID, feedback, state.ReturnMenu)
}

// apply validates and stores one input value. It returns accepted=false with
// a retry hint for invalid values; err is reserved for store failures.
func (m *Menu) apply(ctx context.Context, kind, input string) (accepted bool, feedback string, err error) {
	switch kind {
	case KindWelcomeMessage:
		return true, "Welcome message updated.", m.cfg.Put(ctx, settings.KeyWelcomeMessage, input)

	case KindVerificationQuestion:
		return true, "Verification question updated.", m.cfg.Put(ctx, settings.KeyVerificationQuestion, input)

	case KindVerificationAnswer:
		return true, "Accepted answers updated.", m.cfg.Put(ctx, settings.KeyVerificationAnswer, input)

	case KindBlockThreshold:
		n, convErr := strconv.Atoi(input)
		if convErr != nil || n <= 0 {
			return false, "The threshold must be a positive number. Try again or /cancel.", nil
		}
		return true, "Block threshold updated.", m.cfg.Put(ctx, settings.KeyBlockThreshold, strconv.Itoa(n))

	case KindBackupGroup:
		if _, convErr := strconv.ParseInt(input, 10, 64); convErr != nil {
			return false, "That doesn't look like a chat id. Try again or /cancel.", nil
		}
		return true, "Backup group updated.", m.cfg.Put(ctx, settings.KeyBackupGroupID, input)

	case KindAuthorizedAdmin:
		if _, convErr := strconv.ParseInt(input, 10, 64); convErr != nil {
			return false, "That doesn't look like a user id. Try again or /cancel.", nil
		}
		ids := m.cfg.AuthorizedOperators(ctx)
		for _, id := range ids {
			if id == input {
				return false, "That operator is already authorized. Send another id or /cancel.", nil
			}
		}
		return true, "Operator authorized.", m.cfg.PutAuthorizedOperators(ctx, append(ids, input))

	case KindBlockKeywordAdd:
		patterns := m.cfg.BlockPatterns(ctx)
		for _, p := range patterns {
			if p == input {
				return false, "That keyword is already in the list. Send another or /cancel.", nil
			}
		}
		return true, "Keyword added.", m.cfg.PutBlockPatterns(ctx, append(patterns, input))

	case KindAutoReplyAdd:
		pattern, response, found := strings.Cut(input, "===")
		pattern = strings.TrimSpace(pattern)
		response = strings.TrimSpace(response)
		if !found || pattern == "" || response == "" {
			return false, "Use the form pattern===response. Try again or /cancel.", nil
		}
		rules := append(m.cfg.AutoReplyRules(ctx), model.AutoReplyRule{
			ID:       uuid.New().String(),
			Keywords: pattern,
			Response: response,
		})
		return true, "Auto-reply rule added.", m.cfg.PutAutoReplyRules(ctx, rules)
	}

	return false, "This edit is no longer valid, use /start to reopen the menu.", nil
}

func (m *Menu) reply(ctx context.Context, chatID, text string) error {
	_, err := m.tg.SendMessage(ctx, telegram.SendMessageRequest{ChatID: chatID, Text: text})
	return err
}

// confirm acknowledges an accepted value and re-opens the section the
// operator came from.
func (m *Menu) confirm(ctx context.Context, chatID, text, section string) error {
	if err := m.reply(ctx, chatID, text); err != nil {
		return err
	}
	menuText, markup, ok := m.section(ctx, section)
	if !ok {
		menuText, markup, _ = m.section(ctx, "main")
	}
	m.render(ctx, chatID, "", menuText, markup)
	return nil
}
