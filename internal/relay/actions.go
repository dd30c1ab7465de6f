package relay

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

// CardActions handles the status-card button callbacks: block, unblock,
// mute, unmute and pin. Any card copy works, including ones whose message id
// was lost; clicking re-associates the copy with its slot.
type CardActions struct {
	users   UserStore
	cfg     *settings.Resolver
	tg      Transport
	router  *Router
	ops     *Operators
	groupID string
	log     zerolog.Logger
}

func NewCardActions(users UserStore, cfg *settings.Resolver, tg Transport, router *Router, ops *Operators, groupID string, log zerolog.Logger) *CardActions {
	return &CardActions{
		users:   users,
		cfg:     cfg,
		tg:      tg,
		router:  router,
		ops:     ops,
		groupID: groupID,
		log:     log.With().Str("component", "actions").Logger(),
	}
}

// Handle dispatches a card callback. Unknown actions get a silent ack so the
// client spinner stops.
func (a *CardActions) Handle(ctx context.Context, cq *telegram.CallbackQuery) error {
	action, userID, ok := strings.Cut(cq.Data, ":")
	if !ok || cq.Message == nil {
		return a.tg.AnswerCallbackQuery(ctx, cq.ID, "", false)
	}

	operatorID := strconv.FormatInt(cq.From.ID, 10)
	if !a.ops.IsOperator(ctx, operatorID) {
		return a.tg.AnswerCallbackQuery(ctx, cq.ID, "You are not allowed to do that.", true)
	}

	u, err := a.users.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	a.associateCard(ctx, u, cq.Message)

	switch action {
	case "block", "unblock":
		return a.setBlocked(ctx, u, cq, action == "block")
	case "mute", "unmute":
		return a.setMuted(ctx, u, cq, action == "mute")
	case "pin_card":
		return a.pin(ctx, u, cq)
	}
	return a.tg.AnswerCallbackQuery(ctx, cq.ID, "", false)
}

func (a *CardActions) setBlocked(ctx context.Context, u *model.User, cq *telegram.CallbackQuery, blocked bool) error {
	patch := model.UserPatch{}
	patch.SetBlocked(blocked)
	if !blocked {
		// Unblocking resets the strike counter.
		patch.SetBlockCount(0)
	}
	if err := a.users.Update(ctx, u.ID, patch); err != nil {
		return err
	}
	u.IsBlocked = blocked
	if !blocked {
		u.BlockCount = 0
	}

	toast := "User unblocked."
	confirmation := "✅ User has been unblocked."
	if blocked {
		toast = "User blocked."
		confirmation = "\U0001F6AB User has been blocked."
	}
	return a.finishFlip(ctx, u, cq, toast, confirmation)
}

func (a *CardActions) setMuted(ctx context.Context, u *model.User, cq *telegram.CallbackQuery, muted bool) error {
	patch := model.UserPatch{}
	if err := a.users.Update(ctx, u.ID, *patch.SetMuted(muted)); err != nil {
		return err
	}
	u.IsMuted = muted

	toast := "User unmuted."
	confirmation := "\U0001F514 User has been unmuted, their messages will notify again."
	if muted {
		toast = "User muted."
		confirmation = "\U0001F515 User has been muted, their messages arrive silently."
	}
	return a.finishFlip(ctx, u, cq, toast, confirmation)
}

// finishFlip refreshes the clicked card in place, answers the callback,
// syncs every other card slot and drops a confirmation into the user's
// thread when the flip happened there.
func (a *CardActions) finishFlip(ctx context.Context, u *model.User, cq *telegram.CallbackQuery, toast, confirmation string) error {
	markup := cardButtons(u.ID, u.IsBlocked, u.IsMuted)
	clicked := markup
	if hasJumpLink(cq.Message.ReplyMarkup) && u.ThreadID != "" {
		clicked = withJumpLink(markup, a.groupID, u.ThreadID)
	}
	clickedID := strconv.FormatInt(cq.Message.MessageID, 10)
	if err := a.tg.EditMessageReplyMarkup(ctx, a.groupID, clickedID, clicked); err != nil {
		a.log.Warn().Err(err).Str("user_id", u.ID).Msg("clicked card refresh failed")
	}

	if err := a.tg.AnswerCallbackQuery(ctx, cq.ID, toast, false); err != nil {
		a.log.Warn().Err(err).Msg("callback answer failed")
	}

	a.router.SyncCards(ctx, u)

	if u.ThreadID != "" && strconv.FormatInt(cq.Message.MessageThreadID, 10) == u.ThreadID {
		if _, err := a.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:   a.groupID,
			ThreadID: u.ThreadID,
			Text:     confirmation,
		}); err != nil {
			a.log.Warn().Err(err).Str("user_id", u.ID).Msg("flip confirmation failed")
		}
	}
	return nil
}

func (a *CardActions) pin(ctx context.Context, u *model.User, cq *telegram.CallbackQuery) error {
	msgID := strconv.FormatInt(cq.Message.MessageID, 10)
	if err := a.tg.PinChatMessage(ctx, a.groupID, msgID, true); err != nil {
		a.log.Warn().Err(err).Str("user_id", u.ID).Msg("card pin failed")
		return a.tg.AnswerCallbackQuery(ctx, cq.ID, "Pinning failed, check bot permissions.", true)
	}
	return a.tg.AnswerCallbackQuery(ctx, cq.ID, "Card pinned.", false)
}

// associateCard repairs a card slot whose message id was lost or never
// stored: the clicked message is adopted into the slot matching the topic it
// lives in.
func (a *CardActions) associateCard(ctx context.Context, u *model.User, m *telegram.Message) {
	msgID := strconv.FormatInt(m.MessageID, 10)
	if msgID == u.CardMessageID || msgID == u.ProfileLogMessageID || msgID == u.BlockLogMessageID {
		return
	}
	threadID := strconv.FormatInt(m.MessageThreadID, 10)

	patch := model.UserPatch{}
	switch {
	case u.ThreadID != "" && threadID == u.ThreadID:
		patch.SetCardMessageID(msgID)
		u.CardMessageID = msgID
	case threadID == a.cfg.Get(ctx, settings.KeyProfileLogThreadID, ""):
		patch.SetProfileLogMessageID(msgID)
		u.ProfileLogMessageID = msgID
	case threadID == a.cfg.Get(ctx, settings.KeyBlockLogThreadID, ""):
		patch.SetBlockLogMessageID(msgID)
		u.BlockLogMessageID = msgID
	default:
		return
	}
	if err := a.users.Update(ctx, u.ID, patch); err != nil {
		a.log.Warn().Err(err).Str("user_id", u.ID).Msg("card re-association failed")
	}
}

func hasJumpLink(markup *telegram.InlineKeyboardMarkup) bool {
	if markup == nil {
		return false
	}
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			if b.URL != "" && strings.HasPrefix(b.URL, "https://t.me/c/") {
				return true
			}
		}
	}
	return false
}
