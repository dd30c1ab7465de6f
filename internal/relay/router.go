package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

// ErrThreadUnavailable is returned when a thread could not be created; the
// caller turns it into a user-facing "temporarily unavailable" notice.
var ErrThreadUnavailable = errors.New("thread unavailable")

// Router owns the 1:1 user-to-thread mapping: lazy topic creation, the
// relocate-on-failure path, digest threads and status-card synchronization.
type Router struct {
	users   UserStore
	cfg     *settings.Resolver
	tg      Transport
	groupID string
	log     zerolog.Logger
}

func NewRouter(users UserStore, cfg *settings.Resolver, tg Transport, groupID string, log zerolog.Logger) *Router {
	return &Router{
		users:   users,
		cfg:     cfg,
		tg:      tg,
		groupID: groupID,
		log:     log.With().Str("component", "router").Logger(),
	}
}

// ResolveThread returns the user's thread id, creating the topic on first
// use. Creation sends the status card into the new topic and persists thread
// id, card reference, profile snapshot and a strike-counter reset in a single
// patch, so a partial failure (topic created, card send failed) leaves no
// dangling thread reference behind. The user value is updated in place.
func (r *Router) ResolveThread(ctx context.Context, u *model.User, id Identity, firstSeen int64) (string, error) {
	if u.ThreadID != "" {
		return u.ThreadID, nil
	}

	threadID, err := r.tg.CreateForumTopic(ctx, r.groupID, threadLabel(id))
	if err != nil {
		r.log.Error().Err(err).Str("user_id", u.ID).Msg("create thread failed")
		return "", fmt.Errorf("%w: %v", ErrThreadUnavailable, err)
	}

	markup := cardButtons(u.ID, u.IsBlocked, u.IsMuted)
	sent, err := r.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      r.groupID,
		ThreadID:    threadID,
		Text:        card(id),
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	if err != nil {
		r.log.Error().Err(err).Str("user_id", u.ID).Msg("status card send failed, thread not adopted")
		return "", fmt.Errorf("%w: %v", ErrThreadUnavailable, err)
	}

	profile := &model.Profile{Name: id.Name, Username: id.Username, FirstSeen: firstSeen}
	cardID := fmt.Sprint(sent.MessageID)
	patch := model.UserPatch{}
	patch.SetThreadID(threadID).SetCardMessageID(cardID).SetBlockCount(0).SetProfile(profile)
	if err := r.users.Update(ctx, u.ID, patch); err != nil {
		return "", fmt.Errorf("persist thread mapping: %w", err)
	}
	u.ThreadID = threadID
	u.CardMessageID = cardID
	u.BlockCount = 0
	u.Profile = profile

	r.mirrorCardToProfileLog(ctx, u, id, markup)
	return threadID, nil
}

// SendWithRelocate runs send against the user's thread, healing a missing
// thread exactly once: the stale id is cleared, a replacement thread created
// and the send retried. A second failure is terminal for the message.
func (r *Router) SendWithRelocate(ctx context.Context, u *model.User, id Identity, firstSeen int64, send func(ctx context.Context, threadID string) error) error {
	threadID, err := r.ResolveThread(ctx, u, id, firstSeen)
	if err != nil {
		return err
	}
	err = send(ctx, threadID)
	if err == nil || !errors.Is(err, telegram.ErrThreadMissing) {
		return err
	}

	r.log.Warn().Str("user_id", u.ID).Str("thread_id", threadID).Msg("thread missing, relocating")
	clear := model.UserPatch{}
	if uerr := r.users.Update(ctx, u.ID, *clear.ClearThreadID()); uerr != nil {
		return fmt.Errorf("clear stale thread: %w", uerr)
	}
	u.ThreadID = ""

	threadID, err = r.ResolveThread(ctx, u, id, firstSeen)
	if err != nil {
		return err
	}
	return send(ctx, threadID)
}

// RefreshLabel renames the user's topic after a display-name change. Best
// effort: permission and transport failures are swallowed.
func (r *Router) RefreshLabel(ctx context.Context, u *model.User, label string) {
	if u.ThreadID == "" {
		return
	}
	if err := r.tg.EditForumTopic(ctx, r.groupID, u.ThreadID, label); err != nil {
		r.log.Warn().Err(err).Str("user_id", u.ID).Msg("thread label refresh failed")
	}
}

// ProfileLogThread resolves the singleton profile-digest thread, creating it
// on first use and caching the id in config.
func (r *Router) ProfileLogThread(ctx context.Context) (string, error) {
	return r.logThread(ctx, settings.KeyProfileLogThreadID, "\U0001F4CB User profile digest")
}

// BlockLogThread resolves the singleton block/mute digest thread.
func (r *Router) BlockLogThread(ctx context.Context) (string, error) {
	return r.logThread(ctx, settings.KeyBlockLogThreadID, "\U0001F6AB Block and mute digest")
}

func (r *Router) logThread(ctx context.Context, key, name string) (string, error) {
	if id := r.cfg.Get(ctx, key, ""); id != "" {
		return id, nil
	}
	id, err := r.tg.CreateForumTopic(ctx, r.groupID, name)
	if err != nil {
		return "", fmt.Errorf("create digest thread: %w", err)
	}
	if err := r.cfg.Put(ctx, key, id); err != nil {
		return "", fmt.Errorf("cache digest thread id: %w", err)
	}
	return id, nil
}

// invalidateLogThread drops a digest thread's cached id so the next resolve
// recreates it.
func (r *Router) invalidateLogThread(ctx context.Context, key string) {
	if err := r.cfg.Delete(ctx, key); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("digest thread invalidation failed")
	}
}

// mirrorCardToProfileLog sends a copy of a fresh status card into the profile
// digest, self-healing once when the digest thread is gone. Failures never
// affect thread creation.
func (r *Router) mirrorCardToProfileLog(ctx context.Context, u *model.User, id Identity, markup *telegram.InlineKeyboardMarkup) {
	logThreadID, err := r.ProfileLogThread(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("profile digest unavailable")
		return
	}
	text := fmt.Sprintf("<b>#new_user</b>\nThread: <code>%s</code>\n\n%s", u.ThreadID, card(id))
	send := func(threadID string) (*telegram.Message, error) {
		return r.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:      r.groupID,
			ThreadID:    threadID,
			Text:        text,
			ParseMode:   "HTML",
			ReplyMarkup: withJumpLink(markup, r.groupID, u.ThreadID),
		})
	}

	sent, err := send(logThreadID)
	if err != nil && errors.Is(err, telegram.ErrThreadMissing) {
		r.invalidateLogThread(ctx, settings.KeyProfileLogThreadID)
		if logThreadID, err = r.ProfileLogThread(ctx); err == nil {
			sent, err = send(logThreadID)
		}
	}
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", u.ID).Msg("profile digest card send failed")
		return
	}

	msgID := fmt.Sprint(sent.MessageID)
	patch := model.UserPatch{}
	if err := r.users.Update(ctx, u.ID, *patch.SetProfileLogMessageID(msgID)); err != nil {
		r.log.Warn().Err(err).Str("user_id", u.ID).Msg("profile digest card ref persist failed")
		return
	}
	u.ProfileLogMessageID = msgID
}

// SyncCards re-renders the action keyboard on every known status-card slot
// after a block/mute flip. Slots are independent: unset ones are skipped and
// a failure on one never aborts the others.
func (r *Router) SyncCards(ctx context.Context, u *model.User) {
	markup := cardButtons(u.ID, u.IsBlocked, u.IsMuted)

	if u.CardMessageID != "" {
		if err := r.tg.EditMessageReplyMarkup(ctx, r.groupID, u.CardMessageID, markup); err != nil {
			r.log.Warn().Err(err).Str("user_id", u.ID).Msg("in-thread card sync failed")
		}
	}

	if u.ProfileLogMessageID != "" {
		logMarkup := markup
		if u.ThreadID != "" {
			logMarkup = withJumpLink(markup, r.groupID, u.ThreadID)
		}
		if err := r.tg.EditMessageReplyMarkup(ctx, r.groupID, u.ProfileLogMessageID, logMarkup); err != nil {
			r.log.Warn().Err(err).Str("user_id", u.ID).Msg("profile digest card sync failed")
		}
	}

	r.syncBlockLog(ctx, u, markup)
}

// syncBlockLog keeps one card per user in the block/mute digest: edit in
// place when a previous card exists, otherwise send a new one and remember
// its id. A missing digest thread is recreated once.
func (r *Router) syncBlockLog(ctx context.Context, u *model.User, markup *telegram.InlineKeyboardMarkup) {
	logThreadID, err := r.BlockLogThread(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("block digest unavailable")
		return
	}

	status := "✅ <b>User in good standing</b>"
	switch {
	case u.IsBlocked:
		status = "\U0001F6AB <b>User blocked</b>"
	case u.IsMuted:
		status = "\U0001F515 <b>User muted</b>"
	}
	name := u.ID
	if u.Profile != nil && u.Profile.Name != "" {
		name = u.Profile.Name
	}
	text := fmt.Sprintf("%s\nUser: <a href=\"tg://user?id=%s\">%s</a>\nID: <code>%s</code>",
		status, u.ID, escapeHTML(name), u.ID)

	logMarkup := markup
	if u.ThreadID != "" {
		logMarkup = withJumpLink(markup, r.groupID, u.ThreadID)
	}

	if u.BlockLogMessageID != "" {
		err := r.tg.EditMessageText(ctx, telegram.EditMessageTextRequest{
			ChatID:      r.groupID,
			MessageID:   u.BlockLogMessageID,
			Text:        text,
			ParseMode:   "HTML",
			ReplyMarkup: logMarkup,
		})
		if err == nil {
			return
		}
		r.log.Warn().Err(err).Str("user_id", u.ID).Msg("block digest edit failed, sending new card")
		patch := model.UserPatch{}
		if uerr := r.users.Update(ctx, u.ID, *patch.SetBlockLogMessageID("")); uerr != nil {
			r.log.Warn().Err(uerr).Str("user_id", u.ID).Msg("block digest card ref clear failed")
		}
		u.BlockLogMessageID = ""
	}

	sendNew := func(threadID string) error {
		sent, err := r.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:      r.groupID,
			ThreadID:    threadID,
			Text:        text,
			ParseMode:   "HTML",
			ReplyMarkup: logMarkup,
		})
		if err != nil {
			return err
		}
		msgID := fmt.Sprint(sent.MessageID)
		patch := model.UserPatch{}
		if err := r.users.Update(ctx, u.ID, *patch.SetBlockLogMessageID(msgID)); err != nil {
			return err
		}
		u.BlockLogMessageID = msgID
		return nil
	}

	if err := sendNew(logThreadID); err != nil {
		if errors.Is(err, telegram.ErrThreadMissing) {
			r.invalidateLogThread(ctx, settings.KeyBlockLogThreadID)
			if logThreadID, err = r.BlockLogThread(ctx); err == nil {
				err = sendNew(logThreadID)
			}
		}
		if err != nil {
			r.log.Warn().Err(err).Str("user_id", u.ID).Msg("block digest card send failed")
		}
	}
}
