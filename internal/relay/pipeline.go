package relay

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

// Pipeline is the message relay: private messages flow into the user's staff
// thread, staff replies in that thread flow back to the user.
type Pipeline struct {
	users   UserStore
	ledger  MessageStore
	cfg     *settings.Resolver
	tg      Transport
	router  *Router
	ops     *Operators
	gate    *Gate
	groupID string
	log     zerolog.Logger
}

func NewPipeline(users UserStore, ledger MessageStore, cfg *settings.Resolver, tg Transport, router *Router, ops *Operators, gate *Gate, groupID string, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		users:   users,
		ledger:  ledger,
		cfg:     cfg,
		tg:      tg,
		router:  router,
		ops:     ops,
		gate:    gate,
		groupID: groupID,
		log:     log.With().Str("component", "pipeline").Logger(),
	}
}

// Start handles /start and /help in a private chat. Verified users get a
// short reminder; everyone else enters the verification gate.
func (p *Pipeline) Start(ctx context.Context, m *telegram.Message) error {
	id := identityOf(m.From)
	u, err := p.users.GetOrCreate(ctx, id.ID)
	if err != nil {
		return err
	}
	if u.IsBlocked {
		return nil
	}
	if u.State == model.StateVerified {
		_, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID: u.ID,
			Text:   "You are already verified. Just send your message and we'll get back to you.",
		})
		return err
	}
	return p.gate.Begin(ctx, u)
}

// Inbound processes a private message from an end user: gate, filters,
// strike counting, relay into the staff thread, backup mirror.
func (p *Pipeline) Inbound(ctx context.Context, m *telegram.Message) error {
	id := identityOf(m.From)
	u, err := p.users.GetOrCreate(ctx, id.ID)
	if err != nil {
		return err
	}
	if u.IsBlocked {
		p.log.Debug().Str("user_id", u.ID).Msg("dropping message from blocked user")
		return nil
	}

	p.refreshProfile(ctx, u, id)

	// Operators skip the gate entirely.
	if u.State != model.StateVerified && p.ops.IsOperator(ctx, u.ID) {
		patch := model.UserPatch{}
		if err := p.users.Update(ctx, u.ID, *patch.SetState(model.StateVerified)); err != nil {
			return err
		}
		u.State = model.StateVerified
	}

	switch u.State {
	case model.StateNew:
		return p.gate.Begin(ctx, u)
	case model.StatePendingVerification:
		return p.gate.Attempt(ctx, u, m.Text)
	}

	verdict := Evaluate(m, FilterInput{
		Filters:       p.cfg.FilterSnapshot(ctx),
		BlockPatterns: p.cfg.BlockPatterns(ctx),
		AutoReplies:   p.cfg.AutoReplyRules(ctx),
	})

	if verdict.BlockPattern != "" {
		return p.strike(ctx, u)
	}
	if !verdict.Forwardable {
		_, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID: u.ID,
			Text:   "⚠️ Your message was not delivered: " + verdict.Reason + ".",
		})
		return err
	}
	if verdict.AutoReply != "" {
		_, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID: u.ID,
			Text:   "\U0001F916 Automated reply\n\n" + verdict.AutoReply,
		})
		return err
	}

	userMsgID := strconv.FormatInt(m.MessageID, 10)
	err = p.router.SendWithRelocate(ctx, u, id, m.Date, func(ctx context.Context, threadID string) error {
		_, err := p.tg.CopyMessage(ctx, telegram.CopyMessageRequest{
			ChatID:              p.groupID,
			ThreadID:            threadID,
			FromChatID:          u.ID,
			MessageID:           userMsgID,
			DisableNotification: u.IsMuted,
		})
		return err
	})
	if err != nil {
		p.log.Error().Err(err).Str("user_id", u.ID).Msg("relay to thread failed")
		_, nerr := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID: u.ID,
			Text:   "⚠️ We couldn't deliver your message right now, please try again later.",
		})
		if nerr != nil {
			p.log.Warn().Err(nerr).Str("user_id", u.ID).Msg("delivery failure notice failed")
		}
		return err
	}

	if text := messageText(m); text != "" {
		if err := p.ledger.Put(ctx, u.ID, userMsgID, model.StoredMessage{Text: text, Date: m.Date}); err != nil {
			p.log.Warn().Err(err).Str("user_id", u.ID).Msg("ledger write failed")
		}
	}

	p.mirrorToBackup(ctx, u, id, userMsgID)
	return nil
}

// strike bumps the user's counter for a block-keyword hit and blocks the
// user once the configured threshold is reached. The offending message is
// never relayed, and no thread is created for a user who never earned one.
func (p *Pipeline) strike(ctx context.Context, u *model.User) error {
	threshold := p.cfg.GetInt(ctx, settings.KeyBlockThreshold, settings.DefaultBlockThreshold)
	count := u.BlockCount + 1

	patch := model.UserPatch{}
	patch.SetBlockCount(count)
	if count >= threshold {
		patch.SetBlocked(true)
	}
	if err := p.users.Update(ctx, u.ID, patch); err != nil {
		return err
	}
	u.BlockCount = count

	trigger := fmt.Sprintf("⚠️ Your message contains blocked content and was not delivered. Warning %d/%d.", count, threshold)
	if count < threshold {
		_, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{ChatID: u.ID, Text: trigger})
		return err
	}

	// Threshold reached: the trigger notice still goes out, then the block
	// notice on top of it.
	u.IsBlocked = true
	if _, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{ChatID: u.ID, Text: trigger}); err != nil {
		p.log.Warn().Err(err).Str("user_id", u.ID).Msg("trigger notice to user failed")
	}
	if _, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: u.ID,
		Text:   "\U0001F6AB You have been blocked for repeatedly sending prohibited content.",
	}); err != nil {
		p.log.Warn().Err(err).Str("user_id", u.ID).Msg("block notice to user failed")
	}

	if u.ThreadID != "" {
		_, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:    p.groupID,
			ThreadID:  u.ThreadID,
			Text:      fmt.Sprintf("\U0001F6AB <b>User auto-blocked</b> after %d blocked-keyword strikes.", count),
			ParseMode: "HTML",
		})
		if err != nil {
			p.log.Warn().Err(err).Str("user_id", u.ID).Msg("auto-block thread notice failed")
		}
	}
	p.router.SyncCards(ctx, u)
	return nil
}

// refreshProfile opportunistically updates the stored snapshot and the topic
// label when the user's display identity changed.
func (p *Pipeline) refreshProfile(ctx context.Context, u *model.User, id Identity) {
	if u.Profile == nil || (u.Profile.Name == id.Name && u.Profile.Username == id.Username) {
		return
	}
	profile := &model.Profile{Name: id.Name, Username: id.Username, FirstSeen: u.Profile.FirstSeen}
	patch := model.UserPatch{}
	if err := p.users.Update(ctx, u.ID, *patch.SetProfile(profile)); err != nil {
		p.log.Warn().Err(err).Str("user_id", u.ID).Msg("profile refresh failed")
		return
	}
	u.Profile = profile
	p.router.RefreshLabel(ctx, u, threadLabel(id))
}

// mirrorToBackup copies the message to the configured backup group, preceded
// by a small attribution header. Best effort: failures never affect the
// primary relay.
func (p *Pipeline) mirrorToBackup(ctx context.Context, u *model.User, id Identity, messageID string) {
	backupID := p.cfg.Get(ctx, settings.KeyBackupGroupID, "")
	if backupID == "" {
		return
	}
	header := fmt.Sprintf("\U0001F4E5 From <b>%s</b> (<code>%s</code>)", escapeHTML(id.Name), u.ID)
	if _, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:    backupID,
		Text:      header,
		ParseMode: "HTML",
	}); err != nil {
		p.log.Warn().Err(err).Str("user_id", u.ID).Msg("backup header failed")
		return
	}
	if _, err := p.tg.CopyMessage(ctx, telegram.CopyMessageRequest{
		ChatID:     backupID,
		FromChatID: u.ID,
		MessageID:  messageID,
	}); err != nil {
		p.log.Warn().Err(err).Str("user_id", u.ID).Msg("backup copy failed")
	}
}

// Outbound processes a staff message posted inside a user's thread and
// relays it to the user's private chat.
func (p *Pipeline) Outbound(ctx context.Context, m *telegram.Message) error {
	if !m.IsTopicMessage || m.MessageThreadID == 0 {
		return nil
	}
	if m.From == nil || !p.ops.IsOperator(ctx, strconv.FormatInt(m.From.ID, 10)) {
		return nil
	}
	threadID := strconv.FormatInt(m.MessageThreadID, 10)
	userID, err := p.users.FindByThread(ctx, threadID)
	if err != nil {
		return err
	}
	if userID == "" {
		return p.noticeInThread(ctx, threadID, "⚠️ No user is linked to this topic; the message was not delivered.")
	}

	if err := p.deliver(ctx, userID, m); err != nil {
		p.log.Error().Err(err).Str("user_id", userID).Msg("staff reply delivery failed")
		return p.noticeInThread(ctx, threadID, "⚠️ Delivery to the user failed: "+err.Error())
	}

	if text := messageText(m); text != "" {
		staffMsgID := strconv.FormatInt(m.MessageID, 10)
		if err := p.ledger.Put(ctx, userID, staffMsgID, model.StoredMessage{Text: text, Date: m.Date}); err != nil {
			p.log.Warn().Err(err).Str("user_id", userID).Msg("ledger write failed")
		}
	}
	return nil
}

// deliver re-sends a staff message into the user's private chat, picking the
// send method by content kind.
func (p *Pipeline) deliver(ctx context.Context, userID string, m *telegram.Message) error {
	switch {
	case len(m.Photo) > 0:
		// Telegram orders photo sizes ascending; the last one is the original.
		return p.tg.SendMedia(ctx, userID, telegram.MediaPhoto, m.Photo[len(m.Photo)-1].FileID, m.Caption)
	case m.Video != nil:
		return p.tg.SendMedia(ctx, userID, telegram.MediaVideo, m.Video.FileID, m.Caption)
	case m.Audio != nil:
		return p.tg.SendMedia(ctx, userID, telegram.MediaAudio, m.Audio.FileID, m.Caption)
	case m.Voice != nil:
		return p.tg.SendMedia(ctx, userID, telegram.MediaVoice, m.Voice.FileID, m.Caption)
	case m.Sticker != nil:
		return p.tg.SendMedia(ctx, userID, telegram.MediaSticker, m.Sticker.FileID, "")
	case m.Animation != nil:
		return p.tg.SendMedia(ctx, userID, telegram.MediaAnimation, m.Animation.FileID, m.Caption)
	case m.Document != nil:
		return p.tg.SendMedia(ctx, userID, telegram.MediaDocument, m.Document.FileID, m.Caption)
	case m.Text != "":
		_, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{ChatID: userID, Text: m.Text})
		return err
	}
	_, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: userID,
		Text:   "[The support team sent a message type that could not be delivered here.]",
	})
	return err
}

func (p *Pipeline) noticeInThread(ctx context.Context, threadID, text string) error {
	_, err := p.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:   p.groupID,
		ThreadID: threadID,
		Text:     text,
	})
	return err
}

// messageText returns the editable text content of a message, caption
// included.
func messageText(m *telegram.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}
