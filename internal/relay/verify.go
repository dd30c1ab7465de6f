package relay

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

// Gate is the verification gate for first-contact users. New users get the
// welcome message plus a challenge question and stay parked in
// pending_verification until they answer correctly.
type Gate struct {
	users UserStore
	cfg   *settings.Resolver
	tg    Transport
	log   zerolog.Logger
}

func NewGate(users UserStore, cfg *settings.Resolver, tg Transport, log zerolog.Logger) *Gate {
	return &Gate{
		users: users,
		cfg:   cfg,
		tg:    tg,
		log:   log.With().Str("component", "gate").Logger(),
	}
}

// Begin greets a new user and poses the challenge. The state flips to
// pending_verification only after the challenge is actually delivered.
func (g *Gate) Begin(ctx context.Context, u *model.User) error {
	welcome := g.cfg.Get(ctx, settings.KeyWelcomeMessage, settings.DefaultWelcomeMessage)
	question := g.cfg.Get(ctx, settings.KeyVerificationQuestion, settings.DefaultVerificationQuestion)

	if _, err := g.tg.SendMessage(ctx, telegram.SendMessageRequest{ChatID: u.ID, Text: welcome}); err != nil {
		return err
	}
	if _, err := g.tg.SendMessage(ctx, telegram.SendMessageRequest{ChatID: u.ID, Text: question}); err != nil {
		return err
	}

	patch := model.UserPatch{}
	if err := g.users.Update(ctx, u.ID, *patch.SetState(model.StatePendingVerification)); err != nil {
		return err
	}
	u.State = model.StatePendingVerification
	return nil
}

// Attempt checks an answer against the configured accepted set. The
// configured answer is a pipe-separated list; comparison is trimmed and
// case-insensitive. A wrong answer leaves the state untouched.
func (g *Gate) Attempt(ctx context.Context, u *model.User, answer string) error {
	accepted := g.cfg.Get(ctx, settings.KeyVerificationAnswer, settings.DefaultVerificationAnswer)
	given := strings.ToLower(strings.TrimSpace(answer))

	matched := false
	for _, a := range strings.Split(accepted, "|") {
		if given == strings.ToLower(strings.TrimSpace(a)) {
			matched = true
			break
		}
	}

	if !matched {
		_, err := g.tg.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID: u.ID,
			Text:   "❌ That's not right, please try again.",
		})
		return err
	}

	patch := model.UserPatch{}
	if err := g.users.Update(ctx, u.ID, *patch.SetState(model.StateVerified)); err != nil {
		return err
	}
	u.State = model.StateVerified
	g.log.Info().Str("user_id", u.ID).Msg("user verified")

	_, err := g.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: u.ID,
		Text:   "✅ Verification passed! You can send your message now.",
	})
	return err
}
