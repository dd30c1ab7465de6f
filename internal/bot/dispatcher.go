package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"relay-bot-backend/internal/menu"
	"relay-bot-backend/internal/relay"
	"relay-bot-backend/internal/telegram"
)

// Dispatcher fans an update out to the right handler based on where it came
// from and who sent it.
type Dispatcher struct {
	pipeline *relay.Pipeline
	edits    *relay.EditTracker
	actions  *relay.CardActions
	ops      *relay.Operators
	menu     *menu.Menu
	groupID  int64
	log      zerolog.Logger
}

func NewDispatcher(pipeline *relay.Pipeline, edits *relay.EditTracker, actions *relay.CardActions, ops *relay.Operators, m *menu.Menu, adminGroupID string, log zerolog.Logger) *Dispatcher {
	groupID, _ := strconv.ParseInt(adminGroupID, 10, 64)
	return &Dispatcher{
		pipeline: pipeline,
		edits:    edits,
		actions:  actions,
		ops:      ops,
		menu:     m,
		groupID:  groupID,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch routes one update. Errors are logged here rather than bubbled to
// the webhook, which has already acknowledged the update.
func (d *Dispatcher) Dispatch(ctx context.Context, u *telegram.Update) {
	var err error
	switch {
	case u.Message != nil:
		err = d.message(ctx, u.Message)
	case u.EditedMessage != nil:
		err = d.edited(ctx, u.EditedMessage)
	case u.CallbackQuery != nil:
		err = d.callback(ctx, u.CallbackQuery)
	}
	if err != nil {
		d.log.Error().Err(err).Int64("update_id", u.UpdateID).Msg("update processing failed")
	}
}

func (d *Dispatcher) message(ctx context.Context, m *telegram.Message) error {
	if m.From == nil || m.From.IsBot {
		return nil
	}
	switch {
	case m.Chat.Type == "private":
		return d.private(ctx, m)
	case m.Chat.ID == d.groupID:
		return d.pipeline.Outbound(ctx, m)
	}
	return nil
}

func (d *Dispatcher) private(ctx context.Context, m *telegram.Message) error {
	senderID := strconv.FormatInt(m.From.ID, 10)

	if cmd := command(m.Text); cmd == "/start" || cmd == "/help" {
		if d.ops.IsPrimary(senderID) {
			return d.menu.ShowMain(ctx, senderID)
		}
		return d.pipeline.Start(ctx, m)
	}

	if d.ops.IsPrimary(senderID) && d.menu.Pending(ctx, senderID) {
		return d.menu.HandleInput(ctx, m)
	}
	return d.pipeline.Inbound(ctx, m)
}

func (d *Dispatcher) edited(ctx context.Context, m *telegram.Message) error {
	if m.From == nil || m.From.IsBot {
		return nil
	}
	switch {
	case m.Chat.Type == "private":
		return d.edits.UserEdited(ctx, m)
	case m.Chat.ID == d.groupID:
		return d.edits.StaffEdited(ctx, m)
	}
	return nil
}

func (d *Dispatcher) callback(ctx context.Context, cq *telegram.CallbackQuery) error {
	if strings.HasPrefix(cq.Data, "config:") {
		if !d.ops.IsPrimary(strconv.FormatInt(cq.From.ID, 10)) {
			return d.menu.Deny(ctx, cq)
		}
		return d.menu.HandleCallback(ctx, cq)
	}
	return d.actions.Handle(ctx, cq)
}

// command extracts the leading slash command, bot-mention suffix stripped.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return cmd
}
