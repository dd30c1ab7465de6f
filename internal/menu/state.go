package menu

import (
	"context"
	"encoding/json"

	"relay-bot-backend/internal/settings"
)

// Kind names the pending input a primary operator owes the bot.
const (
	KindWelcomeMessage       = "welcome_msg"
	KindVerificationQuestion = "verif_q"
	KindVerificationAnswer   = "verif_a"
	KindBlockThreshold       = "block_threshold"
	KindBackupGroup          = "backup_group_id"
	KindAuthorizedAdmin      = "authorized_admins"
	KindBlockKeywordAdd      = "block_keywords_add"
	KindAutoReplyAdd         = "keyword_responses_add"
)

// State is the per-operator awaiting-input marker. It lives in the config
// store so a restart does not orphan a half-finished edit.
type State struct {
	Kind       string `json:"kind"`
	ReturnMenu string `json:"return_menu"`
}

func stateKey(operatorID string) string { return "admin_state:" + operatorID }

func loadState(ctx context.Context, cfg *settings.Resolver, operatorID string) *State {
	raw := cfg.Get(ctx, stateKey(operatorID), "")
	if raw == "" {
		return nil
	}
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Kind == "" {
		return nil
	}
	return &s
}

func saveState(ctx context.Context, cfg *settings.Resolver, operatorID string, s State) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return cfg.Put(ctx, stateKey(operatorID), string(b))
}

func clearState(ctx context.Context, cfg *settings.Resolver, operatorID string) error {
	return cfg.Delete(ctx, stateKey(operatorID))
}
