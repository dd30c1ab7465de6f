package relay

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

func newTestActions(t *testing.T) (*CardActions, *fakeUsers, *fakeTransport, *memStore) {
	t.Helper()
	users := newFakeUsers()
	tg := newFakeTransport()
	store := newMemStore()
	store.values[settings.KeyProfileLogThreadID] = "900"
	store.values[settings.KeyBlockLogThreadID] = "901"
	resolver := newTestResolver(store)
	ops := NewOperators([]string{"777"}, resolver)
	router := NewRouter(users, resolver, tg, testGroupID, zerolog.Nop())
	actions := NewCardActions(users, resolver, tg, router, ops, testGroupID, zerolog.Nop())
	return actions, users, tg, store
}

func cardCallback(fromID int64, data string, msgID, threadID int64) *telegram.CallbackQuery {
	return &telegram.CallbackQuery{
		ID:   "cb1",
		From: telegram.User{ID: fromID},
		Data: data,
		Message: &telegram.Message{
			MessageID:       msgID,
			Chat:            telegram.Chat{ID: -1001234, Type: "supergroup"},
			IsTopicMessage:  true,
			MessageThreadID: threadID,
		},
	}
}

func TestCardActionNonOperatorDenied(t *testing.T) {
	actions, users, tg, _ := newTestActions(t)
	seedMappedUser(t, users, "42", "101")

	require.NoError(t, actions.Handle(context.Background(), cardCallback(555, "block:42", 10, 101)))

	require.Len(t, tg.toasts, 1)
	assert.Contains(t, tg.toasts[0], "not allowed")
	assert.False(t, users.users["42"].IsBlocked)
}

func TestCardActionBlockFlipsAndSyncs(t *testing.T) {
	actions, users, tg, _ := newTestActions(t)
	seedMappedUser(t, users, "42", "101")
	users.users["42"].CardMessageID = "10"

	require.NoError(t, actions.Handle(context.Background(), cardCallback(777, "block:42", 10, 101)))

	assert.True(t, users.users["42"].IsBlocked)
	// Clicked card refreshed plus the SyncCards pass over the same slot.
	assert.Contains(t, tg.markupEdits, "10")
	// Block digest card created.
	assert.NotEmpty(t, users.users["42"].BlockLogMessageID)
	// Confirmation lands in the user's own thread.
	var confirmed bool
	for _, req := range tg.sentTo(testGroupID) {
		if req.ThreadID == "101" {
			confirmed = true
		}
	}
	assert.True(t, confirmed)
}

func TestCardActionUnblockResetsStrikes(t *testing.T) {
	actions, users, _, _ := newTestActions(t)
	seedMappedUser(t, users, "42", "101")
	users.users["42"].IsBlocked = true
	users.users["42"].BlockCount = 5

	require.NoError(t, actions.Handle(context.Background(), cardCallback(777, "unblock:42", 10, 101)))

	assert.False(t, users.users["42"].IsBlocked)
	assert.Equal(t, 0, users.users["42"].BlockCount)
}

func TestCardActionAssociatesOrphanedCard(t *testing.T) {
	actions, users, _, _ := newTestActions(t)
	seedMappedUser(t, users, "42", "101")
	require.Empty(t, users.users["42"].CardMessageID)

	require.NoError(t, actions.Handle(context.Background(), cardCallback(777, "mute:42", 33, 101)))

	// The clicked message sits in the user's thread, so it becomes the card.
	assert.Equal(t, "33", users.users["42"].CardMessageID)
	assert.True(t, users.users["42"].IsMuted)
}

func TestCardActionAssociatesDigestCard(t *testing.T) {
	actions, users, _, _ := newTestActions(t)
	seedMappedUser(t, users, "42", "101")

	require.NoError(t, actions.Handle(context.Background(), cardCallback(777, "mute:42", 44, 900)))
	assert.Equal(t, "44", users.users["42"].ProfileLogMessageID)
}

func TestCardActionPin(t *testing.T) {
	actions, users, tg, _ := newTestActions(t)
	seedMappedUser(t, users, "42", "101")

	require.NoError(t, actions.Handle(context.Background(), cardCallback(777, "pin_card:42", 10, 101)))

	assert.Equal(t, []string{"10"}, tg.pins)
	require.NotEmpty(t, tg.toasts)
	assert.Contains(t, tg.toasts[len(tg.toasts)-1], "pinned")
}
