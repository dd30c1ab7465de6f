package relay

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

type pipelineFixture struct {
	pipeline *Pipeline
	users    *fakeUsers
	ledger   *fakeLedger
	tg       *fakeTransport
	store    *memStore
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	users := newFakeUsers()
	ledger := newFakeLedger()
	tg := newFakeTransport()
	store := newMemStore()
	store.values[settings.KeyProfileLogThreadID] = "900"
	store.values[settings.KeyBlockLogThreadID] = "901"
	resolver := newTestResolver(store)

	ops := NewOperators([]string{"777"}, resolver)
	gate := NewGate(users, resolver, tg, zerolog.Nop())
	router := NewRouter(users, resolver, tg, testGroupID, zerolog.Nop())
	pipeline := NewPipeline(users, ledger, resolver, tg, router, ops, gate, testGroupID, zerolog.Nop())
	return &pipelineFixture{pipeline: pipeline, users: users, ledger: ledger, tg: tg, store: store}
}

func (f *pipelineFixture) verifiedUser(t *testing.T, id string) {
	t.Helper()
	_, err := f.users.GetOrCreate(context.Background(), id)
	require.NoError(t, err)
	f.users.users[id].State = model.StateVerified
}

func privateText(userID int64, msgID int64, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: msgID,
		From:      &telegram.User{ID: userID, FirstName: "Alice"},
		Chat:      telegram.Chat{ID: userID, Type: "private"},
		Date:      1700000000,
		Text:      text,
	}
}

func TestInboundNewUserEntersGate(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.pipeline.Inbound(context.Background(), privateText(42, 1, "hello")))

	assert.Equal(t, model.StatePendingVerification, f.users.users["42"].State)
	assert.Empty(t, f.tg.copies)
}

func TestInboundVerifiedUserIsRelayed(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	ctx := context.Background()

	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 7, "I need help")))

	require.Len(t, f.tg.copies, 1)
	assert.Equal(t, testGroupID, f.tg.copies[0].ChatID)
	assert.Equal(t, "42", f.tg.copies[0].FromChatID)
	assert.Equal(t, "7", f.tg.copies[0].MessageID)

	entry, err := f.ledger.Get(ctx, "42", "7")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "I need help", entry.Text)
}

func TestInboundBlockedUserDropped(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	f.users.users["42"].IsBlocked = true

	require.NoError(t, f.pipeline.Inbound(context.Background(), privateText(42, 1, "hello")))
	assert.Empty(t, f.tg.copies)
	assert.Empty(t, f.tg.sent)
}

func TestInboundMutedUserRelayedSilently(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	f.users.users["42"].IsMuted = true

	require.NoError(t, f.pipeline.Inbound(context.Background(), privateText(42, 1, "hello")))
	require.Len(t, f.tg.copies, 1)
	assert.True(t, f.tg.copies[0].DisableNotification)
}

func TestInboundStrikesAccumulateAndBlock(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	f.store.values[settings.KeyBlockKeywords] = `["casino"]`
	f.store.values[settings.KeyBlockThreshold] = "3"
	ctx := context.Background()

	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 1, "best casino deals")))
	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 2, "casino again")))
	assert.Equal(t, 2, f.users.users["42"].BlockCount)
	assert.False(t, f.users.users["42"].IsBlocked)

	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 3, "CASINO!!!")))
	assert.Equal(t, 3, f.users.users["42"].BlockCount)
	assert.True(t, f.users.users["42"].IsBlocked)
	assert.Empty(t, f.tg.copies)
	// Strikes never create a thread for a user who never had one.
	assert.Empty(t, f.tg.topicNames)
	assert.Empty(t, f.users.users["42"].ThreadID)

	// The threshold strike informs the user twice: trigger then block notice.
	msgs := f.tg.sentTo("42")
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Text, "Warning 1/3")
	assert.Contains(t, msgs[1].Text, "Warning 2/3")
	assert.Contains(t, msgs[2].Text, "Warning 3/3")
	assert.Contains(t, msgs[3].Text, "blocked")

	// Fourth message from the now-blocked user is dropped outright.
	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 4, "casino")))
	assert.Equal(t, 3, f.users.users["42"].BlockCount)
}

func TestInboundAutoBlockNoticeGoesToExistingThread(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	f.store.values[settings.KeyBlockKeywords] = `["casino"]`
	f.store.values[settings.KeyBlockThreshold] = "1"
	ctx := context.Background()

	// A normal message first, so the user owns a thread.
	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 1, "hi")))
	threadID := f.users.users["42"].ThreadID
	require.NotEmpty(t, threadID)

	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 2, "casino")))
	assert.True(t, f.users.users["42"].IsBlocked)
	// The strike record survives the block.
	assert.Equal(t, 1, f.users.users["42"].BlockCount)
	assert.Len(t, f.tg.topicNames, 1)

	var threadNotice bool
	for _, req := range f.tg.sentTo(testGroupID) {
		if req.ThreadID == threadID && strings.Contains(req.Text, "auto-blocked") {
			threadNotice = true
		}
	}
	assert.True(t, threadNotice)
}

func TestInboundFilteredKindGetsNotice(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	f.store.values[settings.KeyEnableStickerForward] = "false"

	m := privateText(42, 1, "")
	m.Sticker = &telegram.File{FileID: "s1"}
	require.NoError(t, f.pipeline.Inbound(context.Background(), m))

	assert.Empty(t, f.tg.copies)
	msgs := f.tg.sentTo("42")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "sticker or GIF")
}

func TestInboundAutoReplyShortCircuits(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	f.store.values[settings.KeyAutoReplyRules] = `[{"id":"1","keywords":"refund","response":"Refunds take 3 days."}]`

	require.NoError(t, f.pipeline.Inbound(context.Background(), privateText(42, 1, "where is my REFUND")))

	assert.Empty(t, f.tg.copies)
	msgs := f.tg.sentTo("42")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Automated reply")
	assert.Contains(t, msgs[0].Text, "Refunds take 3 days.")
}

func TestInboundBackupMirrorNeverFailsPrimary(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	f.store.values[settings.KeyBackupGroupID] = "-1009999"
	ctx := context.Background()

	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 1, "hello")))

	// One copy into the thread, one into the backup group.
	require.Len(t, f.tg.copies, 2)
	assert.Equal(t, "-1009999", f.tg.copies[1].ChatID)

	var header bool
	for _, req := range f.tg.sentTo("-1009999") {
		if req.ParseMode == "HTML" {
			header = true
		}
	}
	assert.True(t, header)
}

func TestOutboundTextReachesUser(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	ctx := context.Background()

	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 1, "hi")))
	threadID := f.users.users["42"].ThreadID
	require.NotEmpty(t, threadID)

	staff := &telegram.Message{
		MessageID:       500,
		From:            &telegram.User{ID: 777, FirstName: "Op"},
		Chat:            telegram.Chat{ID: -1001234, Type: "supergroup"},
		Date:            1700000100,
		Text:            "We are on it.",
		IsTopicMessage:  true,
		MessageThreadID: 101,
	}
	require.NoError(t, f.pipeline.Outbound(ctx, staff))

	msgs := f.tg.sentTo("42")
	require.NotEmpty(t, msgs)
	assert.Equal(t, "We are on it.", msgs[len(msgs)-1].Text)

	entry, err := f.ledger.Get(ctx, "42", "500")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "We are on it.", entry.Text)
}

func TestOutboundIgnoresNonOperators(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	ctx := context.Background()
	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 1, "hi")))
	before := len(f.tg.sent)

	staff := &telegram.Message{
		MessageID:       500,
		From:            &telegram.User{ID: 888},
		Chat:            telegram.Chat{ID: -1001234, Type: "supergroup"},
		Text:            "not an operator",
		IsTopicMessage:  true,
		MessageThreadID: 101,
	}
	require.NoError(t, f.pipeline.Outbound(ctx, staff))
	assert.Len(t, f.tg.sent, before)
}

func TestOutboundUnmappedTopicNotifiesStaff(t *testing.T) {
	f := newPipelineFixture(t)
	staff := &telegram.Message{
		MessageID:       500,
		From:            &telegram.User{ID: 777},
		Chat:            telegram.Chat{ID: -1001234, Type: "supergroup"},
		Text:            "anyone here?",
		IsTopicMessage:  true,
		MessageThreadID: 555,
	}
	require.NoError(t, f.pipeline.Outbound(context.Background(), staff))

	msgs := f.tg.sentTo(testGroupID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "555", msgs[0].ThreadID)
	assert.Contains(t, msgs[0].Text, "No user is linked")
}

func TestOutboundPhotoUsesLargestSize(t *testing.T) {
	f := newPipelineFixture(t)
	f.verifiedUser(t, "42")
	ctx := context.Background()

	require.NoError(t, f.pipeline.Inbound(ctx, privateText(42, 1, "hi")))

	staff := &telegram.Message{
		MessageID:       501,
		From:            &telegram.User{ID: 777},
		Chat:            telegram.Chat{ID: -1001234, Type: "supergroup"},
		IsTopicMessage:  true,
		MessageThreadID: 101,
		Photo: []telegram.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "large", Width: 1280},
		},
		Caption: "screenshot",
	}
	require.NoError(t, f.pipeline.Outbound(ctx, staff))

	require.Len(t, f.tg.media, 1)
	assert.Equal(t, telegram.MediaPhoto, f.tg.media[0].kind)
	assert.Equal(t, "large", f.tg.media[0].fileID)
	assert.Equal(t, "42", f.tg.media[0].chatID)
}
