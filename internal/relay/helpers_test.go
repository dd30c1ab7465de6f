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

// fakeUsers is an in-memory UserStore.
type fakeUsers struct {
	users map[string]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*model.User{}}
}

func (f *fakeUsers) GetOrCreate(_ context.Context, id string) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		clone := *u
		return &clone, nil
	}
	u := &model.User{ID: id, State: model.StateNew}
	f.users[id] = u
	clone := *u
	return &clone, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, patch model.UserPatch) error {
	u, ok := f.users[id]
	if !ok {
		return fmt.Errorf("no such user %s", id)
	}
	if patch.State != nil {
		u.State = *patch.State
	}
	if patch.IsBlocked != nil {
		u.IsBlocked = *patch.IsBlocked
	}
	if patch.IsMuted != nil {
		u.IsMuted = *patch.IsMuted
	}
	if patch.BlockCount != nil {
		u.BlockCount = *patch.BlockCount
	}
	applyRef := func(dst *string, src **string) {
		if src == nil {
			return
		}
		if *src == nil {
			*dst = ""
			return
		}
		*dst = **src
	}
	applyRef(&u.ThreadID, patch.ThreadID)
	applyRef(&u.CardMessageID, patch.CardMessageID)
	applyRef(&u.BlockLogMessageID, patch.BlockLogMessageID)
	applyRef(&u.ProfileLogMessageID, patch.ProfileLogMessageID)
	if patch.Profile != nil {
		u.Profile = patch.Profile
	}
	return nil
}

func (f *fakeUsers) FindByThread(_ context.Context, threadID string) (string, error) {
	for id, u := range f.users {
		if u.ThreadID == threadID {
			return id, nil
		}
	}
	return "", nil
}

// fakeLedger is an in-memory MessageStore.
type fakeLedger struct {
	entries map[string]model.StoredMessage
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]model.StoredMessage{}}
}

func (f *fakeLedger) key(owner, msg string) string { return owner + "/" + msg }

func (f *fakeLedger) Put(_ context.Context, ownerID, messageID string, m model.StoredMessage) error {
	f.entries[f.key(ownerID, messageID)] = m
	return nil
}

func (f *fakeLedger) Get(_ context.Context, ownerID, messageID string) (*model.StoredMessage, error) {
	m, ok := f.entries[f.key(ownerID, messageID)]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

type mediaCall struct {
	chatID string
	kind   telegram.MediaKind
	fileID string
}

// fakeTransport records every outgoing call and can be scripted to fail.
type fakeTransport struct {
	sent        []telegram.SendMessageRequest
	copies      []telegram.CopyMessageRequest
	topicNames  []string
	textEdits   []telegram.EditMessageTextRequest
	markupEdits []string
	pins        []string
	toasts      []string
	media       []mediaCall

	nextMsgID    int64
	nextThreadID int64

	failSendThread map[string]error
	failCopyThread map[string]error
	createTopicErr error
	editMarkupErr  error
	editTextErr    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		nextMsgID:      1000,
		nextThreadID:   100,
		failSendThread: map[string]error{},
		failCopyThread: map[string]error{},
	}
}

func (f *fakeTransport) SendMessage(_ context.Context, req telegram.SendMessageRequest) (*telegram.Message, error) {
	if err := f.failSendThread[req.ThreadID]; err != nil && req.ThreadID != "" {
		return nil, err
	}
	f.sent = append(f.sent, req)
	f.nextMsgID++
	return &telegram.Message{MessageID: f.nextMsgID}, nil
}

func (f *fakeTransport) CopyMessage(_ context.Context, req telegram.CopyMessageRequest) (string, error) {
	if err := f.failCopyThread[req.ThreadID]; err != nil && req.ThreadID != "" {
		return "", err
	}
	f.copies = append(f.copies, req)
	f.nextMsgID++
	return strconv.FormatInt(f.nextMsgID, 10), nil
}

func (f *fakeTransport) CreateForumTopic(_ context.Context, _, name string) (string, error) {
	if f.createTopicErr != nil {
		return "", f.createTopicErr
	}
	f.topicNames = append(f.topicNames, name)
	f.nextThreadID++
	return strconv.FormatInt(f.nextThreadID, 10), nil
}

func (f *fakeTransport) EditForumTopic(_ context.Context, _, _, _ string) error { return nil }

func (f *fakeTransport) PinChatMessage(_ context.Context, _, messageID string, _ bool) error {
	f.pins = append(f.pins, messageID)
	return nil
}

func (f *fakeTransport) EditMessageText(_ context.Context, req telegram.EditMessageTextRequest) error {
	if f.editTextErr != nil {
		return f.editTextErr
	}
	f.textEdits = append(f.textEdits, req)
	return nil
}

func (f *fakeTransport) EditMessageReplyMarkup(_ context.Context, _, messageID string, _ *telegram.InlineKeyboardMarkup) error {
	if f.editMarkupErr != nil {
		return f.editMarkupErr
	}
	f.markupEdits = append(f.markupEdits, messageID)
	return nil
}

func (f *fakeTransport) AnswerCallbackQuery(_ context.Context, _, text string, _ bool) error {
	f.toasts = append(f.toasts, text)
	return nil
}

func (f *fakeTransport) SendMedia(_ context.Context, chatID string, kind telegram.MediaKind, fileID, _ string) error {
	f.media = append(f.media, mediaCall{chatID: chatID, kind: kind, fileID: fileID})
	return nil
}

// sentTo returns all messages sent to the given chat without a thread, i.e.
// private-chat sends.
func (f *fakeTransport) sentTo(chatID string) []telegram.SendMessageRequest {
	var out []telegram.SendMessageRequest
	for _, req := range f.sent {
		if req.ChatID == chatID {
			out = append(out, req)
		}
	}
	return out
}

// memStore is an in-memory settings.Store.
type memStore struct {
	values map[string]string
}

func newMemStore() *memStore { return &memStore{values: map[string]string{}} }

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Put(_ context.Context, key, value string) error {
	s.values[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	delete(s.values, key)
	return nil
}

func newTestResolver(store settings.Store) *settings.Resolver {
	return settings.NewResolver(store, zerolog.Nop(),
		settings.WithEnvLookup(func(string) (string, bool) { return "", false }))
}
