package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

func allAllowed() settings.Filters {
	return settings.Filters{
		UserForward:    true,
		GroupForward:   true,
		ChannelForward: true,
		AudioVoice:     true,
		StickerGif:     true,
		Media:          true,
		Link:           true,
		Text:           true,
	}
}

func TestEvaluateBlockKeywordWinsOverEverything(t *testing.T) {
	in := FilterInput{
		Filters:       allAllowed(),
		BlockPatterns: []string{"spam"},
		AutoReplies:   []model.AutoReplyRule{{ID: "1", Keywords: "spam", Response: "hi"}},
	}
	v := Evaluate(&telegram.Message{Text: "Buy SPAM now"}, in)

	assert.Equal(t, "spam", v.BlockPattern)
	assert.False(t, v.Forwardable)
	assert.Empty(t, v.AutoReply)
}

func TestEvaluateInvalidPatternSkipped(t *testing.T) {
	in := FilterInput{
		Filters:       allAllowed(),
		BlockPatterns: []string{"[invalid", "valid"},
	}
	v := Evaluate(&telegram.Message{Text: "this is valid text"}, in)
	assert.Equal(t, "valid", v.BlockPattern)
}

func TestEvaluateChannelForwardDisabled(t *testing.T) {
	f := allAllowed()
	f.ChannelForward = false
	v := Evaluate(&telegram.Message{
		ForwardFromChat: &telegram.Chat{ID: 1, Type: "channel"},
	}, FilterInput{Filters: f})

	assert.False(t, v.Forwardable)
	assert.Equal(t, "message forwarded from a channel", v.Reason)
}

func TestEvaluateLinkOverlayComposesReason(t *testing.T) {
	f := allAllowed()
	f.ChannelForward = false
	f.Link = false
	v := Evaluate(&telegram.Message{
		ForwardFromChat: &telegram.Chat{ID: 1, Type: "channel"},
		Text:            "https://example.com",
		Entities:        []telegram.MessageEntity{{Type: "url"}},
	}, FilterInput{Filters: f})

	assert.False(t, v.Forwardable)
	assert.Equal(t, "message forwarded from a channel (and contains links)", v.Reason)
}

func TestEvaluateLinkOnlyReason(t *testing.T) {
	f := allAllowed()
	f.Link = false
	v := Evaluate(&telegram.Message{
		Text:     "see https://example.com",
		Entities: []telegram.MessageEntity{{Type: "url"}},
	}, FilterInput{Filters: f})

	assert.False(t, v.Forwardable)
	assert.Equal(t, "contains links", v.Reason)
}

func TestEvaluateAutoReplyOnlyWhenForwardable(t *testing.T) {
	rules := []model.AutoReplyRule{{ID: "1", Keywords: "price", Response: "See our price list."}}

	v := Evaluate(&telegram.Message{Text: "what is the PRICE?"}, FilterInput{
		Filters:     allAllowed(),
		AutoReplies: rules,
	})
	assert.True(t, v.Forwardable)
	assert.Equal(t, "See our price list.", v.AutoReply)

	blocked := allAllowed()
	blocked.Text = false
	v = Evaluate(&telegram.Message{Text: "what is the price?"}, FilterInput{
		Filters:     blocked,
		AutoReplies: rules,
	})
	assert.False(t, v.Forwardable)
	assert.Empty(t, v.AutoReply)
}

func TestClassifyOrder(t *testing.T) {
	// A forwarded photo classifies as a forward, not as media.
	m := &telegram.Message{
		ForwardFrom: &telegram.User{ID: 5},
		Photo:       []telegram.PhotoSize{{FileID: "p"}},
	}
	assert.Equal(t, ClassForwardUser, classify(m))

	assert.Equal(t, ClassForwardGroup, classify(&telegram.Message{
		ForwardFromChat: &telegram.Chat{Type: "supergroup"},
	}))
	assert.Equal(t, ClassAudioVoice, classify(&telegram.Message{Voice: &telegram.File{FileID: "v"}}))
	assert.Equal(t, ClassStickerGif, classify(&telegram.Message{Animation: &telegram.File{FileID: "a"}}))
	assert.Equal(t, ClassMedia, classify(&telegram.Message{Document: &telegram.File{FileID: "d"}}))
	assert.Equal(t, ClassText, classify(&telegram.Message{Text: "hello"}))
}
