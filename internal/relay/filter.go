package relay

import (
	"regexp"

	"relay-bot-backend/internal/model"
	"relay-bot-backend/internal/settings"
	"relay-bot-backend/internal/telegram"
)

// ContentClass is the single class a message falls into, decided by
// first-matching classification order.
type ContentClass int

const (
	ClassText ContentClass = iota
	ClassForwardUser
	ClassForwardGroup
	ClassForwardChannel
	ClassAudioVoice
	ClassStickerGif
	ClassMedia
)

func classify(m *telegram.Message) ContentClass {
	switch {
	case m.ForwardFrom != nil:
		return ClassForwardUser
	case m.ForwardFromChat != nil:
		if m.ForwardFromChat.Type == "channel" {
			return ClassForwardChannel
		}
		return ClassForwardGroup
	case m.Audio != nil || m.Voice != nil:
		return ClassAudioVoice
	case m.Sticker != nil || m.Animation != nil:
		return ClassStickerGif
	case len(m.Photo) > 0 || m.Video != nil || m.Document != nil:
		return ClassMedia
	}
	return ClassText
}

// FilterInput is the config snapshot a verdict is computed against.
type FilterInput struct {
	Filters       settings.Filters
	BlockPatterns []string
	AutoReplies   []model.AutoReplyRule
}

// Verdict is the outcome of filter evaluation. When BlockPattern is set the
// message matched a block keyword and nothing else was evaluated; the caller
// owns strike counting. AutoReply, when set, short-circuits the relay with a
// canned response.
type Verdict struct {
	BlockPattern string
	Forwardable  bool
	Reason       string
	AutoReply    string
}

// Evaluate runs the fixed-priority filter chain: block keywords, content
// class, link overlay, auto-reply. It is a pure function of the message and
// the snapshot. Invalid rule patterns are skipped, never fatal.
func Evaluate(m *telegram.Message, in FilterInput) Verdict {
	if m.Text != "" {
		for _, pattern := range in.BlockPatterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				continue
			}
			if re.MatchString(m.Text) {
				return Verdict{BlockPattern: pattern, Reason: "blocked keyword"}
			}
		}
	}

	v := Verdict{Forwardable: true}
	f := in.Filters
	switch classify(m) {
	case ClassForwardUser:
		if !f.UserForward {
			v.Forwardable, v.Reason = false, "message forwarded from a user"
		}
	case ClassForwardGroup:
		if !f.GroupForward {
			v.Forwardable, v.Reason = false, "message forwarded from a group"
		}
	case ClassForwardChannel:
		if !f.ChannelForward {
			v.Forwardable, v.Reason = false, "message forwarded from a channel"
		}
	case ClassAudioVoice:
		if !f.AudioVoice {
			v.Forwardable, v.Reason = false, "audio or voice message"
		}
	case ClassStickerGif:
		if !f.StickerGif {
			v.Forwardable, v.Reason = false, "sticker or GIF"
		}
	case ClassMedia:
		if !f.Media {
			v.Forwardable, v.Reason = false, "media content (photo/video/file)"
		}
	case ClassText:
		if !f.Text {
			v.Forwardable, v.Reason = false, "plain text content"
		}
	}

	// Link filtering overlays the class verdict: the class reason is kept and
	// annotated rather than replaced.
	if m.HasLinks() && !f.Link {
		if v.Reason != "" {
			v.Reason += " (and contains links)"
		} else {
			v.Reason = "contains links"
		}
		v.Forwardable = false
	}

	if !v.Forwardable {
		return v
	}

	if m.Text != "" {
		for _, rule := range in.AutoReplies {
			re, err := regexp.Compile("(?i)" + rule.Keywords)
			if err != nil {
				continue
			}
			if re.MatchString(m.Text) {
				v.AutoReply = rule.Response
				return v
			}
		}
	}
	return v
}
