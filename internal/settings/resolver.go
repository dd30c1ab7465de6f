package settings

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"relay-bot-backend/internal/model"
)

// Store is the persistent config table.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Cache is an optional read-through cache in front of the store.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
	Invalidate(ctx context.Context, key string)
}

// Resolver reads configuration with three-tier precedence: store, then
// process environment, then the caller's default. The first tier that has the
// key wins. Writes go to the store and invalidate the cache entry.
type Resolver struct {
	store     Store
	cache     Cache
	lookupEnv func(string) (string, bool)
	log       zerolog.Logger
}

type Option func(*Resolver)

// WithCache layers a cache in front of store reads.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithEnvLookup overrides the environment tier, used by tests.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(r *Resolver) { r.lookupEnv = fn }
}

func NewResolver(store Store, log zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		lookupEnv: os.LookupEnv,
		log:       log.With().Str("component", "settings").Logger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get resolves key with the given fallback default.
func (r *Resolver) Get(ctx context.Context, key, def string) string {
	if r.cache != nil {
		if v, ok := r.cache.Get(ctx, key); ok {
			return v
		}
	}
	v, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("config store read failed")
	} else if ok {
		if r.cache != nil {
			r.cache.Set(ctx, key, v)
		}
		return v
	}
	if v, ok := r.lookupEnv(envKeyFor(key)); ok {
		return v
	}
	return def
}

// GetBool treats anything but a case-insensitive "true" as false.
func (r *Resolver) GetBool(ctx context.Context, key string, def bool) bool {
	return strings.EqualFold(r.Get(ctx, key, strconv.FormatBool(def)), "true")
}

func (r *Resolver) GetInt(ctx context.Context, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.Get(ctx, key, strconv.Itoa(def))))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Put stores the value and drops any cached copy.
func (r *Resolver) Put(ctx context.Context, key, value string) error {
	if err := r.store.Put(ctx, key, value); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Invalidate(ctx, key)
	}
	return nil
}

// Delete removes the key, falling the read path back to env/default.
func (r *Resolver) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, key); err != nil {
		return err
	}
	if r.cache != nil {
		r.cache.Invalidate(ctx, key)
	}
	return nil
}

// AutoReplyRules returns the ordered auto-reply rule list. Malformed JSON
// yields an empty list rather than an error.
func (r *Resolver) AutoReplyRules(ctx context.Context) []model.AutoReplyRule {
	raw := r.Get(ctx, KeyAutoReplyRules, "[]")
	var rules []model.AutoReplyRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		r.log.Warn().Err(err).Msg("malformed auto-reply rule list")
		return nil
	}
	return rules
}

func (r *Resolver) PutAutoReplyRules(ctx context.Context, rules []model.AutoReplyRule) error {
	b, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	return r.Put(ctx, KeyAutoReplyRules, string(b))
}

// BlockPatterns returns the ordered block-keyword pattern list.
func (r *Resolver) BlockPatterns(ctx context.Context) []string {
	raw := r.Get(ctx, KeyBlockKeywords, "[]")
	var patterns []string
	if err := json.Unmarshal([]byte(raw), &patterns); err != nil {
		r.log.Warn().Err(err).Msg("malformed block keyword list")
		return nil
	}
	return patterns
}

func (r *Resolver) PutBlockPatterns(ctx context.Context, patterns []string) error {
	b, err := json.Marshal(patterns)
	if err != nil {
		return err
	}
	return r.Put(ctx, KeyBlockKeywords, string(b))
}

// AuthorizedOperators returns the co-operator id list maintained through the
// menu; primary operators come from the environment instead.
func (r *Resolver) AuthorizedOperators(ctx context.Context) []string {
	raw := r.Get(ctx, KeyAuthorizedAdmins, "[]")
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		r.log.Warn().Err(err).Msg("malformed authorized operator list")
		return nil
	}
	out := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (r *Resolver) PutAuthorizedOperators(ctx context.Context, ids []string) error {
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return r.Put(ctx, KeyAuthorizedAdmins, string(b))
}

// Filters is a point-in-time snapshot of the content filter toggles.
type Filters struct {
	UserForward    bool
	GroupForward   bool
	ChannelForward bool
	AudioVoice     bool
	StickerGif     bool
	Media          bool
	Link           bool
	Text           bool
}

// FilterSnapshot reads all content toggles; missing keys default to allowed.
func (r *Resolver) FilterSnapshot(ctx context.Context) Filters {
	return Filters{
		UserForward:    r.GetBool(ctx, KeyEnableUserForward, true),
		GroupForward:   r.GetBool(ctx, KeyEnableGroupForward, true),
		ChannelForward: r.GetBool(ctx, KeyEnableChannelForward, true),
		AudioVoice:     r.GetBool(ctx, KeyEnableAudioForward, true),
		StickerGif:     r.GetBool(ctx, KeyEnableStickerForward, true),
		Media:          r.GetBool(ctx, KeyEnableMediaForward, true),
		Link:           r.GetBool(ctx, KeyEnableLinkForward, true),
		Text:           r.GetBool(ctx, KeyEnableTextForward, true),
	}
}

// envKeyFor maps a config key to its environment fallback name. A few keys
// predate the store and keep their historical variable names.
func envKeyFor(key string) string {
	switch key {
	case KeyWelcomeMessage:
		return "WELCOME_MESSAGE"
	case KeyVerificationQuestion:
		return "VERIFICATION_QUESTION"
	case KeyVerificationAnswer:
		return "VERIFICATION_ANSWER"
	}
	return strings.ToUpper(key)
}
