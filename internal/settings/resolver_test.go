package settings

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay-bot-backend/internal/model"
)

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

type memCache struct {
	values map[string]string
	hits   int
}

func newMemCache() *memCache { return &memCache{values: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, bool) {
	v, ok := c.values[key]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *memCache) Set(_ context.Context, key, value string) { c.values[key] = value }

func (c *memCache) Invalidate(_ context.Context, key string) { delete(c.values, key) }

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestGetPrecedence(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	r := NewResolver(store, zerolog.Nop(),
		WithEnvLookup(envOf(map[string]string{"WELCOME_MESSAGE": "from env"})))

	// Nothing stored: env wins over default.
	assert.Equal(t, "from env", r.Get(ctx, KeyWelcomeMessage, "default"))

	// Stored value wins over env.
	store.values[KeyWelcomeMessage] = "from store"
	assert.Equal(t, "from store", r.Get(ctx, KeyWelcomeMessage, "default"))

	// Unknown key falls through to the default.
	assert.Equal(t, "default", r.Get(ctx, "no_such_key", "default"))
}

func TestEnvAliases(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newMemStore(), zerolog.Nop(),
		WithEnvLookup(envOf(map[string]string{
			"VERIFICATION_ANSWER": "4|four",
			"BLOCK_THRESHOLD":     "7",
		})))

	assert.Equal(t, "4|four", r.Get(ctx, KeyVerificationAnswer, "3"))
	assert.Equal(t, 7, r.GetInt(ctx, KeyBlockThreshold, 5))
}

func TestGetIntRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	r := NewResolver(store, zerolog.Nop(), WithEnvLookup(envOf(nil)))

	store.values[KeyBlockThreshold] = "not a number"
	assert.Equal(t, 5, r.GetInt(ctx, KeyBlockThreshold, 5))

	store.values[KeyBlockThreshold] = "-2"
	assert.Equal(t, 5, r.GetInt(ctx, KeyBlockThreshold, 5))

	store.values[KeyBlockThreshold] = "9"
	assert.Equal(t, 9, r.GetInt(ctx, KeyBlockThreshold, 5))
}

func TestPutInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cache := newMemCache()
	r := NewResolver(store, zerolog.Nop(), WithCache(cache), WithEnvLookup(envOf(nil)))

	store.values["k"] = "v1"
	assert.Equal(t, "v1", r.Get(ctx, "k", ""))
	assert.Equal(t, "v1", cache.values["k"])
	assert.Equal(t, "v1", r.Get(ctx, "k", ""))
	assert.Equal(t, 1, cache.hits)

	require.NoError(t, r.Put(ctx, "k", "v2"))
	_, cached := cache.values["k"]
	assert.False(t, cached)
	assert.Equal(t, "v2", r.Get(ctx, "k", ""))
}

func TestAutoReplyRulesRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newMemStore(), zerolog.Nop(), WithEnvLookup(envOf(nil)))

	assert.Empty(t, r.AutoReplyRules(ctx))

	rules := []model.AutoReplyRule{
		{ID: "a", Keywords: "price", Response: "See the list."},
		{ID: "b", Keywords: "hours", Response: "We answer 9 to 5."},
	}
	require.NoError(t, r.PutAutoReplyRules(ctx, rules))
	assert.Equal(t, rules, r.AutoReplyRules(ctx))
}

func TestMalformedListsDegradeToEmpty(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	r := NewResolver(store, zerolog.Nop(), WithEnvLookup(envOf(nil)))

	store.values[KeyBlockKeywords] = "{not json"
	assert.Empty(t, r.BlockPatterns(ctx))

	store.values[KeyAuthorizedAdmins] = `[" 7 ", "", "8"]`
	assert.Equal(t, []string{"7", "8"}, r.AuthorizedOperators(ctx))
}

func TestFilterSnapshotDefaultsToAllowed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	r := NewResolver(store, zerolog.Nop(), WithEnvLookup(envOf(nil)))

	f := r.FilterSnapshot(ctx)
	assert.True(t, f.Text)
	assert.True(t, f.Media)
	assert.True(t, f.Link)

	store.values[KeyEnableLinkForward] = "false"
	assert.False(t, r.FilterSnapshot(ctx).Link)
}
