package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	nop := zerolog.Nop()
	return Config{
		Location: t.TempDir(),
		Logger:   &nop,
	}
}

func newTestStore(t *testing.T, mutate ...func(*Config)) *Store {
	t.Helper()
	cfg := testConfig(t)
	for _, fn := range mutate {
		fn(&cfg)
	}
	s, err := Open(cfg)
	require.NoError(t, err)
	return s
}

func withClock(c *fakeClock) func(*Config) {
	return func(cfg *Config) { cfg.Now = c.Now }
}

func readDoc(t *testing.T, s *Store) []byte {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	return data
}

func TestOpen_CreatesEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	nop := zerolog.Nop()

	s, err := Open(Config{Location: dir, Logger: &nop})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "kvstore", "store.json"), s.Path())
	assert.Equal(t, "{}", string(readDoc(t, s)))
}

func TestOpen_DefaultLocation(t *testing.T) {
	home := t.TempDir()
	nop := zerolog.Nop()

	s, err := Open(Config{HomeDir: home, Logger: &nop})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "kvstore", "store.json"), s.Path())
}

func TestOpen_ExistingFileUsedAsIs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	content := `{"a":{"value":"x","expiresIn":"never"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := newTestStore(t, func(c *Config) { c.Location = path })

	assert.Equal(t, content, string(readDoc(t, s)))

	ok, err := s.Has(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"blank location", func(c *Config) { c.Location = "   " }},
		{"nul in location", func(c *Config) { c.Location = "bad\x00dir" }},
		{"relative without workdir", func(c *Config) { c.Location = "data"; c.WorkDir = "" }},
		{"default without homedir", func(c *Config) { c.Location = ""; c.HomeDir = "" }},
		{"negative value size", func(c *Config) { c.MaxValueSize = -1 }},
		{"negative document size", func(c *Config) { c.MaxDocumentSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)

			_, err := Open(cfg)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestStore_Scenario(t *testing.T) {
	ctx := context.Background()
	wd := t.TempDir()
	nop := zerolog.Nop()

	s, err := Open(Config{Location: ".", WorkDir: wd, Logger: &nop})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(wd, "kvstore", "store.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	ok, err := s.Set(ctx, "lorem", "ipsum")
	require.NoError(t, err)
	assert.True(t, ok)

	got, ok, err := s.Get(ctx, "lorem")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"ipsum"`, string(got))

	ok, err = s.SetTTL(ctx, "bar", "foo", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "bar")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has(ctx, "lorem")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Has(ctx, "bar")
	require.NoError(t, err)
	assert.False(t, ok)

	doc, ok := s.All(ctx)
	require.True(t, ok)
	dump, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"lorem":{"value":"ipsum","expiresIn":"never"}}`, string(dump))
}

func TestStore_SetRoundTrip(t *testing.T) {
	type payload struct {
		Name  string   `json:"name"`
		Count int      `json:"count"`
		Tags  []string `json:"tags"`
	}

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "hello", `"hello"`},
		{"map", map[string]any{"a": 1, "b": []int{1, 2}}, `{"a":1,"b":[1,2]}`},
		{"array", []any{"x", 2, true, nil}, `["x",2,true,null]`},
		{"struct", payload{Name: "n", Count: 3, Tags: []string{"t"}}, `{"name":"n","count":3,"tags":["t"]}`},
		{"struct pointer", &payload{Name: "p"}, `{"name":"p","count":0,"tags":null}`},
		{"raw json", json.RawMessage(`{"nested":{"deep":[1,2,3]}}`), `{"nested":{"deep":[1,2,3]}}`},
		{"html is not escaped", "<a&b>", `"<a&b>"`},
		{"large integer keeps precision", map[string]any{"id": int64(9007199254740993)}, `{"id":9007199254740993}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)

			ok, err := s.Set(ctx, "key", tt.value)
			require.NoError(t, err)
			require.True(t, ok)

			got, ok, err := s.Get(ctx, "key")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestStore_SetConflictLeavesDocumentUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Set(ctx, "key", "first")
	require.NoError(t, err)
	require.True(t, ok)

	before := readDoc(t, s)

	ok, err = s.Set(ctx, "key", "second")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.SetTTL(ctx, "key", "third", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, before, readDoc(t, s))

	got, ok, err := s.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"first"`, string(got))
}

func TestStore_SetValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		field string
	}{
		{"empty key", "", "v", "key"},
		{"key too long", strings.Repeat("k", 33), "v", "key"},
		{"number value", "k", 42, "value"},
		{"bool value", "k", true, "value"},
		{"nil value", "k", nil, "value"},
		{"empty string value", "k", "", "value"},
		{"func value", "k", func() {}, "value"},
		{"channel value", "k", make(chan int), "value"},
		{"oversized value", "k", strings.Repeat("x", DefaultMaxValueSize), "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			before := readDoc(t, s)

			ok, err := s.Set(context.Background(), tt.key, tt.value)
			assert.False(t, ok)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, before, readDoc(t, s))
		})
	}
}

func TestStore_SetTTLValidation(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Millisecond} {
		t.Run(ttl.String(), func(t *testing.T) {
			s := newTestStore(t)

			ok, err := s.SetTTL(context.Background(), "k", "v", ttl)
			assert.False(t, ok)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "ttl", verr.Field)
			assert.Equal(t, "{}", string(readDoc(t, s)))
		})
	}
}

func TestStore_KeyLengthBoundary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, key := range []string{"a", strings.Repeat("a", 32), strings.Repeat("é", 32)} {
		ok, err := s.Set(ctx, key, "v")
		require.NoError(t, err, key)
		assert.True(t, ok, key)
	}
}

func TestStore_ValueSizeBoundary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// the quotes count towards the canonical size
	fits := strings.Repeat("x", DefaultMaxValueSize-2)
	ok, err := s.Set(ctx, "fits", fits)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Set(ctx, "over", fits+"x")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestStore_KeyValidationOnReads(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	long := strings.Repeat("k", 33)

	var verr *ValidationError

	_, _, err := s.Get(ctx, long)
	require.ErrorAs(t, err, &verr)

	_, err = s.Has(ctx, "")
	require.ErrorAs(t, err, &verr)

	_, err = s.Delete(ctx, long)
	require.ErrorAs(t, err, &verr)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	got, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestStore_DeleteMissing(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, withClock(clock))

	ok, err := s.SetTTL(ctx, "ephemeral", "gone", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	// exactly at the expiry instant the entry is still live
	clock.Advance(time.Millisecond)
	_, ok, err = s.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(time.Millisecond)

	// presence ignores expiry
	has, err := s.Has(ctx, "ephemeral")
	require.NoError(t, err)
	assert.True(t, has)

	_, ok, err = s.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, ok)

	// Get evicted the expired entry
	has, err = s.Has(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStore_ExpiryWallClock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.SetTTL(ctx, "k", "v", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	has, err := s.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has)

	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ExpiresInIsPersistedOnce(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, withClock(clock))

	ok, err := s.SetTTL(ctx, "k", "v", 1500*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	doc, ok := s.All(ctx)
	require.True(t, ok)
	assert.JSONEq(t, `{"value":"v","expiresIn":"2026-01-02T03:04:06.500Z"}`, string(doc["k"]))

	clock.Advance(time.Second)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	doc, ok = s.All(ctx)
	require.True(t, ok)
	assert.JSONEq(t, `{"value":"v","expiresIn":"2026-01-02T03:04:06.500Z"}`, string(doc["k"]))
}

func TestStore_AllIncludesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, withClock(clock))

	_, err := s.SetTTL(ctx, "old", "v", time.Millisecond)
	require.NoError(t, err)
	_, err = s.Set(ctx, "new", "v")
	require.NoError(t, err)

	clock.Advance(time.Hour)

	doc, ok := s.All(ctx)
	require.True(t, ok)
	assert.Len(t, doc, 2)
	assert.Contains(t, doc, "old")
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := range 3 {
		_, err := s.Set(ctx, fmt.Sprintf("k%d", i), "v")
		require.NoError(t, err)
	}

	assert.True(t, s.Clear(ctx))
	assert.Equal(t, "{}", string(readDoc(t, s)))

	doc, ok := s.All(ctx)
	require.True(t, ok)
	assert.Empty(t, doc)
}

func TestStore_CleanUp(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, withClock(clock))

	_, err := s.Set(ctx, "forever", "a")
	require.NoError(t, err)
	_, err = s.SetTTL(ctx, "short", "b", time.Millisecond)
	require.NoError(t, err)
	_, err = s.SetTTL(ctx, "long", "c", time.Hour)
	require.NoError(t, err)

	clock.Advance(time.Second)

	require.True(t, s.CleanUp(ctx))
	first := readDoc(t, s)

	doc, ok := s.All(ctx)
	require.True(t, ok)
	assert.Contains(t, doc, "forever")
	assert.Contains(t, doc, "long")
	assert.NotContains(t, doc, "short")

	require.True(t, s.CleanUp(ctx))
	assert.Equal(t, first, readDoc(t, s))
}

func TestStore_CleanUpKeepsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	content := `{"num":5,"bad":{"value":"v","expiresIn":"not-a-date"},"odd":{"value":1,"expiresIn":7}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := newTestStore(t, func(c *Config) { c.Location = path })

	require.True(t, s.CleanUp(ctx))
	assert.JSONEq(t, content, string(readDoc(t, s)))

	got, ok, err := s.Get(ctx, "bad")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"v"`, string(got))

	_, ok, err = s.Get(ctx, "num")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CapacityGuardCleansUp(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestStore(t, withClock(clock), func(c *Config) { c.MaxDocumentSize = 100 })

	ok, err := s.SetTTL(ctx, "big", strings.Repeat("x", 120), time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	size, err := s.Size(ctx)
	require.NoError(t, err)
	require.Greater(t, size, int64(100))

	clock.Advance(time.Second)

	ok, err = s.Set(ctx, "small", "v")
	require.NoError(t, err)
	assert.True(t, ok)

	doc, ok := s.All(ctx)
	require.True(t, ok)
	assert.NotContains(t, doc, "big")
	assert.Contains(t, doc, "small")
}

func TestStore_CapacityGuardRefusesWrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func(c *Config) { c.MaxDocumentSize = 100 })

	ok, err := s.Set(ctx, "big", strings.Repeat("x", 120))
	require.NoError(t, err)
	require.True(t, ok)

	before := readDoc(t, s)

	ok, err = s.Set(ctx, "small", "v")
	assert.False(t, ok)

	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(100), capErr.Limit)
	assert.Equal(t, int64(len(before)), capErr.Size)
	assert.Equal(t, before, readDoc(t, s))
}

func TestStore_CorruptDocumentFailsQuietly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o644))

	ok, err := s.Set(ctx, "k", "v")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok = s.All(ctx)
	assert.False(t, ok)
	assert.False(t, s.CleanUp(ctx))
	assert.Equal(t, "not json", string(readDoc(t, s)))

	// Clear does not read, so it recovers the store
	require.True(t, s.Clear(ctx))
	ok, err = s.Set(ctx, "k", "v")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_MissingFileIsRecreated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, os.RemoveAll(filepath.Dir(s.Path())))

	ok, err := s.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Set(ctx, "k", "v")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, s.Path())
}

func TestStore_ConcurrentSets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Set(ctx, fmt.Sprintf("key-%d", i), "v")
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	doc, ok := s.All(ctx)
	require.True(t, ok)
	assert.Len(t, doc, n)
}

func TestStore_LogsOperationalFailures(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	s := newTestStore(t, func(c *Config) { c.Logger = &logger })

	_, err := s.Set(ctx, "dup", "v")
	require.NoError(t, err)
	buf.Reset()

	_, err = s.Set(ctx, "dup", "v")
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "set", entry["op"])
	assert.Equal(t, "dup", entry["key"])
	assert.Equal(t, s.Path(), entry["path"])
	assert.Equal(t, ErrConflict.Error(), entry["error"])
}
