package spec

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSpec(t *testing.T) (*Spec, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(WithLogger(logger)), buf
}

func TestOrderedStore(t *testing.T) {
	s, _ := newTestSpec(t)
	s.Set("b", 1)
	s.Set("a", 2)
	s.Set("c", 3)
	s.Set("b", 4)

	assert.Equal(t, []string{"b", "a", "c"}, s.Keys())
	assert.Equal(t, 3, s.Len())
	v, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	s.Delete("a")
	assert.Equal(t, []string{"b", "c"}, s.Keys())
	assert.False(t, s.Has("a"))
	assert.Equal(t, "fallback", s.GetOr("a", "fallback"))

	assert.Equal(t, 3, s.SetDefault("c", 9))
	assert.Equal(t, 9, s.SetDefault("d", 9))
	assert.Equal(t, map[string]any{"b": 4, "c": 3, "d": 9}, s.Map())
}

func TestFromMapSortsKeys(t *testing.T) {
	s := FromMap(map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.Keys())
}

func TestAliases(t *testing.T) {
	s, logs := newTestSpec(t)

	s.Set("transpile_source_map", map[string]string{"m": "/src/m.js"})
	assert.True(t, s.Has("transpile_sourcepath"))
	assert.Equal(t, []string{"transpile_sourcepath"}, s.Keys())
	assert.Contains(t, logs.String(), "old_key=transpile_source_map")
	assert.Contains(t, logs.String(), "new_key=transpile_sourcepath")

	logs.Reset()
	_, ok := s.Get("transpile_source_map")
	assert.True(t, ok)
	assert.Contains(t, logs.String(), "spec key has been remapped")

	logs.Reset()
	s.Set(KeyGenerateSourceMap, true)
	assert.True(t, s.GetBool("generate_source_map"))
	assert.Empty(t, logs.String())

	s.Set("bundle_targets", map[string]string{})
	assert.True(t, s.Has("bundle_targetpaths"))
	assert.False(t, s.Has("bundle_targets_unrelated"))

	plain := New(WithAliases())
	plain.Set("bundle_targets", 1)
	assert.Equal(t, []string{"bundle_targets"}, plain.Keys())
}

func TestTypedGetters(t *testing.T) {
	s, _ := newTestSpec(t)
	s.Set("str", "value")
	s.Set("int", 3)
	s.Set("float", float64(2))
	s.Set("list", []any{"a", "b"})
	s.Set("badlist", []any{"a", 1})
	s.Set("anymap", map[string]any{"k": "v"})
	s.Set("badmap", map[string]any{"k": 1})

	assert.Equal(t, "value", s.GetString("str"))
	assert.Equal(t, "", s.GetString("int"))
	assert.Equal(t, 3, s.GetInt("int"))
	assert.Equal(t, 2, s.GetInt("float"))
	assert.Equal(t, 0, s.GetInt("missing"))
	assert.Equal(t, []string{"a", "b"}, s.GetStrings("list"))
	assert.Nil(t, s.GetStrings("badlist"))

	m, ok := s.GetStringMap("anymap")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"k": "v"}, m)
	_, ok = s.GetStringMap("badmap")
	assert.False(t, ok)
	_, ok = s.GetStringMap("missing")
	assert.False(t, ok)
}

func TestEnsureStringMap(t *testing.T) {
	s, _ := newTestSpec(t)
	m := s.EnsureStringMap("transpile_modpaths")
	m["a"] = "b"
	again, ok := s.GetStringMap("transpile_modpaths")
	require.True(t, ok)
	assert.Equal(t, "b", again["a"])

	s.Set("converted", map[string]any{"x": "y"})
	conv := s.EnsureStringMap("converted")
	conv["z"] = "w"
	stored, _ := s.Get("converted")
	assert.Equal(t, map[string]string{"x": "y", "z": "w"}, stored)
}

func TestUpdateSelected(t *testing.T) {
	s, _ := newTestSpec(t)
	s.Set("keep", 1)
	other := FromMap(map[string]any{"keep": 2, "take": 3, "ignore": 4})
	s.UpdateSelected(other, "keep", "take", "absent")
	assert.Equal(t, map[string]any{"keep": 2, "take": 3}, s.Map())
}

func TestStringHidesContents(t *testing.T) {
	s, _ := newTestSpec(t)
	s.Set("secret", "value")
	assert.True(t, strings.HasPrefix(s.String(), "<Spec "))
	assert.NotContains(t, s.String(), "value")

	s.Set(KeyDebug, 2)
	assert.Contains(t, s.String(), `"secret": value`)
}

func TestAliasWarnsOncePerCall(t *testing.T) {
	s, logs := newTestSpec(t)

	s.SetDefault("bundle_source_map", map[string]string{"m": "/src/m.js"})
	assert.Equal(t, 1, strings.Count(logs.String(), "spec key has been remapped"))
	assert.True(t, s.Has("bundle_sourcepath"))

	logs.Reset()
	m := s.EnsureStringMap("x_targets")
	m["a"] = "a.js"
	assert.Equal(t, 1, strings.Count(logs.String(), "spec key has been remapped"))
	got, ok := s.GetStringMap("x_targetpaths")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"a": "a.js"}, got)
}
