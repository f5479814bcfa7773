package sourcemap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundlekit/internal/vlq"
)

func TestCreate(t *testing.T) {
	sm := Create("hello.min.js", []string{"hello.js"}, vlq.Mappings{
		{{0, 0, 0, 0}, {6, 0, 0, 6}},
		{},
	})
	data, err := sm.Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]any{
		"version":  float64(3),
		"sources":  []any{"hello.js"},
		"names":    []any{},
		"mappings": "AAAA,MAAM;",
		"file":     "hello.min.js",
	}, raw)
}

func TestWriteFileAndRead(t *testing.T) {
	w, _, _ := newTestWriter(t)
	require.NoError(t, w.WritePadding("define(function() {\n"))
	_, _ = w.WriteString("return 1;\n")
	require.NoError(t, w.WritePadding("});\n"))

	path := filepath.Join(t.TempDir(), "nested", "mod.js.map")
	sm := Create("mod.js", []string{"src/mod.js"}, w.Mappings())
	require.NoError(t, sm.WriteFile(path))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, sm, got)

	decoded, err := got.Decode()
	require.NoError(t, err)
	assert.Equal(t, w.Mappings(), decoded)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	_, err := Parse([]byte(`{"version":2,"sources":[],"names":[],"mappings":"","file":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 2")

	_, err = Parse([]byte(`{"version":3,"sources":[],"mappings":"AA","file":"x"}`))
	require.ErrorIs(t, err, vlq.ErrFieldCount)

	_, err = Parse([]byte(`not json`))
	require.Error(t, err)

	sm, err := Parse([]byte(`{"version":3,"sources":["a.js"],"mappings":"AAAA","file":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{}, sm.Names)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.map"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
