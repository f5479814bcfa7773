package advice

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

func TestBannerAdvice(t *testing.T) {
	r, _ := newTestRegistry(t)
	RegisterBuiltins(r)

	target := filepath.Join(t.TempDir(), "bundle.js")
	require.NoError(t, os.WriteFile(target, []byte("var a;\n"), 0o600))
	s := spec.New()
	s.Set(spec.KeyExportTarget, target)
	s.Set(spec.KeyBuildID, "b-42")
	s.Set(spec.KeyAdvicePackages, []string{PackageBanner + "[timestamp]"})

	r.Apply(t.Context(), []string{"concat", "toolchain"}, s)
	require.Equal(t, 1, s.Pending(spec.AfterLink))
	require.NoError(t, s.Handle(t.Context(), spec.AfterLink))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "/* bundlekit build b-42 at "))
	assert.True(t, strings.HasSuffix(string(data), " */\nvar a;\n"))
}

func TestBannerNotOfferedToNullToolchain(t *testing.T) {
	r, logs := newTestRegistry(t)
	RegisterBuiltins(r)
	s := spec.New()
	s.Set(spec.KeyAdvicePackages, []string{PackageBanner})
	r.Apply(t.Context(), []string{"null", "toolchain"}, s)
	assert.Zero(t, s.Pending(spec.AfterLink))
	assert.Contains(t, logs.String(), PackageBanner)
}

func TestBannerMissingTargetDoesNotStopRun(t *testing.T) {
	r, logs := newTestRegistry(t)
	RegisterBuiltins(r)
	s := spec.New(spec.WithLogger(slog.New(slog.NewTextHandler(logs, nil))))
	s.Set(spec.KeyExportTarget, filepath.Join(t.TempDir(), "absent.js"))
	s.Set(spec.KeyAdvicePackages, []string{PackageBanner})
	r.Apply(t.Context(), []string{"concat"}, s)

	require.NoError(t, s.Handle(t.Context(), spec.AfterLink))
	assert.Contains(t, logs.String(), "banner: read export target")
}

func TestManifestAdvice(t *testing.T) {
	r, _ := newTestRegistry(t)
	RegisterBuiltins(r)

	target := filepath.Join(t.TempDir(), "bundle.js")
	s := spec.New()
	s.Set(spec.KeyExportTarget, target)
	s.Set(spec.KeyBuildID, "b-7")
	s.Set(spec.KeyExportModuleNames, []string{"app"})
	s.Set(spec.KeyArtifactPaths, []string{target})
	s.Set("transpile"+spec.SuffixModpaths, map[string]string{"app": "app"})
	s.Set("bundle"+spec.SuffixModpaths, map[string]string{"lib": "lib"})
	s.Set(spec.KeyAdvicePackages, []string{PackageManifest})

	r.Apply(t.Context(), []string{"concat", "toolchain"}, s)
	require.NoError(t, s.Handle(t.Context(), spec.Success))

	data, err := os.ReadFile(target + ".manifest.json")
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "b-7", m.BuildID)
	assert.Equal(t, []string{"app"}, m.ExportModuleNames)
	assert.Equal(t, map[string]string{"app": "app", "lib": "lib"}, m.Modpaths)
	assert.Equal(t, []string{target, target + ".manifest.json"}, s.GetStrings(spec.KeyArtifactPaths))
}

func TestManifestWithoutExportTarget(t *testing.T) {
	r, logs := newTestRegistry(t)
	RegisterBuiltins(r)
	s := spec.New(spec.WithLogger(slog.New(slog.NewTextHandler(logs, nil))))
	s.Set(spec.KeyAdvicePackages, []string{PackageManifest})
	r.Apply(t.Context(), []string{"null", "toolchain"}, s)

	require.NoError(t, s.Handle(t.Context(), spec.Success))
	assert.Contains(t, logs.String(), "manifest: export_target is not set")
}
