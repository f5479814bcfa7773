package buildlog

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundlekit/internal/outcome"
)

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := ggit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("var a;\n"), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.js")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &ggit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, hash.String()
}

func TestRevision(t *testing.T) {
	dir, hash := initRepo(t)

	rev, err := Revision(dir)
	require.NoError(t, err)
	assert.Equal(t, hash, rev)

	// Nested directories resolve to the enclosing repository.
	sub := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(sub, 0o750))
	rev, err = Revision(sub)
	require.NoError(t, err)
	assert.Equal(t, hash, rev)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("var b;\n"), 0o600))
	rev, err = Revision(dir)
	require.NoError(t, err)
	assert.Equal(t, hash+DirtySuffix, rev)
}

func TestRevisionOutsideRepository(t *testing.T) {
	rev, err := Revision(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, rev)

	dir := t.TempDir()
	_, err = ggit.PlainInit(dir, false)
	require.NoError(t, err)
	rev, err = Revision(dir)
	require.NoError(t, err)
	assert.Empty(t, rev)
}

func TestObserverRecordsRuns(t *testing.T) {
	dir, hash := initRepo(t)
	store := newStore(t)
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := NewObserver(store, WithRevisionDir(dir), WithObserverLogger(logger))

	obs.OnRunComplete(report("observed", outcome.Aborted, time.Now()))
	run, err := store.Get(t.Context(), "observed")
	require.NoError(t, err)
	assert.Equal(t, hash, run.Revision)
	assert.Contains(t, buf.String(), "Recorded run history")

	// A second report with the same id is logged, not panicked on.
	obs.OnRunComplete(report("observed", outcome.Aborted, time.Now()))
	assert.True(t, strings.Contains(buf.String(), "Failed to record run history"))
}
