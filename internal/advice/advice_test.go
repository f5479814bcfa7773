package advice

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

func newTestRegistry(t *testing.T) (*Registry, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewRegistry("test.advice", logger), buf
}

func TestParseRequirement(t *testing.T) {
	req, err := ParseRequirement("example.package[extra2, extra1,extra2]")
	require.NoError(t, err)
	assert.Equal(t, "example.package", req.Name)
	assert.Equal(t, []string{"extra1", "extra2"}, req.Extras)
	assert.Equal(t, "example.package[extra1,extra2]", req.String())

	req, err = ParseRequirement("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", req.String())

	for _, bad := range []string{"", "[x]", "bad name", "pkg[x", "pkg[x]]", "pkg[in valid]", "-pkg"} {
		_, err := ParseRequirement(bad)
		assert.Error(t, err, bad)
	}
}

func TestApplyAdvicePackages(t *testing.T) {
	r, logs := newTestRegistry(t)
	var got [][]string
	r.Register("example.package", "concat", func(_ context.Context, s *spec.Spec, extras []string) error {
		got = append(got, extras)
		return s.Advise(spec.Setup, func(context.Context) error { return nil })
	})

	s := spec.New()
	s.Set(spec.KeyAdvicePackages, []string{"example.package[extra2,extra1]", "not valid!", "missing.package"})
	r.Apply(t.Context(), []string{"concat", "base"}, s)

	assert.Equal(t, [][]string{{"extra1", "extra2"}}, got)
	assert.Equal(t, 1, s.Pending(spec.Setup))
	assert.Equal(t, []string{"example.package[extra1,extra2]", "missing.package"},
		s.GetStrings(spec.KeyAdvicePackagesAppliedRequirements))
	assert.Contains(t, logs.String(), "not valid for a package requirement")
	assert.Contains(t, logs.String(), "not registered")

	// A second application skips what was recorded.
	r.Apply(t.Context(), []string{"concat", "base"}, s)
	assert.Len(t, got, 1)
	assert.Contains(t, logs.String(), "already applied; skipping")
}

func TestApplyMatchesLineage(t *testing.T) {
	r, _ := newTestRegistry(t)
	var order []string
	r.Register("pkg", "base", func(context.Context, *spec.Spec, []string) error {
		order = append(order, "base")
		return nil
	})
	r.Register("pkg", "concat", func(context.Context, *spec.Spec, []string) error {
		order = append(order, "concat")
		return nil
	})
	r.Register("pkg", "unrelated", func(context.Context, *spec.Spec, []string) error {
		order = append(order, "unrelated")
		return nil
	})

	s := spec.New()
	s.Set(spec.KeyAdvicePackages, []any{"pkg"})
	r.Apply(t.Context(), []string{"concat", "base"}, s)
	assert.Equal(t, []string{"concat", "base"}, order)
}

func TestApplyIsolatesFailures(t *testing.T) {
	r, logs := newTestRegistry(t)
	r.Register("broken", "concat", func(context.Context, *spec.Spec, []string) error {
		return errors.New("setup exploded")
	})
	r.Register("panicky", "concat", func(context.Context, *spec.Spec, []string) error {
		panic("worse")
	})

	s := spec.New()
	s.Set(spec.KeyAdvicePackages, []string{"broken", "panicky"})
	r.Apply(t.Context(), []string{"concat"}, s)

	assert.Contains(t, logs.String(), "setup exploded")
	assert.Contains(t, logs.String(), "setup panicked: worse")
	assert.Equal(t, []string{"broken", "panicky"}, s.GetStrings(spec.KeyAdvicePackagesAppliedRequirements))
}

func TestApplyImpliedBySourcePackages(t *testing.T) {
	r, _ := newTestRegistry(t)
	var extras []string
	r.Register("example.package", "concat", func(_ context.Context, _ *spec.Spec, e []string) error {
		extras = e
		return nil
	})
	require.NoError(t, r.RegisterApply("example.demo", "example.package[extra3,extra4]"))
	require.Error(t, r.RegisterApply("example.demo", "bad[["))

	s := spec.New()
	s.Set(spec.KeySourcePackageNames, []string{"example.demo", "other"})
	r.Apply(t.Context(), []string{"concat"}, s)
	assert.Equal(t, []string{"extra3", "extra4"}, extras)

	// Explicit advice packages take precedence over implied ones.
	extras = nil
	s = spec.New()
	s.Set(spec.KeyAdvicePackages, []string{"example.package[extra1]"})
	s.Set(spec.KeySourcePackageNames, []string{"example.demo"})
	r.Apply(t.Context(), []string{"concat"}, s)
	assert.Equal(t, []string{"extra1"}, extras)
}

func TestApplyDuplicateRequirementWarns(t *testing.T) {
	r, logs := newTestRegistry(t)
	calls := 0
	r.Register("pkg", "concat", func(context.Context, *spec.Spec, []string) error {
		calls++
		return nil
	})
	s := spec.New()
	s.Set(spec.KeyAdvicePackages, []string{"pkg[a]", "pkg[b]"})
	r.Apply(t.Context(), []string{"concat"}, s)
	assert.Equal(t, 2, calls)
	assert.Contains(t, logs.String(), "was previously applied")
}
