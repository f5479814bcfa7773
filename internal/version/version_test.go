package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if BuildTime == "" || GitCommit == "" {
		t.Error("build info should be initialized")
	}
}

func TestCommitPrefersLinkerValue(t *testing.T) {
	orig := GitCommit
	t.Cleanup(func() { GitCommit = orig })

	GitCommit = "abc1234"
	if got := Commit(); got != "abc1234" {
		t.Errorf("Commit() = %q, want abc1234", got)
	}
	if s := String(); !strings.HasPrefix(s, "bundlekit ") || !strings.Contains(s, "commit abc1234") {
		t.Errorf("unexpected version string %q", s)
	}
}
