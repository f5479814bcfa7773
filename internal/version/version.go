// Package version holds build metadata for the bundlekit binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/bundlekit/internal/version.Version=v0.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Commit returns GitCommit, falling back to the VCS revision the Go
// toolchain embedded in the binary.
func Commit() string {
	if GitCommit != "unknown" && GitCommit != "" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return "unknown"
}

// String renders the version line printed by `bundlekit --version`.
func String() string {
	return fmt.Sprintf("bundlekit %s (commit %s, built %s)", Version, Commit(), BuildTime)
}
