package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyToolchain  = "toolchain"
	KeyBuildID    = "build_id"
	KeyPhase      = "phase"
	KeyEvent      = "event"
	KeyOutcome    = "outcome"
	KeyModname    = "modname"
	KeySource     = "source"
	KeyTarget     = "target"
	KeySpecKey    = "key"
	KeyPath       = "path"
	KeyPlugin     = "plugin"
	KeyPackage    = "package"
	KeyCaller     = "caller"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Toolchain(name string) slog.Attr { return slog.String(KeyToolchain, name) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Phase(name string) slog.Attr     { return slog.String(KeyPhase, name) }
func Event(name string) slog.Attr     { return slog.String(KeyEvent, name) }
func Outcome(kind string) slog.Attr   { return slog.String(KeyOutcome, kind) }
func Modname(m string) slog.Attr      { return slog.String(KeyModname, m) }
func Source(s string) slog.Attr       { return slog.String(KeySource, s) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func SpecKey(k string) slog.Attr      { return slog.String(KeySpecKey, k) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Plugin(name string) slog.Attr    { return slog.String(KeyPlugin, name) }
func Package(name string) slog.Attr   { return slog.String(KeyPackage, name) }
func Caller(c string) slog.Attr       { return slog.String(KeyCaller, c) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
