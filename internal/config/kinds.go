package config

import (
	"git.home.luguber.info/inful/bundlekit/internal/foundation/normalization"
	"git.home.luguber.info/inful/bundlekit/internal/retry"
)

// ToolchainKind selects the toolchain driving a run.
type ToolchainKind string

const (
	ToolchainNull   ToolchainKind = "null"
	ToolchainConcat ToolchainKind = "concat"
)

var toolchainNormalizer = normalization.NewNormalizer("toolchain", map[string]ToolchainKind{
	"null":   ToolchainNull,
	"concat": ToolchainConcat,
}, ToolchainConcat)

// TranspilerKind selects the transpiler used by the transpile entry.
type TranspilerKind string

const (
	TranspilerNull TranspilerKind = "null"
	TranspilerAMD  TranspilerKind = "amd"
)

var transpilerNormalizer = normalization.NewNormalizer("transpiler", map[string]TranspilerKind{
	"null": TranspilerNull,
	"copy": TranspilerNull,
	"amd":  TranspilerAMD,
}, TranspilerNull)

var backoffNormalizer = normalization.NewNormalizer("backoff", map[string]retry.Mode{
	"fixed":       retry.ModeFixed,
	"linear":      retry.ModeLinear,
	"exponential": retry.ModeExponential,
}, retry.ModeExponential)

// ParseToolchainKind parses a toolchain name given on the command line.
func ParseToolchainKind(raw string) (ToolchainKind, error) {
	return toolchainNormalizer.Parse(raw)
}
