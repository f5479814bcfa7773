package errors

import (
	"log/slog"
	"maps"
	"slices"
)

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfig represents user-facing configuration and input errors.
	CategoryConfig        ErrorCategory = "config"
	CategoryValidation    ErrorCategory = "validation"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryAlreadyExists ErrorCategory = "already_exists"

	// CategoryToolchain represents failures of a toolchain run and its collaborators.
	CategoryToolchain ErrorCategory = "toolchain"
	CategoryAdvice    ErrorCategory = "advice"
	CategoryPlugin    ErrorCategory = "plugin"
	CategoryCodec     ErrorCategory = "codec"

	// CategoryFileSystem represents storage and external system errors.
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryHistory    ErrorCategory = "history"
	CategoryGit        ErrorCategory = "git"
	CategoryNotify     ErrorCategory = "notify"

	// CategoryRuntime represents runtime and infrastructure errors.
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// profile is what a category implies when nothing more specific is known:
// the process exit code and the builder defaults.
type profile struct {
	exitCode int
	severity ErrorSeverity
	retry    RetryStrategy
}

// profiles group exit codes by who has to act: the operator fixing input
// (2-7), an external system (8), or a defect in the build (10-12).
var profiles = map[ErrorCategory]profile{
	CategoryValidation:    {2, SeverityFatal, RetryUserAction},
	CategoryCodec:         {3, SeverityError, RetryUserAction},
	CategoryNotFound:      {4, SeverityError, RetryUserAction},
	CategoryAlreadyExists: {4, SeverityError, RetryUserAction},
	CategoryConfig:        {7, SeverityFatal, RetryUserAction},
	CategoryGit:           {8, SeverityWarning, RetryNever},
	CategoryNotify:        {8, SeverityWarning, RetryBackoff},
	CategoryInternal:      {10, SeverityFatal, RetryNever},
	CategoryToolchain:     {11, SeverityFatal, RetryNever},
	CategoryAdvice:        {11, SeverityError, RetryNever},
	CategoryPlugin:        {11, SeverityError, RetryNever},
	CategoryFileSystem:    {11, SeverityError, RetryBackoff},
	CategoryHistory:       {11, SeverityError, RetryNever},
	CategoryRuntime:       {12, SeverityFatal, RetryNever},
}

func (c ErrorCategory) profile() profile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return profile{exitCode: 1, severity: SeverityError, retry: RetryNever}
}

// ExitCode returns the process exit code for errors of category c, 1 for
// unknown categories.
func (c ErrorCategory) ExitCode() int { return c.profile().exitCode }

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryImmediate  RetryStrategy = "immediate"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		str, ok := value.(string)
		return str, ok
	}
	return "", false
}

// Merge combines two contexts into a new one, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}

// Attrs returns the context as slog attributes sorted by key.
func (c ErrorContext) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(c))
	for _, k := range slices.Sorted(maps.Keys(c)) {
		attrs = append(attrs, slog.Any(k, c[k]))
	}
	return attrs
}
