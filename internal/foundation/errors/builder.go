package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// NewError starts a ClassifiedError of the given category. Severity and
// retry strategy default to what the category implies.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	p := category.profile()
	return &ErrorBuilder{
		category: category,
		severity: p.severity,
		retry:    p.retry,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithCause sets the wrapped error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Merge(ErrorContext{key: value})
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder { return b.WithSeverity(SeverityFatal) }

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder { return b.WithSeverity(SeverityWarning) }

// Retryable sets the retry strategy to backoff.
func (b *ErrorBuilder) Retryable() *ErrorBuilder { return b.WithRetry(RetryBackoff) }

// UserAction sets the retry strategy to require user action.
func (b *ErrorBuilder) UserAction() *ErrorBuilder { return b.WithRetry(RetryUserAction) }

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// ConfigError starts a configuration error.
func ConfigError(message string) *ErrorBuilder { return NewError(CategoryConfig, message) }

// ValidationError starts an error for invalid flags or configuration values.
func ValidationError(message string) *ErrorBuilder { return NewError(CategoryValidation, message) }

// ToolchainError starts an error for a toolchain run that crashed.
func ToolchainError(message string) *ErrorBuilder { return NewError(CategoryToolchain, message) }

// CodecError starts an error for malformed VLQ, mappings or source map input.
func CodecError(message string) *ErrorBuilder { return NewError(CategoryCodec, message) }

func FileSystemError(message string) *ErrorBuilder { return NewError(CategoryFileSystem, message) }

func HistoryError(message string) *ErrorBuilder { return NewError(CategoryHistory, message) }

func GitError(message string) *ErrorBuilder { return NewError(CategoryGit, message) }

// NotifyError starts an event publishing error; these are retried with backoff.
func NotifyError(message string) *ErrorBuilder { return NewError(CategoryNotify, message) }

func RuntimeError(message string) *ErrorBuilder { return NewError(CategoryRuntime, message) }

func InternalError(message string) *ErrorBuilder { return NewError(CategoryInternal, message) }
