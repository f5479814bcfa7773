// Package errors provides classified error primitives for bundlekit.
//
// A ClassifiedError carries a category, a severity and a retry strategy on
// top of the usual message and cause. Errors are created through the fluent
// ErrorBuilder:
//
//	err := errors.WrapError(cause, errors.CategoryHistory, "record run").
//		WithContext("build_id", rep.BuildID).
//		Build()
//
// The CLI adapter maps categories to process exit codes. Control flow
// signals raised by advices (abort, cancel, skip) are not classified errors;
// they live in the outcome package.
package errors
