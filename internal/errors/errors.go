// Package errors provides centralized error handling with category metadata
// used by the scheduler to decide retry and backoff behavior.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation      ErrorCategory = "validation"
	CategoryConfiguration   ErrorCategory = "configuration"
	CategoryDatabase        ErrorCategory = "database"
	CategoryNetwork         ErrorCategory = "network"
	CategoryNotFound        ErrorCategory = "not-found"
	CategoryGeneric         ErrorCategory = "generic"
	CategoryFileIO          ErrorCategory = "file-io"
	CategoryFileParsing     ErrorCategory = "file-parsing"
	CategoryVendor          ErrorCategory = "vendor"            // non-success vendor response
	CategoryVendorRateLimit ErrorCategory = "vendor-rate-limit" // 429 after retries exhausted
	CategoryExecutor        ErrorCategory = "executor"          // worker crash or protocol failure
	CategoryTimeout         ErrorCategory = "timeout"           // worker wall-clock timeout
	CategoryTailMismatch    ErrorCategory = "tail-mismatch"     // worker observed a different aircraft
	CategoryCorruptData     ErrorCategory = "corrupt-data"      // implausible vendor data, purged
	CategoryState           ErrorCategory = "state"             // scheduler busy / breaker open
)

// ComponentUnknown is used when the component was not set by the caller.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with category, component, and context metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where error occurred
	Category  ErrorCategory  // Error category for better grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches on category when the target is also an EnhancedError
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error builder
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = CategoryGeneric
	}
	return ee
}

// CategoryOf returns the category of err, or CategoryGeneric for plain errors.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if As(err, &ee) {
		return ee.Category
	}
	return CategoryGeneric
}

// IsRateLimited reports whether err is a vendor rate-limit failure.
func IsRateLimited(err error) bool {
	return CategoryOf(err) == CategoryVendorRateLimit
}

// IsRecoverable reports whether err should feed the backoff schedule rather
// than abort a run. Only database and configuration failures are treated as
// non-recoverable by the scheduler.
func IsRecoverable(err error) bool {
	switch CategoryOf(err) {
	case CategoryDatabase, CategoryConfiguration:
		return false
	default:
		return true
	}
}

// StatusCode extracts the http status code context value, if present.
func StatusCode(err error) (int, bool) {
	var ee *EnhancedError
	if !As(err, &ee) {
		return 0, false
	}
	code, ok := ee.Context["status_code"].(int)
	return code, ok
}

// Standard library passthroughs so callers only import this package.

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join wraps a multi-error join
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
