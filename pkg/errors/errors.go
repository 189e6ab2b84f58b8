package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents listing parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeConfigurationUnavailable means a required search form option is missing on the site
	ErrorTypeConfigurationUnavailable ErrorType = "configuration_unavailable"
	// ErrorTypeScrapeTransient represents a page or element fetch failing mid-pass
	ErrorTypeScrapeTransient ErrorType = "scrape_transient"
	// ErrorTypeMatcherExhausted means no discrete option satisfies a constraint
	ErrorTypeMatcherExhausted ErrorType = "matcher_exhausted"
	// ErrorTypeNotifier represents notification delivery errors
	ErrorTypeNotifier ErrorType = "notifier"
)

// SourceError represents an error raised while working against a listing source
type SourceError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *SourceError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeScrapeTransient, ErrorTypeNotifier:
		return true
	default:
		return false
	}
}

// New creates a new SourceError
func New(errType ErrorType, source, message string, err error) *SourceError {
	return &SourceError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *SourceError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *SourceError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *SourceError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, source, message, nil)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *SourceError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *SourceError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *SourceError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *SourceError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewConfigurationUnavailable creates an error for a form option the source does not offer
func NewConfigurationUnavailable(source, message string, err error) *SourceError {
	return New(ErrorTypeConfigurationUnavailable, source, message, err)
}

// NewScrapeTransient creates an error for a failed page fetch in the middle of a pass
func NewScrapeTransient(source, message string, err error) *SourceError {
	return New(ErrorTypeScrapeTransient, source, message, err)
}

// NewMatcherExhausted creates an error for an axis whose options cannot satisfy the target
func NewMatcherExhausted(source, message string, err error) *SourceError {
	return New(ErrorTypeMatcherExhausted, source, message, err)
}

// NewNotifier creates a new notifier error
func NewNotifier(message string, err error) *SourceError {
	return New(ErrorTypeNotifier, "", message, err)
}

// TypeOf returns the type of the first SourceError in err's chain, or "" if none
func TypeOf(err error) ErrorType {
	var se *SourceError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// IsType reports whether err carries a SourceError of the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsConfigurationUnavailable reports whether err means the search cannot be configured.
// An exhausted matcher counts as an unavailable configuration for its axis.
func IsConfigurationUnavailable(err error) bool {
	t := TypeOf(err)
	return t == ErrorTypeConfigurationUnavailable || t == ErrorTypeMatcherExhausted
}

// IsRetryable reports whether err is a retryable SourceError
func IsRetryable(err error) bool {
	var se *SourceError
	if stderrors.As(err, &se) {
		return se.IsRetryable()
	}
	return false
}
