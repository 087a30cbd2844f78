package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-level failures (timeout, connection reset)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeHTTP represents a non-2xx HTTP response
	ErrorTypeHTTP ErrorType = "http_error"
	// ErrorTypeBlocked represents anti-bot blocking (403/429 or a challenge page)
	ErrorTypeBlocked ErrorType = "blocked"
	// ErrorTypeNotFound represents a valid page with no recognizable price
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeParsing represents HTML/feed parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError is the tagged error carried through the fetch/extract pipeline.
// Callers branch on Type rather than on error strings: a blocked outcome is
// worth retrying later, a not-found outcome is not.
type ScrapeError struct {
	Type    ErrorType
	Source  string
	Message string
	Status  int
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("[%s] %s: %s (HTTP %d) - %v", e.Type, e.Source, e.Message, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("[%s] %s: %s (HTTP %d)", e.Type, e.Source, e.Message, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the retry loop should schedule another attempt.
// Blocked is not retryable within the attempt budget of a single fetch; the
// domain cooldown decides when the next logical fetch may go out.
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeHTTP:
		return e.Status >= 500
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, source, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewHTTP creates a new HTTP status error
func NewHTTP(source string, status int) *ScrapeError {
	e := New(ErrorTypeHTTP, source, "unexpected status code", nil)
	e.Status = status
	return e
}

// NewBlocked creates a new blocked error
func NewBlocked(source, message string) *ScrapeError {
	return New(ErrorTypeBlocked, source, message, nil)
}

// NewBlockedStatus creates a blocked error for a blocking status code (403/429)
func NewBlockedStatus(source string, status int) *ScrapeError {
	e := New(ErrorTypeBlocked, source, "blocking status code", nil)
	e.Status = status
	return e
}

// NewNotFound creates a new not-found error
func NewNotFound(source, message string) *ScrapeError {
	return New(ErrorTypeNotFound, source, message, nil)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *ScrapeError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of err, or "" when err is not a ScrapeError.
func TypeOf(err error) ErrorType {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// IsBlocked reports whether err is a blocked outcome
func IsBlocked(err error) bool {
	return TypeOf(err) == ErrorTypeBlocked
}

// IsNotFound reports whether err is a not-found outcome
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsRetryable reports whether err is worth another attempt within the budget
func IsRetryable(err error) bool {
	var se *ScrapeError
	if stderrors.As(err, &se) {
		return se.IsRetryable()
	}
	// Unclassified errors are treated as transient.
	return err != nil
}
