package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"volatility-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds for errors.As checks
type ConfigurationError struct{ ObserverError }
type NetworkError struct{ ObserverError }
type DataSourceError struct{ ObserverError }
type DatabaseError struct{ ObserverError }
type ValidationError struct{ ObserverError }

// NewDataSourceError wraps cause as a DataSourceError.
func NewDataSourceError(message string, cause error) *DataSourceError {
	return &DataSourceError{ObserverError{Message: message, Cause: cause}}
}

// NewNetworkError wraps cause as a NetworkError.
func NewNetworkError(message string, cause error) *NetworkError {
	return &NetworkError{ObserverError{Message: message, Cause: cause}}
}

// NewValidationError builds a ValidationError without a cause.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{ObserverError{Message: message}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times, doubling the delay after
// each failure. It stops early when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return zero, errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no attempts made")
	}
	return zero, lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger                 *logger.Logger
	ErrorCount             int
	MaxErrorsBeforeRestart int
	BaseDelay              time.Duration
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	return &ErrorHandler{
		Logger:                 log,
		ErrorCount:             0,
		MaxErrorsBeforeRestart: 10,
		BaseDelay:              time.Second,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.ErrorCount = 0
}

// -----------------------------------------------------------------------------

// TooManyErrors reports whether consecutive failures crossed the restart threshold.
func (e *ErrorHandler) TooManyErrors() bool {
	return e.ErrorCount >= e.MaxErrorsBeforeRestart
}

// -----------------------------------------------------------------------------

// ExecuteWithRetry runs fn with retries and classifies the final error by the
// operation name.
func (e *ErrorHandler) ExecuteWithRetry(ctx context.Context, operation string, fn func() error, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			if e.ErrorCount > 0 {
				e.ErrorCount--
			}
			return nil
		}

		if attempt == maxRetries-1 {
			e.ErrorCount++
			e.Logger.Error("%s failed (attempt %d/%d): %v", operation, attempt+1, maxRetries, err)
			return classify(operation, err)
		}

		e.Logger.Warning("%s failed (attempt %d/%d): %v", operation, attempt+1, maxRetries, err)
		delay := e.BaseDelay * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			e.ErrorCount++
			return classify(operation, errors.Join(err, ctx.Err()))
		case <-time.After(delay):
		}
	}

	return &ObserverError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries)}
}

func classify(operation string, err error) error {
	base := ObserverError{Message: fmt.Sprintf("%s failed", operation), Cause: err}
	lowerOp := strings.ToLower(operation)
	switch {
	case strings.Contains(lowerOp, "network") || strings.Contains(lowerOp, "fetch"):
		return &NetworkError{base}
	case strings.Contains(lowerOp, "database") || strings.Contains(lowerOp, "save"):
		return &DatabaseError{base}
	default:
		return &base
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
