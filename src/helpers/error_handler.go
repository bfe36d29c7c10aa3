package helpers

import (
	"fmt"
	"strings"
	"time"

	"quote-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type QuoteObserverError struct {
	Message string
	Cause   error
}

func (e *QuoteObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *QuoteObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for the pipeline's failure taxonomy. Database and
// state errors are fatal for a batch; validation errors are surfaced to the
// caller at the loader boundary.
type ConfigurationError struct{ QuoteObserverError }
type DatabaseError struct{ QuoteObserverError }
type StateError struct{ QuoteObserverError }
type ValidationError struct{ QuoteObserverError }

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		fmt.Printf("Warning: Attempt %d/%d failed for %s: %v. Retrying in %v\n", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger *logger.Logger
}

func NewErrorHandler(logLevel string) *ErrorHandler {
	return &ErrorHandler{
		Logger: logger.NewLogger(logLevel, "ErrorHandler"),
	}
}

// -----------------------------------------------------------------------------

// ExecuteWithRetry executes a function, retries on failure, and wraps the
// final error into the matching taxonomy type.
func (e *ErrorHandler) ExecuteWithRetry(operation string, fn func() error, maxRetries int) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if attempt == maxRetries-1 {
			e.Logger.Error("%s failed (attempt %d/%d): %v", operation, attempt+1, maxRetries, err)

			lowerOp := strings.ToLower(operation)
			switch {
			case strings.Contains(lowerOp, "database") || strings.Contains(lowerOp, "save") || strings.Contains(lowerOp, "load"):
				return &DatabaseError{QuoteObserverError{Message: fmt.Sprintf("%s failed", operation), Cause: err}}
			case strings.Contains(lowerOp, "state"):
				return &StateError{QuoteObserverError{Message: fmt.Sprintf("%s failed", operation), Cause: err}}
			default:
				return &QuoteObserverError{Message: fmt.Sprintf("%s failed", operation), Cause: err}
			}
		}

		// Log warning and wait
		e.Logger.Warning("%s failed (attempt %d/%d): %v", operation, attempt+1, maxRetries, err)
		delay := time.Duration(1<<attempt) * time.Second
		time.Sleep(delay)
	}

	return &QuoteObserverError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries)}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
