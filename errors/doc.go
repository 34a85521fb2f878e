// Package errors provides standardized error handling patterns for twinbridge components.
//
// # Overview
//
// The errors package implements a three-class error classification system designed for
// distributed stream processing systems: Transient (temporary, retryable), Invalid
// (bad input, non-retryable), and Fatal (unrecoverable, stop processing).
//
// This classification enables intelligent error handling strategies throughout twinbridge,
// allowing components to make informed decisions about retries, graceful degradation,
// and failure recovery without hardcoded error string matching.
//
// # Error Classification
//
// An error carrying a ClassifiedError in its chain has that error's class.
// Any other error is classified by the sentinel it wraps or by its message:
//
//   - Transient: ErrConnectionTimeout, ErrConnectionLost, context.DeadlineExceeded,
//     context.Canceled, or a message containing "timeout", "connection", "network",
//     "temporary", "unavailable" or "busy" (retry recommended)
//   - Invalid: ErrConnectionConfigurationInvalid, ErrUnresolvedPlaceholder or
//     ErrMessageMappingFailed (do not retry)
//   - Fatal: ErrConnectionConfigurationInvalid (stop processing)
//
// Such an error can match more than one of IsTransient, IsInvalid and IsFatal;
// Classify checks Fatal first, then Invalid.
//
// The classification system integrates seamlessly with Go's standard error handling patterns,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	// Return standard error for known conditions
//	if !serviceAvailable {
//	    return errors.ErrConnectionTimeout
//	}
//
// Wrap errors with context for debugging:
//
//	// Wrap third-party errors with component context
//	if err := component.Process(data); err != nil {
//	    return errors.Wrap(err, "DataProcessor", "Process", "data validation")
//	}
//
// Check classification for retry logic:
//
//	// Make retry decisions based on error class
//	if err := operation(); err != nil {
//	    if errors.IsTransient(err) {
//	        // Retry with exponential backoff, e.g. via pkg/retry
//	    } else if errors.IsFatal(err) {
//	        // Stop processing, escalate to operator
//	        log.Fatalf("Unrecoverable error: %v", err)
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing, debugging, and operational monitoring
// across twinbridge. The Wrap family of functions automatically
// applies this pattern while preserving error classification through the chain.
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The generic Wrap() function preserves the original error's classification:
//
//	errors.Wrap(err, "Component", "Method", "action")  // Preserves original class
//
// # Standard Error Variables
//
// The package provides pre-defined error variables for common conditions, organized by category:
//
//   - Configuration and mapping: ErrConnectionConfigurationInvalid, ErrMessageMappingFailed,
//     ErrUnresolvedPlaceholder, ErrConnectionSignalIDEnforcementFailed
//   - Lifecycle: ErrAlreadyStarted, ErrNotStarted, ErrShuttingDown
//   - Connection issues: ErrConnectionLost, ErrConnectionTimeout
//
// Use these variables instead of creating custom error messages for consistency:
//
//	// Good - uses standard variable
//	if !started {
//	    return errors.ErrNotStarted
//	}
//
//	// Avoid - custom error message
//	if !started {
//	    return fmt.Errorf("not started")
//	}
//
// # Retries
//
// This package has no retry configuration of its own. Retrying with
// exponential backoff is done by package pkg/retry (retry.Do,
// retry.DoWithResult); callers use IsTransient or IsInvalid to decide which
// failures to retry, and wrap a failure with retry.NonRetryable to stop
// retrying at once.
//
// # Migration from fmt.Errorf
//
// Replace manual error wrapping with classification-aware wrappers:
//
//	// Before
//	return fmt.Errorf("component: operation failed: %w", err)
//
//	// After - preserves classification
//	return errors.Wrap(err, "Component", "method", "operation")
//
//	// After - sets classification
//	return errors.WrapTransient(err, "Component", "method", "operation")
//
// Replace string-based error inspection with classification checks:
//
//	// Before
//	if strings.Contains(err.Error(), "timeout") {
//	    // retry logic
//	}
//
//	// After
//	if errors.IsTransient(err) {
//	    // retry logic with proper backoff
//	}
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection. This package
// does not re-export As or Is; the examples import the standard library's
// errors package as stderrors:
//
//	// Check error classification
//	var ce *errors.ClassifiedError
//	if stderrors.As(err, &ce) {
//	    log.Printf("Component: %s, Class: %s", ce.Component, ce.Class)
//	}
//
//	// Check for specific standard errors
//	if stderrors.Is(err, errors.ErrConnectionTimeout) {
//	    // Handle timeout specifically
//	}
//
//	// Classification is preserved through error chains
//	wrapped := errors.Wrap(errors.ErrConnectionTimeout, "Service", "Connect", "dial")
//	if errors.IsTransient(wrapped) {  // true - classification preserved
//	    // Retry logic
//	}
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) are automatically
// classified as Transient, enabling consistent handling of context-based timeouts:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//
//	if err := operation(ctx); err != nil {
//	    if errors.IsTransient(err) {
//	        // Handles both network timeouts AND context timeouts
//	        log.Printf("Transient error (retry recommended): %v", err)
//	    }
//	}
//
// # Performance Considerations
//
// Error classification is efficient for error paths:
//
//   - Classification: ~40ns per operation (1 allocation) for known types
//   - Wrapping: ~107ns per operation (2 allocations)
//   - Memory: 80 bytes per wrapped error
//
// The overhead is negligible compared to the actual error condition being handled.
// Classification uses type assertions for known types (O(1)) and falls back to
// pattern matching for unknown errors (O(n) where n is pattern count).
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable constants safe for concurrent access. The ClassifiedError type
// is safe to share across goroutines after creation.
//
// # Architecture Integration
//
// The errors package is used throughout twinbridge, for example:
//
//   - connection, validator, config: reject bad configuration with WrapInvalid
//   - client: guards lifecycle transitions with ErrAlreadyStarted
//   - publisher: reports a handle that is backing off as a transient ErrConnectionLost
//   - cmd/twinbridge: uses IsInvalid to mark failures retry.NonRetryable
//
// Package pkg/retry does not import this package and does not classify errors itself.
//
// # Design Philosophy
//
// The errors package follows these design principles:
//
//   - Classification over string matching: Errors are classified by type, not content
//   - Wrapping over replacement: Preserve original errors, add context via wrapping
//   - Standards over invention: Use Go's error handling idioms (Is/As/Unwrap)
//   - Simplicity over completeness: Three classes cover 95% of use cases
//   - Integration over isolation: Work seamlessly with standard library and other packages
//
// # Examples
//
// Complete service integration example:
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//	    "time"
//
//	    "github.com/c360/twinbridge/errors"
//	)
//
//	type Service struct {
//	    connected bool
//	}
//
//	func (s *Service) Connect() error {
//	    if s.connected {
//	        return errors.ErrAlreadyStarted
//	    }
//
//	    if err := s.dial(); err != nil {
//	        return errors.WrapTransient(err, "Service", "Connect", "dial")
//	    }
//
//	    s.connected = true
//	    return nil
//	}
//
//	func (s *Service) dial() error {
//	    // Simulate connection attempt
//	    return errors.ErrConnectionTimeout
//	}
//
//	func (s *Service) Process(ctx context.Context, data []byte) error {
//	    if !s.connected {
//	        return errors.ErrNotStarted
//	    }
//
//	    if len(data) == 0 {
//	        return errors.WrapInvalid(
//	            errors.ErrMessageMappingFailed,
//	            "Service", "Process", "empty data")
//	    }
//
//	    // Process with context timeout
//	    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
//	    defer cancel()
//
//	    select {
//	    case <-ctx.Done():
//	        return errors.WrapTransient(ctx.Err(), "Service", "Process", "processing")
//	    case <-time.After(100 * time.Millisecond):
//	        return nil
//	    }
//	}
//
//	func main() {
//	    service := &Service{}
//
//	    // Retry connection with backoff
//	    delay := 100 * time.Millisecond
//	    for attempt := 0; attempt < 3; attempt++ {
//	        if err := service.Connect(); err != nil {
//	            if errors.IsTransient(err) {
//	                log.Printf("Connection attempt %d failed, retrying...", attempt+1)
//	                time.Sleep(delay)
//	                delay *= 2
//	                continue
//	            }
//	            log.Fatalf("Connection failed: %v", err)
//	        }
//	        break
//	    }
//
//	    // Process data with error handling
//	    ctx := context.Background()
//	    if err := service.Process(ctx, []byte("test data")); err != nil {
//	        if errors.IsInvalid(err) {
//	            log.Printf("Invalid input (do not retry): %v", err)
//	        } else if errors.IsTransient(err) {
//	            log.Printf("Transient error (retry recommended): %v", err)
//	        } else if errors.IsFatal(err) {
//	            log.Fatalf("Fatal error (stop processing): %v", err)
//	        }
//	    }
//	}
//
// The full API is defined in errors.go.
package errors
