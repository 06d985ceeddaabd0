// Package errs implements the error taxonomy the control loop, breaker, and
// health surface key their decisions off of: five categories, each with a
// fixed set of leaves that determine a severity class.
package errs

import (
	"errors"
	"fmt"

	"github.com/hermeznetwork/tracerr"
)

// Severity classifies how the control loop should react to an error.
type Severity int

const (
	// Transient errors may resolve on retry; they count toward the
	// breaker's consecutive-failure total.
	Transient Severity = iota
	// Warning errors are counted and logged but never retried.
	Warning
	// Critical errors are counted and logged at error level; the loop
	// continues so operators see the signal in metrics.
	Critical
	// Fatal errors terminate the process.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Transient:
		return "transient"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Category is the top-level error grouping; it doubles as the metric label
// value and the short error code used in logs.
type Category string

const (
	CategoryConfig         Category = "CONFIG_ERROR"
	CategoryL2Connection   Category = "L2_CONNECTION_ERROR"
	CategorySequencerAPI   Category = "SEQUENCER_API_ERROR"
	CategoryTransaction    Category = "TRANSACTION_ERROR"
	CategoryAuthorization  Category = "AUTHORIZATION_ERROR"
	CategoryInternal       Category = "INTERNAL_ERROR"
)

// Error is the concrete error type produced throughout the anchor service.
// Fatal and Critical errors carry a stack trace (via tracerr) captured at
// construction time, since those are the ones an operator will need to
// debug after the fact; Transient and Warning errors are expected and
// frequent enough that a trace would only be noise.
type Error struct {
	Category Category
	Leaf      string
	Sev       Severity
	Message   string
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Category, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// GetSeverity returns this error's fixed severity class.
func (e *Error) GetSeverity() Severity { return e.Sev }

// IsRetryable reports whether the control loop should retry the operation
// that produced this error within its current retry budget.
func (e *Error) IsRetryable() bool { return e.Sev == Transient }

// Code returns the stable short identifier used as a metric label value.
func (e *Error) Code() string { return string(e.Category) }

func newError(category Category, leaf string, sev Severity, cause error, format string, args ...interface{}) *Error {
	e := &Error{
		Category: category,
		Leaf:     leaf,
		Sev:      sev,
		Message:  fmt.Sprintf(format, args...),
		cause:    cause,
	}
	if sev == Fatal || sev == Critical {
		e.cause = tracerr.Wrap(errOrNew(cause, e.Message))
	}
	return e
}

func errOrNew(cause error, message string) error {
	if cause != nil {
		return cause
	}
	return fmt.Errorf("%s", message)
}

// SeverityOf extracts the severity from any error produced by this package,
// defaulting to Critical for errors this package did not originate (an
// unclassified failure should never be silently treated as retryable).
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Sev
	}
	return Critical
}

// IsRetryable reports whether err should be retried within the current
// batch's retry budget.
func IsRetryable(err error) bool {
	return SeverityOf(err) == Transient
}

// CodeOf extracts the metric-label error code, defaulting to the internal
// category for errors this package did not originate.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return string(CategoryInternal)
}
