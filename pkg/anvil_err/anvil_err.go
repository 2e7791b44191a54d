// pkg/anvil_err/anvil_err.go

package anvil_err

import (
	"errors"
	"fmt"
	"strings"
)

// UserError marks an error as expected and user-fixable. The CLI treats these
// as a soft exit (code 0): the user declined an upgrade, declined to install
// dependencies, and so on.
type UserError struct {
	cause error
}

func (e *UserError) Error() string {
	return e.cause.Error()
}

func (e *UserError) Unwrap() error {
	return e.cause
}

// NewUserError builds an expected error from a message.
func NewUserError(format string, args ...interface{}) error {
	return &UserError{cause: fmt.Errorf(format, args...)}
}

// NewExpectedError wraps an error for softer UX handling.
func NewExpectedError(err error) error {
	if err == nil {
		return nil
	}
	return &UserError{cause: err}
}

// IsExpectedUserError checks if the error is marked as expected.
func IsExpectedUserError(err error) bool {
	var e *UserError
	return errors.As(err, &e)
}

// ErrorCategory classifies fatal errors for exit codes and remediation.
type ErrorCategory int

const (
	// CategorySystem - OS/filesystem issues (exit 1)
	CategorySystem ErrorCategory = iota
	// CategoryPlatform - unsupported OS or architecture (exit 1)
	CategoryPlatform
	// CategoryDependency - missing native prerequisites (exit 1)
	CategoryDependency
	// CategoryElevation - privilege escalation required but unavailable (exit 1)
	CategoryElevation
	// CategoryAcquisition - both acquisition strategies exhausted (exit 1)
	CategoryAcquisition
	// CategoryVerification - installed binary failed its version probe (exit 1)
	CategoryVerification
	// CategoryNetwork - connectivity issues (exit 1)
	CategoryNetwork
	// CategoryInternal - bugs in anvil itself (exit 3)
	CategoryInternal
)

// ClassifiedError wraps a fatal error with its category and remediation steps.
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Remediation []string
}

func (e *ClassifiedError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf("\n\nCause: %v", e.Cause))
	}
	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}
	return sb.String()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this category.
func (e *ClassifiedError) ExitCode() int {
	if e.Category == CategoryInternal {
		return 3
	}
	return 1
}

// GetExitCode extracts an exit code from any error. Expected user errors do
// not fail the program.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.ExitCode()
	}
	if IsExpectedUserError(err) {
		return 0
	}
	return 1
}

// NewPlatformError reports an unsupported OS or architecture. Fatal and
// non-retryable.
func NewPlatformError(message string, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryPlatform,
		Message:     message,
		Remediation: remediation,
	}
}

// NewElevationError reports that privilege escalation was required but not
// available.
func NewElevationError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryElevation,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewAcquisitionError reports that both acquisition strategies were exhausted.
func NewAcquisitionError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryAcquisition,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewVerificationError reports a binary that could not execute or report its
// version after installation.
func NewVerificationError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryVerification,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}
