package callflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for callflow. Use errors.Is to check.
var (
	ErrToolNotFound    = errors.New("tool not found")
	ErrValidation      = errors.New("validation failed")
	ErrEvalTimeout     = errors.New("eval timed out")
	ErrPendingApproval = errors.New("a tool-call approval is already pending")
	ErrNoPending       = errors.New("no approval is pending")
)

// ClientError is an error whose text is sent back to the LLM for
// self-correction (invalid JSON, schema violation, bad regex, and so on).
// Do not expose stack traces or internal details to the LLM.
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains.
func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an internal failure (store down, panic, etc.).
// The LLM should not see the underlying error message or stack.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// wrapJSONParseError returns a ClientError for JSON unmarshal failures so
// parse errors read consistently wherever they surface.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error()}
}
