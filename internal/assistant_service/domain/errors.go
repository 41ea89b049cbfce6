package domain

import "errors"

var (
	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrAgentIDMissing indicates the agent platform returned no agent id.
	ErrAgentIDMissing = errors.New("agent platform returned no agent id")
)

// ClientError is a caller-correctable failure (missing required fields,
// invalid voice). Handlers map it to HTTP 400.
type ClientError struct {
	Msg string
}

func (e *ClientError) Error() string { return e.Msg }

// NewClientError builds a ClientError with the given message.
func NewClientError(msg string) *ClientError { return &ClientError{Msg: msg} }

// IsClientError reports whether err is (or wraps) a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// DependencyError is a hard failure of an external collaborator. It
// short-circuits provisioning and maps to HTTP 500. Soft external failures
// (notifications, enrichment, best-effort writes) are logged and swallowed
// rather than turned into error values, so they never carry this type.
type DependencyError struct {
	System string
	Err    error
}

func (e *DependencyError) Error() string {
	return e.System + ": " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error { return e.Err }

// NewDependencyError wraps err as a failure of the named external system.
func NewDependencyError(system string, err error) *DependencyError {
	return &DependencyError{System: system, Err: err}
}
