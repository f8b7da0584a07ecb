// Package errs defines the error taxonomy shared across providers, the
// agent loop, memory, and MCP endpoints. Every runtime-raised error wraps a
// Kind so callers can branch on category with errors.Is/errors.As without
// parsing messages, the same way the teacher package's sentinel errors let
// callers branch on ErrRateLimit/ErrTimeout/etc.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes a runtime error per the taxonomy.
type Kind string

const (
	InvalidArgument      Kind = "invalid_argument"
	ConfigMissing        Kind = "config_missing"
	Timeout              Kind = "timeout"
	RateLimited          Kind = "rate_limited"
	ProviderError        Kind = "provider_error"
	ProtocolError        Kind = "protocol_error"
	ToolNotFound         Kind = "tool_not_found"
	ToolExecutionError   Kind = "tool_execution_error"
	SchemaViolation      Kind = "schema_violation"
	UnsupportedOperation Kind = "unsupported_operation"
	AuditError           Kind = "audit_error"
)

// sentinels let callers do errors.Is(err, errs.ErrTimeout) the way teacher
// code does errors.Is(err, agent.ErrTimeout).
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrConfigMissing        = errors.New("no api key or credential resolvable for provider")
	ErrTimeout              = errors.New("request timeout")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrProviderError        = errors.New("provider returned an error response")
	ErrProtocolError        = errors.New("malformed provider response")
	ErrToolNotFound         = errors.New("tool not found in registry")
	ErrToolExecutionError   = errors.New("tool execution failed")
	ErrSchemaViolation      = errors.New("response does not satisfy structured output schema")
	ErrUnsupportedOperation = errors.New("operation not supported by this provider")
	ErrAuditError           = errors.New("audit store write failed")
)

var kindSentinel = map[Kind]error{
	InvalidArgument:      ErrInvalidArgument,
	ConfigMissing:        ErrConfigMissing,
	Timeout:              ErrTimeout,
	RateLimited:          ErrRateLimited,
	ProviderError:        ErrProviderError,
	ProtocolError:        ErrProtocolError,
	ToolNotFound:         ErrToolNotFound,
	ToolExecutionError:   ErrToolExecutionError,
	SchemaViolation:      ErrSchemaViolation,
	UnsupportedOperation: ErrUnsupportedOperation,
	AuditError:           ErrAuditError,
}

// Error is the concrete runtime error type raised across the module.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	RetryAfter int // seconds; populated for RateLimited
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return kindSentinel[e.Kind]
}

// Is lets errors.Is(err, errs.ErrTimeout) match any *Error of that Kind even
// when Err is nil, mirroring the sentinel comparisons the teacher's
// Is*Error helpers perform.
func (e *Error) Is(target error) bool {
	return kindSentinel[e.Kind] == target
}

// New constructs a Kind-tagged error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a Kind-tagged error that wraps an underlying cause.
func Wrap(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: err.Error(), Err: err}
}

// Of reports whether err (or any error in its chain) carries the given Kind.
func Of(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
