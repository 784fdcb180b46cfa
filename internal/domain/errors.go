package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer. Client errors (malformed input,
// unknown recipients) are never retried by the system; delivery errors are
// surfaced to the caller in synchronous mode and only observed in durable
// mode; store errors are fatal to the call.
var (
	ErrMalformedSessionID = fmt.Errorf("session id missing separator")
	ErrInvalidRecipient   = fmt.Errorf("recipient is empty")
	ErrInvalidAgentName   = fmt.Errorf("agent name is empty")
	ErrInvalidCallback    = fmt.Errorf("callback url invalid")
	ErrAgentNotRegistered = fmt.Errorf("agent not registered")
	ErrDeliveryFailed     = fmt.Errorf("delivery failed")
	ErrDeliveryTimeout    = fmt.Errorf("delivery timed out")
	ErrStoreUnavailable   = fmt.Errorf("backing store unavailable")
	ErrAuthInvalid        = fmt.Errorf("authentication failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Dispatcher.Relay")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail (offending session id, agent name, remote status)
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsClientError reports whether err is a caller mistake that no amount of
// retrying will fix.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedSessionID) ||
		errors.Is(err, ErrInvalidRecipient) ||
		errors.Is(err, ErrInvalidAgentName) ||
		errors.Is(err, ErrInvalidCallback) ||
		errors.Is(err, ErrAgentNotRegistered)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown            ErrorCode = "UNKNOWN"
	CodeMalformedSessionID ErrorCode = "MALFORMED_SESSION_ID"
	CodeInvalidRecipient   ErrorCode = "INVALID_RECIPIENT"
	CodeInvalidAgentName   ErrorCode = "INVALID_AGENT_NAME"
	CodeInvalidCallback    ErrorCode = "INVALID_CALLBACK"
	CodeAgentNotRegistered ErrorCode = "AGENT_NOT_REGISTERED"
	CodeDeliveryFailed     ErrorCode = "DELIVERY_FAILED"
	CodeDeliveryTimeout    ErrorCode = "DELIVERY_TIMEOUT"
	CodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	CodeAuthInvalid        ErrorCode = "AUTH_INVALID"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrMalformedSessionID: CodeMalformedSessionID,
	ErrInvalidRecipient:   CodeInvalidRecipient,
	ErrInvalidAgentName:   CodeInvalidAgentName,
	ErrInvalidCallback:    CodeInvalidCallback,
	ErrAgentNotRegistered: CodeAgentNotRegistered,
	ErrDeliveryFailed:     CodeDeliveryFailed,
	ErrDeliveryTimeout:    CodeDeliveryTimeout,
	ErrStoreUnavailable:   CodeStoreUnavailable,
	ErrAuthInvalid:        CodeAuthInvalid,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and walks the chain with errors.Is.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
