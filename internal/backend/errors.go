package backend

import (
	"errors"
	"fmt"
)

// Error types returned by providers. Each carries the operation that failed
// so messages read "<op>: <detail>".

// SizeLimitError rejects a query longer than MaxQueryLength.
type SizeLimitError struct {
	Length int
	Limit  int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("query is %d characters, limit is %d", e.Length, e.Limit)
}

// ConfigurationError reports a missing or malformed backend setting.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps err as a configuration failure of op.
func NewConfigurationError(op string, err error) error {
	return &ConfigurationError{Op: op, Err: err}
}

// AuthReason distinguishes why authentication failed.
type AuthReason string

const (
	AuthInvalidCredentials AuthReason = "invalid_credentials"
	AuthExpiredSession     AuthReason = "expired_session"
	AuthMissingCredentials AuthReason = "missing_credentials"
)

// AuthenticationError reports a rejected or impossible login.
type AuthenticationError struct {
	Op     string
	Reason AuthReason
	Status int
	Msg    string
}

func (e *AuthenticationError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: authentication failed (HTTP %d): %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s: authentication failed: %s", e.Op, msg)
}

// NewAuthenticationError builds an AuthenticationError.
func NewAuthenticationError(op string, reason AuthReason, status int, msg string) error {
	return &AuthenticationError{Op: op, Reason: reason, Status: status, Msg: msg}
}

// TransportError wraps a network failure or a non-success HTTP status.
// Status is zero when no response was received.
type TransportError struct {
	Op      string
	Status  int
	Message string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	case e.Status == 0:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports a response body that could not be understood.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps err as a parse failure of op.
func NewParseError(op string, err error) error {
	return &ParseError{Op: op, Err: err}
}

// UnknownError wraps anything that fits no other class.
type UnknownError struct {
	Op  string
	Err error
}

func (e *UnknownError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *UnknownError) Unwrap() error { return e.Err }

// IsSizeLimit reports whether err is a SizeLimitError.
func IsSizeLimit(err error) bool {
	var target *SizeLimitError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsParse reports whether err is a ParseError.
func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// StatusCode extracts the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// Classify names the error class of err for logs and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsSizeLimit(err):
		return "size_limit"
	case IsConfiguration(err):
		return "configuration"
	case IsAuthentication(err):
		return "authentication"
	case IsTransport(err):
		return "transport"
	case IsParse(err):
		return "parse"
	default:
		return "unknown"
	}
}
